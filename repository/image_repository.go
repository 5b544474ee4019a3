package repository

import (
	"fmt"
	"path"

	"gorm.io/gorm"

	"github.com/easylabel/easylabel-backend/models"
)

// ImageRepository handles database operations for image metadata records
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// Create inserts a new metadata record. ProjectID is derived from the
// storage path's first segment when not already set.
func (r *ImageRepository) Create(image *models.Image) error {
	if image.ProjectID == "" {
		image.ProjectID = ProjectIDFromStoragePath(image.StoragePath)
	}
	if image.Filename == "" {
		image.Filename = path.Base(image.StoragePath)
	}
	if err := r.DB.Create(image).Error; err != nil {
		return fmt.Errorf("failed to create metadata record for %s: %w", image.StoragePath, err)
	}
	return nil
}

// GetByID retrieves a metadata record by its surrogate key
func (r *ImageRepository) GetByID(id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.First(&image, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %d: %w", id, err)
	}
	return &image, nil
}

// GetByStoragePath retrieves a metadata record by its unique storage path
func (r *ImageRepository) GetByStoragePath(storagePath string) (*models.Image, error) {
	var image models.Image
	err := r.DB.Where("storage_path = ?", storagePath).First(&image).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by path %s: %w", storagePath, err)
	}
	return &image, nil
}

// IDByStoragePath resolves a storage path to the record id, the join key to
// annotations
func (r *ImageRepository) IDByStoragePath(storagePath string) (uint, error) {
	var image models.Image
	err := r.DB.Select("id").Where("storage_path = ?", storagePath).First(&image).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, err
		}
		return 0, fmt.Errorf("failed to resolve id for path %s: %w", storagePath, err)
	}
	return image.ID, nil
}

// UpdateStatus applies a status transition's effects: new status, the new
// assignee (NULL when nil) and the audit stamps. Callers validate the
// transition; this is pure data access.
func (r *ImageRepository) UpdateStatus(id uint, status string, assignedBy *string, actor string, now int64) error {
	updates := map[string]interface{}{
		"status":           status,
		"last_modified_by": actor,
		"last_modified_at": now,
	}
	if assignedBy != nil {
		updates["assigned_by"] = *assignedBy
	} else {
		updates["assigned_by"] = gorm.Expr("NULL")
	}

	result := r.DB.Model(&models.Image{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update status for image ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a metadata record by id; its annotations go with it in one
// transaction
func (r *ImageRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("info_id = ?", id).Delete(&models.Annotation{}).Error; err != nil {
			return fmt.Errorf("failed to delete annotations for image ID %d: %w", id, err)
		}
		result := tx.Delete(&models.Image{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete image record ID %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListByIDs retrieves multiple metadata records by their ids
func (r *ImageRepository) ListByIDs(ids []uint) ([]models.Image, error) {
	if len(ids) == 0 {
		return []models.Image{}, nil
	}
	var images []models.Image
	err := r.DB.Where("id IN ?", ids).Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get images by ids: %w", err)
	}
	return images, nil
}

// CountOwnedByIDs counts how many of the given records were uploaded by the
// user; used by the deletion ownership guard
func (r *ImageRepository) CountOwnedByIDs(ids []uint, userID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.Model(&models.Image{}).
		Where("id IN ? AND created_by = ?", ids, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count owned images: %w", err)
	}
	return count, nil
}

// ProjectIDFromStoragePath extracts the project identifier embedded in a
// storage path (its first path segment).
func ProjectIDFromStoragePath(storagePath string) string {
	for i := 0; i < len(storagePath); i++ {
		if storagePath[i] == '/' {
			return storagePath[:i]
		}
	}
	return storagePath
}
