package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/easylabel/easylabel-backend/models"
)

// AnnotationRepository handles database operations for annotation rows
type AnnotationRepository struct {
	DB *gorm.DB
}

// NewAnnotationRepository creates a new instance of AnnotationRepository
func NewAnnotationRepository(db *gorm.DB) *AnnotationRepository {
	return &AnnotationRepository{DB: db}
}

// ReplaceForImage atomically replaces the full annotation set for an image:
// all prior rows for info_id are deleted and the given set inserted inside
// one transaction. Any failure rolls back entirely, never a partial set.
func (r *AnnotationRepository) ReplaceForImage(infoID uint, annotations []models.Annotation) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("info_id = ?", infoID).Delete(&models.Annotation{}).Error; err != nil {
			return fmt.Errorf("failed to delete old annotations for image ID %d: %w", infoID, err)
		}

		if len(annotations) == 0 {
			return nil
		}

		rows := make([]models.Annotation, len(annotations))
		for i, ann := range annotations {
			rows[i] = models.Annotation{
				InfoID: infoID,
				Label:  ann.Label,
				X:      ann.X,
				Y:      ann.Y,
				Width:  ann.Width,
				Height: ann.Height,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert annotations for image ID %d: %w", infoID, err)
		}
		return nil
	})
}

// ListByImage fetches the persisted annotation set for an image
func (r *AnnotationRepository) ListByImage(infoID uint) ([]models.Annotation, error) {
	var annotations []models.Annotation
	err := r.DB.Where("info_id = ?", infoID).Order("id ASC").Find(&annotations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations for image ID %d: %w", infoID, err)
	}
	return annotations, nil
}
