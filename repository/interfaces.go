package repository

import (
	"github.com/easylabel/easylabel-backend/models"
)

// ImageRepositoryInterface defines the methods for image metadata operations
type ImageRepositoryInterface interface {
	Create(image *models.Image) error
	GetByID(id uint) (*models.Image, error)
	GetByStoragePath(storagePath string) (*models.Image, error)
	IDByStoragePath(storagePath string) (uint, error)
	UpdateStatus(id uint, status string, assignedBy *string, actor string, now int64) error
	Delete(id uint) error
	ListByIDs(ids []uint) ([]models.Image, error)
	CountOwnedByIDs(ids []uint, userID string) (int64, error)
}

// AnnotationRepositoryInterface defines the methods for annotation operations
type AnnotationRepositoryInterface interface {
	ReplaceForImage(infoID uint, annotations []models.Annotation) error
	ListByImage(infoID uint) ([]models.Annotation, error)
}

// UserRepositoryInterface defines the methods for user data operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
}
