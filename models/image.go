package models

// Image represents one uploaded image's metadata record.
// It corresponds to the 'metadata' table.
type Image struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename    string `gorm:"not null" json:"filename"`
	ProjectName string `gorm:"not null;index" json:"project_name"`
	ProjectID   string `gorm:"not null;index" json:"project_id"` // first path segment of StoragePath
	StoragePath string `gorm:"not null;uniqueIndex" json:"storage_path"`
	Status      string `gorm:"not null;default:unassigned;index" json:"status"`

	Width  int `gorm:"not null" json:"width"`
	Height int `gorm:"not null" json:"height"`

	CreatedBy string `gorm:"not null;index" json:"created_by"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Unix timestamp
	TakenAt   *int64 `gorm:"" json:"taken_at,omitempty"` // Nullable, from EXIF

	// AssignedBy holds the user who owns the next workflow action. Its
	// semantics depend on Status; NULL only while unassigned.
	AssignedBy *string `gorm:"index" json:"assigned_by,omitempty"`

	LastModifiedBy string `gorm:"not null" json:"last_modified_by"`
	LastModifiedAt int64  `gorm:"not null" json:"last_modified_at"`

	// Relationships
	Annotations []Annotation `gorm:"foreignKey:InfoID;constraint:OnDelete:CASCADE" json:"annotations,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "metadata"
}
