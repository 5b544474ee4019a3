package models

// Annotation represents one labeled bounding box on an image, in
// original-image pixel coordinates. Rows for an image are always written
// as a complete replacement set.
type Annotation struct {
	ID     uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	InfoID uint    `gorm:"not null;index" json:"info_id"`
	Label  string  `gorm:"not null;default:''" json:"label"` // may be empty pending OCR/labeling
	X      float64 `gorm:"not null" json:"x"`
	Y      float64 `gorm:"not null" json:"y"`
	Width  float64 `gorm:"not null" json:"width"`
	Height float64 `gorm:"not null" json:"height"`
}

// TableName explicitly sets the table name for GORM.
func (Annotation) TableName() string {
	return "annotations"
}
