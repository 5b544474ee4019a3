package utils

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

type Metadata struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	TakenAt *int64 `json:"taken_at,omitempty"`
}

// ProbeMetadata reads pixel dimensions and, when EXIF data is present, the
// capture timestamp of the image file at filePath.
func ProbeMetadata(filePath string) (*Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to decode dimensions of %s: %w", filePath, err)
	}
	meta := &Metadata{Width: config.Width, Height: config.Height}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek file %s: %w", filePath, err)
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		// not necessarily a problem, file might just lack EXIF data
		log.Printf("metadata: No EXIF data found for %s: %v", filePath, err)
		return meta, nil
	}

	dt, err := exifData.DateTime()
	if err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta, nil
}
