package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easylabel/easylabel-backend/annotate"
)

// Format selects the label file layout written into an export archive.
type Format string

const (
	FormatYOLO Format = "yolo"
	FormatVOC  Format = "voc"
)

// ParseFormat validates a requested export format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatYOLO:
		return FormatYOLO, nil
	case FormatVOC:
		return FormatVOC, nil
	}
	return "", fmt.Errorf("unsupported export format '%s'", s)
}

// Item is one image selected for export. ImagePath points at a local copy of
// the image bytes; it may be empty when images are excluded from the archive.
type Item struct {
	Filename    string
	Width       int
	Height      int
	Annotations []annotate.Annotation
	ImagePath   string
}

// BuildArchive writes a ZIP archive into archiveSaveDir containing a label
// file per item under labels/ and, when includeImages is set, the image bytes
// under images/. Returns the full path and size of the created archive.
// Returns an error if no item could be written.
func BuildArchive(archiveSaveDir string, format Format, includeImages bool, items []Item) (string, int64, error) {
	if err := os.MkdirAll(archiveSaveDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create export save directory %s: %w", archiveSaveDir, err)
	}

	timestamp := time.Now().Unix()
	archiveUUID, _ := uuid.NewRandom()
	zipFilename := fmt.Sprintf("export_%d_%s.zip", timestamp, archiveUUID.String()[:8])
	zipFilePath := filepath.Join(archiveSaveDir, zipFilename)

	zipFile, err := os.Create(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create export file %s: %w", zipFilePath, err)
	}
	zipWriter := zip.NewWriter(zipFile)

	wroteAny := false
	for _, item := range items {
		content, labelName, err := labelEntry(format, item)
		if err != nil {
			log.Printf("export: Failed to render labels for %s: %v. Skipping.", item.Filename, err)
			continue
		}

		writer, err := zipWriter.Create(path.Join("labels", labelName))
		if err != nil {
			log.Printf("export: Failed to create label entry for %s: %v. Skipping.", item.Filename, err)
			continue
		}
		if _, err := writer.Write([]byte(content)); err != nil {
			log.Printf("export: Failed to write label entry for %s: %v. Skipping.", item.Filename, err)
			continue
		}

		if includeImages && item.ImagePath != "" {
			if err := addImageEntry(zipWriter, item); err != nil {
				log.Printf("export: Failed to add image %s: %v. Skipping image.", item.Filename, err)
			}
		}
		wroteAny = true
	}

	if !wroteAny {
		zipWriter.Close()
		zipFile.Close()
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("no exportable items")
	}

	if err := zipWriter.Close(); err != nil {
		zipFile.Close()
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("failed to finalize export archive %s: %w", zipFilePath, err)
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(zipFilePath)
		return "", 0, fmt.Errorf("failed to close export archive %s: %w", zipFilePath, err)
	}

	zipInfo, err := os.Stat(zipFilePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat export archive %s: %w", zipFilePath, err)
	}

	log.Printf("export: Created archive %s (Size: %d bytes)", zipFilePath, zipInfo.Size())
	return zipFilePath, zipInfo.Size(), nil
}

func labelEntry(format Format, item Item) (string, string, error) {
	base := strings.TrimSuffix(item.Filename, path.Ext(item.Filename))
	switch format {
	case FormatYOLO:
		content, err := YOLOContent(item.Width, item.Height, item.Annotations)
		return content, base + ".txt", err
	case FormatVOC:
		content, err := VOCContent(item.Filename, item.Width, item.Height, item.Annotations)
		return content, base + ".xml", err
	}
	return "", "", fmt.Errorf("unsupported export format '%s'", format)
}

func addImageEntry(zipWriter *zip.Writer, item Item) error {
	src, err := os.Open(item.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", item.ImagePath, err)
	}
	defer src.Close()

	writer, err := zipWriter.Create(path.Join("images", item.Filename))
	if err != nil {
		return fmt.Errorf("failed to create image entry: %w", err)
	}
	if _, err := io.Copy(writer, src); err != nil {
		return fmt.Errorf("failed to write image bytes: %w", err)
	}
	return nil
}
