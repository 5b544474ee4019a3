package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/easylabel/easylabel-backend/annotate"
	"github.com/easylabel/easylabel-backend/config"
	"github.com/easylabel/easylabel-backend/export"
	"github.com/easylabel/easylabel-backend/objectstore"
	"github.com/easylabel/easylabel-backend/repository"
)

// ExportHandler builds annotation archives and hands back a signed download
// URL.
type ExportHandler struct {
	Cfg            config.Config
	Store          objectstore.Store
	ImageRepo      repository.ImageRepositoryInterface
	AnnotationRepo repository.AnnotationRepositoryInterface
}

type exportPayload struct {
	IDs           []uint `json:"ids"`
	Format        string `json:"format"`
	IncludeImages bool   `json:"include_images"`
}

type exportResponse struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Create builds a ZIP archive of label files (and optionally image bytes) for
// the selected images and responds with a presigned download URL.
func (eh *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload exportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	if len(payload.IDs) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "ids is required")
		return
	}
	format, err := export.ParseFormat(payload.Format)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}

	images, err := eh.ImageRepo.ListByIDs(payload.IDs)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to load images")
		return
	}
	if len(images) == 0 {
		WriteAPIError(w, http.StatusNotFound, "not_found", "No matching images")
		return
	}

	var tempFiles []string
	defer func() {
		for _, f := range tempFiles {
			os.Remove(f)
		}
	}()

	items := make([]export.Item, 0, len(images))
	for _, image := range images {
		rows, err := eh.AnnotationRepo.ListByImage(image.ID)
		if err != nil {
			WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to load annotations")
			return
		}
		item := export.Item{
			Filename:    image.Filename,
			Width:       image.Width,
			Height:      image.Height,
			Annotations: annotate.SetFromModels(rows).Items(),
		}
		if payload.IncludeImages {
			tmpPath, err := eh.Store.Get(eh.Cfg.Bucket, image.StoragePath)
			if err != nil {
				log.Printf("export: failed to fetch %s, omitting image bytes: %v", image.StoragePath, err)
			} else {
				tempFiles = append(tempFiles, tmpPath)
				item.ImagePath = tmpPath
			}
		}
		items = append(items, item)
	}

	zipPath, size, err := export.BuildArchive(eh.Cfg.ArchivesPath, format, payload.IncludeImages, items)
	if err != nil {
		log.Printf("export: archive build failed: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "export_error", "Failed to build export archive")
		return
	}

	// archives live in their own bucket next to the image bucket
	archiveBucket := filepath.Base(eh.Cfg.ArchivesPath)
	ttl := time.Duration(eh.Cfg.PresignedURLTTL) * time.Second
	url, err := eh.Store.PresignedURL(archiveBucket, filepath.Base(zipPath), ttl)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "sign_error", "Failed to sign download URL")
		return
	}

	writeJSON(w, http.StatusCreated, exportResponse{URL: url, Size: size})
}
