package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/disintegration/imaging"
	"gorm.io/gorm"

	"github.com/easylabel/easylabel-backend/annotate"
	"github.com/easylabel/easylabel-backend/config"
	"github.com/easylabel/easylabel-backend/models"
	"github.com/easylabel/easylabel-backend/objectstore"
	"github.com/easylabel/easylabel-backend/repository"
)

// AnnotationHandler serves loading and saving of bounding boxes plus the
// OCR-assisted endpoints.
type AnnotationHandler struct {
	Cfg            config.Config
	Store          objectstore.Store
	ImageRepo      repository.ImageRepositoryInterface
	AnnotationRepo repository.AnnotationRepositoryInterface
	Engine         *annotate.Engine
}

func (ah *AnnotationHandler) loadImage(w http.ResponseWriter, r *http.Request) (*models.Image, bool) {
	imageID, err := parseUintParam(r, "imageID")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid image id")
		return nil, false
	}
	image, err := ah.ImageRepo.GetByID(imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
		} else {
			WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to load image")
		}
		return nil, false
	}
	return image, true
}

// Get returns the persisted annotation set for an image, ids renumbered 1..N.
func (ah *AnnotationHandler) Get(w http.ResponseWriter, r *http.Request) {
	image, ok := ah.loadImage(w, r)
	if !ok {
		return
	}

	rows, err := ah.AnnotationRepo.ListByImage(image.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to load annotations")
		return
	}
	set := annotate.SetFromModels(rows)
	writeJSON(w, http.StatusOK, map[string]interface{}{"annotations": set.Items()})
}

type saveAnnotationsPayload struct {
	Annotations []annotate.Annotation `json:"annotations"`
}

// Put replaces the image's annotation set as a whole. The write is
// transactional so a failure never leaves a partial set.
func (ah *AnnotationHandler) Put(w http.ResponseWriter, r *http.Request) {
	image, ok := ah.loadImage(w, r)
	if !ok {
		return
	}

	var payload saveAnnotationsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	set := annotate.NewSet(payload.Annotations)
	if err := ah.AnnotationRepo.ReplaceForImage(image.ID, set.ToModels(image.ID)); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to save annotations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"annotations": set.Items()})
}

// Detect runs text-region detection over the image and returns the persisted
// set merged with any newly detected boxes. Nothing is written; the client
// saves the merged set explicitly.
func (ah *AnnotationHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if !ah.Engine.DetectionEnabled() {
		WriteAPIError(w, http.StatusServiceUnavailable, "detection_disabled", "Text detection is not enabled")
		return
	}

	image, ok := ah.loadImage(w, r)
	if !ok {
		return
	}

	tmpPath, err := ah.Store.Get(ah.Cfg.Bucket, image.StoragePath)
	if err != nil {
		WriteAPIError(w, http.StatusBadGateway, "store_error", "Failed to fetch image from storage")
		return
	}
	defer os.Remove(tmpPath)

	quads, err := ah.Engine.DetectRegions(tmpPath)
	if err != nil {
		log.Printf("annotations: detection failed for %s: %v", image.StoragePath, err)
		WriteAPIError(w, http.StatusInternalServerError, "detection_error", "Text detection failed")
		return
	}

	rows, err := ah.AnnotationRepo.ListByImage(image.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to load annotations")
		return
	}
	set := annotate.SetFromModels(rows)
	added := set.AppendDetections(quads)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"annotations": set.Items(),
		"added":       added,
	})
}

type ocrPayload struct {
	BBox annotate.BBox `json:"bbox"`
}

// OCR returns label suggestions for one box. An unreadable or empty region
// produces the placeholder suggestion, never an error response from the
// recognizer itself.
func (ah *AnnotationHandler) OCR(w http.ResponseWriter, r *http.Request) {
	image, ok := ah.loadImage(w, r)
	if !ok {
		return
	}

	var payload ocrPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	if _, err := annotate.ClampToImage(payload.BBox, image.Width, image.Height); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_region", "Region is empty or outside the image")
		return
	}

	tmpPath, err := ah.Store.Get(ah.Cfg.Bucket, image.StoragePath)
	if err != nil {
		WriteAPIError(w, http.StatusBadGateway, "store_error", "Failed to fetch image from storage")
		return
	}
	defer os.Remove(tmpPath)

	img, err := imaging.Open(tmpPath)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "decode_error", "Failed to decode image")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": ah.Engine.SuggestLabels(img, payload.BBox),
	})
}
