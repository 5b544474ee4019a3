package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/easylabel/easylabel-backend/config"
	"github.com/easylabel/easylabel-backend/database"
	"github.com/easylabel/easylabel-backend/models"
	"github.com/easylabel/easylabel-backend/objectstore"
	"github.com/easylabel/easylabel-backend/permissions"
	"github.com/easylabel/easylabel-backend/repository"
	"github.com/easylabel/easylabel-backend/utils"
	"github.com/easylabel/easylabel-backend/viewstate"
	"github.com/easylabel/easylabel-backend/workflow"
)

const maxUploadBytes = 256 << 20 // whole multipart request

// ImageHandler serves upload, listing, deletion and lifecycle transitions.
type ImageHandler struct {
	Cfg       config.Config
	Store     objectstore.Store
	ImageRepo repository.ImageRepositoryInterface
	DB        database.Querier
	Machine   *workflow.Machine
	Views     *viewstate.Manager
}

type uploadResult struct {
	Filename string `json:"filename"`
	ID       uint   `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Upload accepts a multipart request with project_id, project_name and one or
// more files. Each file is stored, its dimensions probed, and a metadata
// record inserted with status unassigned. Per-file failures are reported
// alongside successes rather than failing the batch.
func (ih *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_multipart", "Failed to parse multipart request: "+err.Error())
		return
	}

	projectID := r.FormValue("project_id")
	projectName := r.FormValue("project_name")
	if projectID == "" || projectName == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "project_id and project_name are required")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_files", "At least one file is required")
		return
	}

	var results []uploadResult
	for _, header := range files {
		result := uploadResult{Filename: header.Filename}
		id, err := ih.storeOne(header.Filename, header, projectID, projectName, user)
		if err != nil {
			log.Printf("images: upload of %s failed: %v", header.Filename, err)
			result.Error = err.Error()
		} else {
			result.ID = id
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"results": results})
}

func (ih *ImageHandler) storeOne(filename string, header *multipart.FileHeader, projectID, projectName string, user *models.User) (uint, error) {
	if !utils.IsImageFile(filename) {
		return 0, errors.New("unsupported file type")
	}

	storagePath := path.Join(projectID, filename)
	if _, err := ih.ImageRepo.GetByStoragePath(storagePath); err == nil {
		return 0, errors.New("an image with this name already exists in the project")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	src, err := header.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "easylabel-upload-*"+path.Ext(filename))
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		return 0, err
	}

	meta, err := utils.ProbeMetadata(tmp.Name())
	if err != nil {
		return 0, err
	}

	if _, err := tmp.Seek(0, 0); err != nil {
		return 0, err
	}
	if err := ih.Store.Put(ih.Cfg.Bucket, storagePath, tmp, ""); err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	image := &models.Image{
		Filename:       filename,
		ProjectName:    projectName,
		ProjectID:      projectID,
		StoragePath:    storagePath,
		Status:         string(workflow.StatusUnassigned),
		Width:          meta.Width,
		Height:         meta.Height,
		CreatedBy:      user.Username,
		CreatedAt:      now,
		TakenAt:        meta.TakenAt,
		LastModifiedBy: user.Username,
		LastModifiedAt: now,
	}
	if err := ih.ImageRepo.Create(image); err != nil {
		// keep the store consistent with the metadata table
		if delErr := ih.Store.Delete(ih.Cfg.Bucket, storagePath); delErr != nil {
			log.Printf("images: failed to remove orphaned object %s: %v", storagePath, delErr)
		}
		return 0, err
	}
	return image.ID, nil
}

// List returns the ordered storage paths matching the query filters and
// updates the session's working list so the page cursor stays valid.
func (ih *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	q := r.URL.Query()
	projectID := q.Get("project_id")
	if projectID == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "project_id is required")
		return
	}

	sortOrder := q.Get("sort")
	if sortOrder == "" {
		sortOrder = database.DefaultSortOrder
	}
	if !database.IsValidSortOrder(sortOrder) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_sort", "Unknown sort order: "+sortOrder)
		return
	}

	if s := q.Get("status"); s != "" {
		if _, err := workflow.ParseStatus(s); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_status", "Unknown status: "+s)
			return
		}
	}

	paths := database.FilteredImages(ih.DB, database.ImageFilter{
		ProjectID: projectID,
		UserID:    user.Username,
		Status:    q.Get("status"),
		CreatedBy: q.Get("created_by"),
		Sort:      sortOrder,
	})

	session := ih.Views.Get(user.Username)
	session.SetProjectID(projectID)
	session.SetImages(paths)

	window, page, totalPages := pageWindow(paths, session.CurrentPage(), ih.Cfg.PageSize)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"images":      window,
		"page":        page,
		"page_size":   ih.Cfg.PageSize,
		"total_pages": totalPages,
		"total":       len(paths),
	})
}

// pageWindow slices the ordered path list into the grid page containing the
// session cursor. The cursor indexes images, not pages.
func pageWindow(paths []string, cursor, size int) ([]string, int, int) {
	if size <= 0 || len(paths) == 0 {
		return []string{}, 0, 0
	}
	totalPages := (len(paths) + size - 1) / size
	page := cursor / size
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * size
	end := start + size
	if end > len(paths) {
		end = len(paths)
	}
	return paths[start:end], page, totalPages
}

// WorkingSet loads the caller's labeling queue for a project: images assigned
// to them or, with review=true, images awaiting review. The session switches
// into labeling mode so the page cursor follows this list.
func (ih *ImageHandler) WorkingSet(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "project_id is required")
		return
	}

	review := r.URL.Query().Get("review") == "true"
	status := workflow.StatusAssigned
	if review {
		status = workflow.StatusReview
	}

	paths := database.PathsByStatus(ih.DB, projectID, user.Username, string(status))

	session := ih.Views.Get(user.Username)
	session.SetProjectID(projectID)
	session.SetMode(viewstate.ModeLabeling, review)
	session.SetImages(paths)

	resp := map[string]interface{}{
		"images": paths,
		"page":   session.CurrentPage(),
	}
	if current, ok := session.CurrentImage(); ok {
		resp["current_image"] = current
	}
	writeJSON(w, http.StatusOK, resp)
}

type deleteImagesPayload struct {
	IDs []uint `json:"ids"`
}

// Delete removes image records, their annotations and their stored objects.
// Users may delete their own uploads; deleting anything else requires the
// image.delete_any permission.
func (ih *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	var payload deleteImagesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	if len(payload.IDs) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "ids is required")
		return
	}

	if !user.HasGlobalPermission(permissions.ImageDeleteAny) {
		owned, err := ih.ImageRepo.CountOwnedByIDs(payload.IDs, user.Username)
		if err != nil {
			WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to verify ownership")
			return
		}
		if owned != int64(len(payload.IDs)) {
			WriteAPIError(w, http.StatusForbidden, "forbidden", "You can only delete your own uploads")
			return
		}
	}

	images, err := ih.ImageRepo.ListByIDs(payload.IDs)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "Failed to load images")
		return
	}

	deleted := 0
	for _, image := range images {
		if err := ih.ImageRepo.Delete(image.ID); err != nil {
			log.Printf("images: failed to delete record %d: %v", image.ID, err)
			continue
		}
		if err := ih.Store.Delete(ih.Cfg.Bucket, image.StoragePath); err != nil {
			log.Printf("images: failed to delete object %s: %v", image.StoragePath, err)
		}
		deleted++
	}

	session := ih.Views.Get(user.Username)
	session.Reconcile()

	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

type transitionPayload struct {
	Status     string `json:"status"`
	TargetUser string `json:"target_user,omitempty"`
}

// Transition applies a single lifecycle transition to one image.
func (ih *ImageHandler) Transition(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	imageID, err := parseUintParam(r, "imageID")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid image id")
		return
	}

	var payload transitionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	target, err := workflow.ParseStatus(payload.Status)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	image, err := ih.Machine.Transition(workflow.Request{
		ImageID:    imageID,
		Target:     target,
		Actor:      user,
		TargetUser: payload.TargetUser,
	})
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, image)
}

type bulkTransitionPayload struct {
	IDs        []uint `json:"ids"`
	Status     string `json:"status"`
	TargetUser string `json:"target_user,omitempty"`
}

// TransitionBulk applies the same transition to several images, stopping at
// the first failure.
func (ih *ImageHandler) TransitionBulk(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	var payload bulkTransitionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	if len(payload.IDs) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "ids is required")
		return
	}
	target, err := workflow.ParseStatus(payload.Status)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	applied, err := ih.Machine.TransitionAll(payload.IDs, target, user, payload.TargetUser)
	if err != nil {
		log.Printf("images: bulk transition stopped after %d of %d: %v", applied, len(payload.IDs), err)
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"applied": applied,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		WriteAPIError(w, http.StatusNotFound, "not_found", "Image not found")
	case errors.Is(err, workflow.ErrInvalidTransition):
		WriteAPIError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, workflow.ErrNotPermitted):
		WriteAPIError(w, http.StatusForbidden, "forbidden", "Not permitted to perform this transition")
	default:
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "Transition failed")
	}
}

func parseUintParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
