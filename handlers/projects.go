package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/easylabel/easylabel-backend/database"
)

// ProjectHandler serves the project list views and project creation. Projects
// are not rows of their own; they are groups of metadata records keyed by
// (project_name, project_id).
type ProjectHandler struct {
	DB database.Querier
}

func NewProjectHandler(db database.Querier) *ProjectHandler {
	return &ProjectHandler{DB: db}
}

// ListMine returns the user's own projects, newest first.
func (ph *ProjectHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}
	writeJSON(w, http.StatusOK, database.ListMyProjects(ph.DB, user.Username))
}

// ListShared returns projects containing images assigned to the user by
// someone else.
func (ph *ProjectHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}
	writeJSON(w, http.StatusOK, database.ListSharedProjects(ph.DB, user.Username))
}

type createProjectPayload struct {
	Name string `json:"name"`
}

type createProjectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Create reserves a new project for the user. The returned id is the storage
// prefix uploads into this project must use. A project only becomes visible
// in the list views once its first image lands.
func (ph *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	var payload createProjectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_fields", "Project name is required")
		return
	}

	if database.ProjectNameExists(ph.DB, name, user.Username) {
		WriteAPIError(w, http.StatusConflict, "duplicate_project", "A project with this name already exists")
		return
	}

	projectID, _ := uuid.NewRandom()
	writeJSON(w, http.StatusCreated, createProjectResponse{
		ID:   projectID.String()[:8],
		Name: name,
	})
}

// Progress returns per-status image counts for the user's working set in the
// project.
func (ph *ProjectHandler) Progress(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}
	projectID := chi.URLParam(r, "projectID")
	writeJSON(w, http.StatusOK, database.StatusCounts(ph.DB, projectID, user.Username))
}

// Uploaders returns the distinct uploader ids within a project, for the
// creator filter dropdown.
func (ph *ProjectHandler) Uploaders(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	writeJSON(w, http.StatusOK, database.UsersWithUploads(ph.DB, projectID))
}
