package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/easylabel/easylabel-backend/repository"
	"github.com/easylabel/easylabel-backend/viewstate"
)

// ViewHandler exposes the per-user view state: current screen, review flag,
// active project and page cursor.
type ViewHandler struct {
	Views     *viewstate.Manager
	ImageRepo repository.ImageRepositoryInterface
}

type viewStateResponse struct {
	Mode           string `json:"mode"`
	ReviewMode     bool   `json:"review_mode"`
	ProjectID      string `json:"project_id"`
	Page           int    `json:"page"`
	CurrentImage   string `json:"current_image,omitempty"`
	CurrentImageID uint   `json:"current_image_id,omitempty"`
}

func (vh *ViewHandler) viewStateOf(session *viewstate.Session) viewStateResponse {
	mode, review := session.Mode()
	resp := viewStateResponse{
		Mode:       mode.String(),
		ReviewMode: review,
		ProjectID:  session.ProjectID(),
		Page:       session.CurrentPage(),
	}
	if current, ok := session.CurrentImage(); ok {
		resp.CurrentImage = current
		// the id is what annotation and status endpoints key on; a stale
		// path simply resolves to nothing
		if id, err := vh.ImageRepo.IDByStoragePath(current); err == nil {
			resp.CurrentImageID = id
		}
	}
	return resp
}

// Get returns the caller's current view state.
func (vh *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}
	writeJSON(w, http.StatusOK, vh.viewStateOf(vh.Views.Get(user.Username)))
}

type viewStatePayload struct {
	Mode       *string `json:"mode,omitempty"`
	ReviewMode *bool   `json:"review_mode,omitempty"`
	ProjectID  *string `json:"project_id,omitempty"`
	Page       *int    `json:"page,omitempty"`
}

// Put applies partial updates to the caller's view state. The page cursor is
// reconciled against the current image list before the state is returned.
func (vh *ViewHandler) Put(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "context_error", "User not found in context")
		return
	}

	var payload viewStatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	session := vh.Views.Get(user.Username)

	if payload.Mode != nil {
		mode, err := viewstate.ParseMode(*payload.Mode)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_mode", err.Error())
			return
		}
		_, review := session.Mode()
		if payload.ReviewMode != nil {
			review = *payload.ReviewMode
		}
		session.SetMode(mode, review)
	} else if payload.ReviewMode != nil {
		mode, _ := session.Mode()
		session.SetMode(mode, *payload.ReviewMode)
	}

	if payload.ProjectID != nil {
		session.SetProjectID(*payload.ProjectID)
	}
	if payload.Page != nil {
		session.SetCurrentPage(*payload.Page)
	}
	session.Reconcile()

	writeJSON(w, http.StatusOK, vh.viewStateOf(session))
}
