package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easylabel/easylabel-backend/repository"
	"github.com/easylabel/easylabel-backend/viewstate"
)

func TestViewStateResolvesCurrentImageID(t *testing.T) {
	gdb, _ := handlerDB(t)
	seedHandlerImage(t, gdb, "p1/a.jpg", "assigned", "u1", "u1", 100)

	views := viewstate.NewManager()
	session := views.Get("u1")
	session.SetProjectID("p1")
	session.SetImages([]string{"p1/a.jpg"})

	vh := &ViewHandler{Views: views, ImageRepo: repository.NewImageRepository(gdb)}

	rec := httptest.NewRecorder()
	vh.Get(rec, authed(httptest.NewRequest(http.MethodGet, "/api/view", nil), "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CurrentImage   string `json:"current_image"`
		CurrentImageID uint   `json:"current_image_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentImage != "p1/a.jpg" {
		t.Errorf("current_image = %s, want p1/a.jpg", resp.CurrentImage)
	}
	if resp.CurrentImageID == 0 {
		t.Error("current_image_id was not resolved")
	}

	// a path without a metadata row leaves the id unset
	session.SetImages([]string{"p1/ghost.jpg"})
	rec = httptest.NewRecorder()
	vh.Get(rec, authed(httptest.NewRequest(http.MethodGet, "/api/view", nil), "u1"))
	var stale struct {
		CurrentImageID uint `json:"current_image_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stale); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stale.CurrentImageID != 0 {
		t.Errorf("stale path resolved to id %d, want 0", stale.CurrentImageID)
	}
}
