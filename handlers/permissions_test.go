package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easylabel/easylabel-backend/permissions"
)

func TestListPermissionsCatalog(t *testing.T) {
	rec := httptest.NewRecorder()
	ListPermissions(rec, httptest.NewRequest(http.MethodGet, "/api/permissions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var defs []permissions.PermissionDefinition
	if err := json.NewDecoder(rec.Body).Decode(&defs); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	keys := make(map[string]bool)
	for _, def := range defs {
		keys[def.Key] = true
	}
	if !keys[permissions.ImageAssign] || !keys[permissions.ImageDeleteAny] {
		t.Errorf("catalog missing expected keys: %v", keys)
	}
}
