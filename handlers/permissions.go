package handlers

import (
	"net/http"

	"github.com/easylabel/easylabel-backend/permissions"
)

// ListPermissions returns the statically defined permission catalog, used by
// clients to render permission pickers.
func ListPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissions.DefinedPermissions)
}
