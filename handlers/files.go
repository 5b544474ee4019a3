package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/easylabel/easylabel-backend/objectstore"
)

// FileHandler serves objects referenced by presigned URLs. It is the only
// unauthenticated data endpoint; the HMAC signature and expiry gate access.
type FileHandler struct {
	Store *objectstore.LocalObjectStore
}

// Serve validates the signature and expiry on a presigned URL and streams the
// object.
func (fh *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	// the wildcard param may still carry the escaping the presigned URL was
	// issued with; signatures are computed over the raw key
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_path", "Malformed object key")
		return
	}
	if bucket == "" || key == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_path", "Bucket and key are required")
		return
	}

	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_expiry", "Invalid or missing expires parameter")
		return
	}
	signature := r.URL.Query().Get("signature")

	if !fh.Store.VerifySignature(bucket, key, expires, signature) {
		WriteAPIError(w, http.StatusForbidden, "invalid_signature", "URL signature is invalid or expired")
		return
	}

	fullPath, err := fh.Store.FullPath(bucket, key)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_path", "Invalid object path")
		return
	}
	http.ServeFile(w, r, fullPath)
}
