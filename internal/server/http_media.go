package server

import (
	"errors"
	"net/http"

	"github.com/arenvale/fieldnet/internal/blob"
)

// mediaURL returns the public URL for a stored blob path.
func mediaURL(path string) string {
	return "/v1/media/" + path
}

// handleGetMedia handles GET /v1/media/{path...}.
func (s *FieldServer) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		writeError(w, http.StatusNotFound, "media storage is not configured")
		return
	}
	path := r.PathValue("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	data, err := s.blobs.Get(r.Context(), path)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read media")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
