package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/core/blobs"

	"github.com/go-chi/chi/v5"
)

// Opener reads stored file content. Implemented by blobs.MemoryStore.
type Opener interface {
	Open(ctx context.Context, fileID string) (blobs.File, error)
}

// Handler serves files from a blob store that has no public endpoint of its own.
type Handler struct {
	files Opener
}

// NewHandler creates a new file handler.
func NewHandler(files Opener) *Handler {
	return &Handler{files: files}
}

// HandleView handles GET /files/{id}/view
// File IDs are never reused, so responses are cacheable forever.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	if fileID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "file ID is required")
		return
	}

	// Generate ETag for caching
	etag := fmt.Sprintf(`"%s"`, fileID)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	file, err := h.files.Open(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, blobs.ErrFileNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "NotFound", "File not found")
			return
		}
		slog.Warn("failed to open file", "file_id", fileID, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "StoreUnavailable", "Could not read file")
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		slog.Warn("failed to write file response", "file_id", fileID, "error", err)
	}
}
