package routes

import (
	"Snapfeed/internal/api/handlers/files"

	"github.com/go-chi/chi/v5"
)

// RegisterFileRoutes serves uploaded images for blob backends without a
// public endpoint (the in-memory store).
func RegisterFileRoutes(r chi.Router, opener files.Opener) {
	r.Get("/files/{id}/view", files.NewHandler(opener).HandleView)
}
