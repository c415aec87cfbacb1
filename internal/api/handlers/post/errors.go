package post

import (
	"errors"
	"log/slog"
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/social"
)

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case posts.IsValidationError(err):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())

	case errors.Is(err, posts.ErrNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Post not found")

	// Mutation failures are recoverable: local state already moved and the
	// client may retry.
	case social.IsMutationError(err):
		slog.Warn("social mutation failed", "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "MutationFailed", err.Error())

	case errors.Is(err, documents.ErrRateLimited):
		handlers.WriteError(w, http.StatusTooManyRequests, "RateLimitExceeded",
			"Document store rate limit exceeded. Please try again later.")

	case documents.IsTransportFailure(err):
		slog.Warn("document store unavailable", "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "StoreUnavailable",
			"The document store is unavailable")

	default:
		// Don't leak internal error details to clients
		slog.Error("unexpected error in post handler", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError",
			"An internal error occurred")
	}
}
