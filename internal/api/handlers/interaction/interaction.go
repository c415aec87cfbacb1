package interaction

import (
	"errors"
	"log/slog"
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/social"

	"github.com/go-chi/chi/v5"
)

// LikeResponse reports the likes set after a toggle.
type LikeResponse struct {
	Likes []string `json:"likes"`
	Liked bool     `json:"liked"`
}

// SaveResponse reports the saved state after a toggle.
type SaveResponse struct {
	Saved bool `json:"saved"`
}

// InteractionHandler handles like and save toggles
type InteractionHandler struct {
	posts   posts.Service
	users   *common.CurrentUserLoader
	mutator *social.Mutator
}

// NewInteractionHandler creates a new interaction handler
func NewInteractionHandler(postService posts.Service, users *common.CurrentUserLoader, mutator *social.Mutator) *InteractionHandler {
	return &InteractionHandler{
		posts:   postService,
		users:   users,
		mutator: mutator,
	}
}

// HandleLike handles POST /api/posts/{id}/like
// Toggles the caller's like and writes the whole likes array back.
func (h *InteractionHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	state, ok := h.state(w, r)
	if !ok {
		return
	}

	likes, err := state.ToggleLike(r.Context())
	if err != nil {
		writeMutationError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, LikeResponse{
		Likes: likes,
		Liked: state.Liked(),
	})
}

// HandleSave handles POST /api/posts/{id}/save
// Creates a save record, or deletes the caller's existing one.
func (h *InteractionHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	state, ok := h.state(w, r)
	if !ok {
		return
	}

	if err := state.ToggleSave(r.Context()); err != nil {
		writeMutationError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, SaveResponse{Saved: state.Saved()})
}

// state builds the caller's social state on the post from fresh reads.
func (h *InteractionHandler) state(w http.ResponseWriter, r *http.Request) (*social.PostState, bool) {
	user, ok := h.users.RequireUser(w, r)
	if !ok {
		return nil, false
	}

	post, err := h.posts.GetPostByID(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		return h.mutator.State(post, user), true
	case posts.IsValidationError(err):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	case errors.Is(err, posts.ErrNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Post not found")
	default:
		slog.Warn("failed to load post for interaction", "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "StoreUnavailable", "The document store is unavailable")
	}
	return nil, false
}

// writeMutationError reports a failed write. The client keeps its optimistic
// state and may retry.
func writeMutationError(w http.ResponseWriter, err error) {
	var mutErr *social.MutationError
	if !errors.As(err, &mutErr) {
		slog.Error("unexpected error in interaction handler", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
		return
	}

	slog.Warn("social mutation failed",
		"op", mutErr.Op,
		"post_id", mutErr.PostID,
		"error", mutErr.Err)

	switch {
	case errors.Is(err, documents.ErrNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Post or save record not found")
	case errors.Is(err, documents.ErrRateLimited):
		handlers.WriteError(w, http.StatusTooManyRequests, "RateLimitExceeded",
			"Document store rate limit exceeded. Please try again later.")
	default:
		handlers.WriteError(w, http.StatusBadGateway, "MutationFailed", "The change could not be saved. Please retry.")
	}
}
