package post

import (
	"net/http"

	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/core/posts"
)

// DeleteHandler handles post deletion
type DeleteHandler struct {
	service posts.Service
	users   *common.CurrentUserLoader
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(service posts.Service, users *common.CurrentUserLoader) *DeleteHandler {
	return &DeleteHandler{
		service: service,
		users:   users,
	}
}

// HandleDelete handles DELETE /api/posts/{id}?imageId=
// imageId defaults to the post's stored image. Only the creator may delete.
func (h *DeleteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.users.RequireUser(w, r)
	if !ok {
		return
	}

	post, ok := loadOwnedPost(w, r, h.service, user.ID)
	if !ok {
		return
	}

	imageID := r.URL.Query().Get("imageId")
	if imageID == "" {
		imageID = post.ImageID
	}

	if err := h.service.DeletePost(r.Context(), post.ID, imageID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
