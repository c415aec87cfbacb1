package post

import (
	"net/http"
	"strings"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/core/posts"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// UpdateHandler handles post edits
type UpdateHandler struct {
	service posts.Service
	users   *common.CurrentUserLoader
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(service posts.Service, users *common.CurrentUserLoader) *UpdateHandler {
	return &UpdateHandler{
		service: service,
		users:   users,
	}
}

// HandleUpdate handles PUT /api/posts/{id}
// Multipart fields: caption, location, tags, and optionally file to replace
// the image. Omitted fields keep their current value.
func (h *UpdateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)

	user, ok := h.users.RequireUser(w, r)
	if !ok {
		return
	}

	current, ok := loadOwnedPost(w, r, h.service, user.ID)
	if !ok {
		return
	}

	file, err := readFormFile(r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	location := optionalFormValue(r, "location")
	if location == nil {
		location = current.Location
	}

	post, err := h.service.UpdatePost(r.Context(), posts.UpdatePost{
		PostID:   current.ID,
		ImageID:  current.ImageID,
		ImageURL: current.ImageURL,
		Caption:  lo.FromPtrOr(optionalFormValue(r, "caption"), current.Caption),
		Tags:     lo.FromPtrOr(optionalFormValue(r, "tags"), strings.Join(current.Tags, ",")),
		Location: location,
		File:     file,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, post)
}

// loadOwnedPost reads the post named by the {id} route parameter and checks
// that userID created it. The boolean is false when a reply was written.
func loadOwnedPost(w http.ResponseWriter, r *http.Request, service posts.Service, userID string) (*posts.Post, bool) {
	post, err := service.GetPostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if post.Creator.ID != userID {
		handlers.WriteError(w, http.StatusForbidden, "NotAuthorized",
			"Only the creator can modify this post")
		return nil, false
	}
	return post, true
}
