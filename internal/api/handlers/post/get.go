package post

import (
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/core/posts"

	"github.com/go-chi/chi/v5"
)

// ListResponse is the body of the recent-posts and search endpoints.
type ListResponse struct {
	Viewer    map[string]common.ViewerState `json:"viewer,omitempty"`
	Documents []*posts.Post                 `json:"documents"`
}

// PostResponse is a single post, with the caller's viewer state when signed in.
type PostResponse struct {
	*posts.Post
	Viewer *common.ViewerState `json:"viewer,omitempty"`
}

// GetHandler serves the read-only post queries
type GetHandler struct {
	service posts.Service
	users   *common.CurrentUserLoader
}

// NewGetHandler creates a new get handler
func NewGetHandler(service posts.Service, users *common.CurrentUserLoader) *GetHandler {
	return &GetHandler{
		service: service,
		users:   users,
	}
}

// HandleGet handles GET /api/posts/{id}
func (h *GetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := PostResponse{Post: post}
	if state, ok := h.users.PopulateViewerState(r, []*posts.Post{post})[post.ID]; ok {
		resp.Viewer = &state
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

// HandleRecent handles GET /api/posts/recent
func (h *GetHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetRecentPosts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeList(w, r, list)
}

// HandleSearch handles GET /api/posts/search?q=
func (h *GetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.SearchPosts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.writeList(w, r, list)
}

func (h *GetHandler) writeList(w http.ResponseWriter, r *http.Request, list []*posts.Post) {
	if list == nil {
		list = []*posts.Post{}
	}
	handlers.WriteJSON(w, http.StatusOK, ListResponse{
		Documents: list,
		Viewer:    h.users.PopulateViewerState(r, list),
	})
}
