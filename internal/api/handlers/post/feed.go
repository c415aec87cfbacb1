package post

import (
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/core/feed"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/querycache"
)

// FeedResponse is one page of the infinite feed.
// Error is set only when the page could not be fetched; the page is then empty.
type FeedResponse struct {
	Viewer     map[string]common.ViewerState `json:"viewer,omitempty"`
	NextCursor string                        `json:"nextCursor,omitempty"`
	Error      string                        `json:"error,omitempty"`
	Documents  []*posts.Post                 `json:"documents"`
	Total      int                           `json:"total"`
}

// FeedHandler serves the paginated feed
type FeedHandler struct {
	engine *feed.Engine
	cache  *querycache.Cache
	users  *common.CurrentUserLoader
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(engine *feed.Engine, cache *querycache.Cache, users *common.CurrentUserLoader) *FeedHandler {
	return &FeedHandler{
		engine: engine,
		cache:  cache,
		users:  users,
	}
}

// HandleFeed handles GET /api/posts/feed?cursor=
// A failed fetch is reported in the body with an empty page rather than as an
// HTTP error, so clients render it as "nothing to show" and may retry.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := h.engine.CachedPage(r.Context(), h.cache, r.URL.Query().Get("cursor"))
	if err != nil {
		collapsed := feed.Collapse(page, err)
		handlers.WriteJSON(w, http.StatusOK, FeedResponse{
			Documents: collapsed.Documents,
			Total:     collapsed.Total,
			Error:     "FeedUnavailable",
		})
		return
	}

	next, _ := feed.NextCursor(page)
	handlers.WriteJSON(w, http.StatusOK, FeedResponse{
		Documents:  page.Documents,
		Total:      page.Total,
		NextCursor: next,
		Viewer:     h.users.PopulateViewerState(r, page.Documents),
	})
}
