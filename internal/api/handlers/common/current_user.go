package common

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/middleware"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/querycache"
	"Snapfeed/internal/core/users"
)

// CurrentUserLoader reads the authenticated user's profile through the
// currentUser query, so social mutations invalidate it.
type CurrentUserLoader struct {
	users users.UserService
	cache *querycache.Cache
}

// NewCurrentUserLoader creates a loader
func NewCurrentUserLoader(userService users.UserService, cache *querycache.Cache) *CurrentUserLoader {
	return &CurrentUserLoader{users: userService, cache: cache}
}

// Load returns the user for accountID.
func (l *CurrentUserLoader) Load(ctx context.Context, accountID string) (*users.User, error) {
	return querycache.Fetch(ctx, l.cache, querycache.CurrentUser(accountID), func(ctx context.Context) (*users.User, error) {
		return l.users.GetCurrentUser(ctx, accountID)
	})
}

// RequireUser loads the authenticated user for a request, writing the error
// reply itself when that fails. The boolean is false when a reply was written.
func (l *CurrentUserLoader) RequireUser(w http.ResponseWriter, r *http.Request) (*users.User, bool) {
	accountID := middleware.GetAccountID(r)
	if accountID == "" {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Authentication required")
		return nil, false
	}

	user, err := l.Load(r.Context(), accountID)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, users.ErrUserNotFound):
		handlers.WriteError(w, http.StatusNotFound, "UserNotFound", "No profile exists for this account")
	default:
		slog.Error("failed to load current user", "account_id", accountID, "error", err)
		handlers.WriteError(w, http.StatusBadGateway, "StoreUnavailable", "Could not load the current user")
	}
	return nil, false
}

// ViewerState is the authenticated user's relation to one post.
type ViewerState struct {
	Liked bool `json:"liked"`
	Saved bool `json:"saved"`
}

// PopulateViewerState returns the viewer state for each post keyed by post ID.
// This is a no-op (nil result) if the request is unauthenticated or the
// user cannot be loaded; viewer state is optional enrichment.
func (l *CurrentUserLoader) PopulateViewerState(r *http.Request, list []*posts.Post) map[string]ViewerState {
	accountID := middleware.GetAccountID(r)
	if accountID == "" || len(list) == 0 {
		return nil
	}

	user, err := l.Load(r.Context(), accountID)
	if err != nil {
		slog.Warn("viewer state skipped", "account_id", accountID, "error", err)
		return nil
	}

	state := make(map[string]ViewerState, len(list))
	for _, p := range list {
		_, saved := user.SavedRecordFor(p.ID)
		state[p.ID] = ViewerState{Liked: p.HasLiked(user.ID), Saved: saved}
	}
	return state
}
