package routes

import (
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/api/handlers/interaction"
	"Snapfeed/internal/api/handlers/post"
	"Snapfeed/internal/api/middleware"
	"Snapfeed/internal/core/feed"
	"Snapfeed/internal/core/posts"
	"Snapfeed/internal/core/querycache"
	"Snapfeed/internal/core/social"

	"github.com/go-chi/chi/v5"
)

// PostDeps are the services behind the post endpoints.
type PostDeps struct {
	Posts   posts.Service
	Feed    *feed.Engine
	Mutator *social.Mutator
	Cache   *querycache.Cache
	Users   *common.CurrentUserLoader
}

// RegisterPostRoutes registers post endpoints on the router
// Reads are public and carry viewer state when a token is present; writes
// require authentication.
func RegisterPostRoutes(r chi.Router, deps PostDeps, auth *middleware.JWTAuthMiddleware) {
	// Initialize handlers
	getHandler := post.NewGetHandler(deps.Posts, deps.Users)
	feedHandler := post.NewFeedHandler(deps.Feed, deps.Cache, deps.Users)
	createHandler := post.NewCreateHandler(deps.Posts, deps.Users)
	updateHandler := post.NewUpdateHandler(deps.Posts, deps.Users)
	deleteHandler := post.NewDeleteHandler(deps.Posts, deps.Users)
	interactionHandler := interaction.NewInteractionHandler(deps.Posts, deps.Users, deps.Mutator)

	r.Route("/api/posts", func(r chi.Router) {
		// Query endpoints (GET)
		r.With(auth.OptionalAuth).Get("/recent", getHandler.HandleRecent)
		r.With(auth.OptionalAuth).Get("/feed", feedHandler.HandleFeed)
		r.With(auth.OptionalAuth).Get("/search", getHandler.HandleSearch)
		r.With(auth.OptionalAuth).Get("/{id}", getHandler.HandleGet)

		// Procedure endpoints - require authentication
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Post("/", createHandler.HandleCreate)
			r.Put("/{id}", updateHandler.HandleUpdate)
			r.Delete("/{id}", deleteHandler.HandleDelete)
			r.Post("/{id}/like", interactionHandler.HandleLike)
			r.Post("/{id}/save", interactionHandler.HandleSave)
		})
	})
}
