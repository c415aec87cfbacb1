package routes

import (
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/api/handlers/user"
	"Snapfeed/internal/api/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterUserRoutes registers user endpoints on the router
func RegisterUserRoutes(r chi.Router, users *common.CurrentUserLoader, auth *middleware.JWTAuthMiddleware) {
	meHandler := user.NewMeHandler(users)

	r.With(auth.RequireAuth).Get("/api/users/me", meHandler.HandleMe)
}
