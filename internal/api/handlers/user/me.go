package user

import (
	"net/http"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/handlers/common"
)

// MeHandler serves the authenticated user's profile
type MeHandler struct {
	users *common.CurrentUserLoader
}

// NewMeHandler creates a new profile handler
func NewMeHandler(users *common.CurrentUserLoader) *MeHandler {
	return &MeHandler{users: users}
}

// HandleMe handles GET /api/users/me
// Returns the profile linked to the token's account, including save records.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.users.RequireUser(w, r)
	if !ok {
		return
	}
	handlers.WriteJSON(w, http.StatusOK, user)
}
