// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/civicworks/eventgate/internal/app/system/auth"
)

// Handler serves user information for authenticated sessions.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ServeUserInfo returns JSON with the current user's authentication status
// and identity.
//
// Response format:
//
//	{ "authenticated": bool, "id": "...", "name": "...", "email": "...", "authority": 0 }
//
// Anonymous callers get authenticated:false with empty identity fields, not
// a 401, so clients can probe session state without error handling.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user, ok := auth.CurrentUser(r)
	if !ok {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"authenticated": false,
			"id":            "",
			"name":          "",
			"email":         "",
			"authority":     0,
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"authenticated": true,
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"authority":     user.Authority,
	})
}
