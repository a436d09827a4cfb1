// internal/app/features/requests/routes.go
package requests

import (
	"github.com/civicworks/eventgate/internal/app/system/auth"
	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/go-chi/chi/v5"
)

// Routes returns the subrouter for the request workflow API, mounted under
// /api/requests. Every route needs a signed-in user; publish retries need
// operational-admin tier on top.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{requestID}", h.Get)
	r.Put("/{requestID}", h.Update)
	r.Post("/{requestID}/actions", h.ExecuteAction)
	r.Get("/{requestID}/reviewers", h.Reviewers)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuthority(authority.OperationalAdmin))
		r.Post("/{requestID}/publish-retry", h.RetryPublish)
	})

	return r
}
