// Package logout clears the caller's session.
package logout

import (
	"net/http"

	"github.com/civicworks/eventgate/internal/app/system/auditlog"
	"github.com/civicworks/eventgate/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{AuditLog: audit, Log: logger}
}

// HandleLogout handles POST /logout. Signing out an anonymous caller is a
// no-op, not an error.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}
	if err := auth.SignOut(w, r); err != nil {
		h.Log.Error("logout: session clear failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
