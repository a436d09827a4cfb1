// Package login implements trust-based sign-in: a known email gets a
// session, no password. Deployments front this with an SSO proxy; the
// rate limiter keeps enumeration in check.
package login

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/civicworks/eventgate/internal/app/store/users"
	"github.com/civicworks/eventgate/internal/app/system/auditlog"
	"github.com/civicworks/eventgate/internal/app/system/auth"
	"github.com/civicworks/eventgate/internal/app/system/ratelimit"
	"github.com/civicworks/eventgate/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Users    *userstore.Store
	AuditLog *auditlog.Logger
	Limiter  *ratelimit.Limiter
	Log      *zap.Logger
}

func NewHandler(users *userstore.Store, audit *auditlog.Logger, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{Users: users, AuditLog: audit, Limiter: limiter, Log: logger}
}

type loginPayload struct {
	Email string `json:"email"`
}

type loginResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Authority int    `json:"authority"`
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var p loginPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(ratelimit.ClientIP(r)) {
		h.AuditLog.LoginRateLimited(r.Context(), r, p.Email)
		writeError(w, http.StatusTooManyRequests, "too many login attempts; try again later")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, p.Email)
	if err != nil {
		h.Log.Error("login: user lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, p.Email)
		writeError(w, http.StatusUnauthorized, "no account found for that email")
		return
	}
	if u.Status == "disabled" {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, u.Email)
		writeError(w, http.StatusForbidden, "account is disabled")
		return
	}

	sessUser := auth.SessionUser{
		ID:        u.ID.Hex(),
		Name:      u.FullName,
		Email:     u.Email,
		Authority: u.Authority,
	}
	if err := auth.SignIn(w, r, sessUser); err != nil {
		h.Log.Error("login: session save failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		writeError(w, http.StatusInternalServerError, "unable to create session")
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()), zap.Int("authority", u.Authority))

	writeJSON(w, http.StatusOK, loginResponse{
		ID:        sessUser.ID,
		Name:      sessUser.Name,
		Email:     sessUser.Email,
		Authority: sessUser.Authority,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
