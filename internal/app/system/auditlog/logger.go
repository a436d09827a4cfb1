// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/civicworks/eventgate/internal/app/store/audit"
	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Workflow controls logging for request lifecycle events (create,
	// approve, reject, reschedule, publish).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Workflow string
	// Admin controls logging for admin action events (role CRUD,
	// assignment changes, authority reconciliation).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	// Determine which config setting applies based on event category
	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryWorkflow:
		setting = l.config.Workflow
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful trust login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedNotFound,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details: map[string]string{
			"attempted_email": attemptedEmail,
		},
	})
}

// LoginFailedUserDisabled logs a failed login due to disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedDisabled,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user disabled",
		Details: map[string]string{
			"email": email,
		},
	})
}

// LoginRateLimited logs a login attempt rejected by the rate limiter.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "rate limited",
		Details: map[string]string{
			"attempted_email": attemptedEmail,
		},
	})
}

// Logout logs a user logout.
// Accepts the string ID from the session and converts it to an ObjectID.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// --- Workflow Events ---

// eventTypeForDecision maps a recorded decision to its audit event type.
func eventTypeForDecision(decision string) string {
	switch decision {
	case "accept":
		return audit.EventRequestApproved
	case "reject":
		return audit.EventRequestRejected
	case "reschedule":
		return audit.EventRequestRescheduled
	case "confirm":
		return audit.EventRequestConfirmed
	case "decline":
		return audit.EventRequestDeclined
	case "cancel":
		return audit.EventRequestCancelled
	default:
		return audit.EventRequestUpdated
	}
}

// RequestCreated logs the submission of a new request.
func (l *Logger) RequestCreated(ctx context.Context, requestID string, requester models.ActorSnapshot, reviewerCount int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryWorkflow,
		EventType: audit.EventRequestCreated,
		RequestID: requestID,
		ActorID:   &requester.UserID,
		Success:   true,
		Details: map[string]string{
			"reviewer_count": strconv.Itoa(reviewerCount),
		},
	})
}

// RequestTransition logs one lifecycle step: the decision taken and the
// status it produced.
func (l *Logger) RequestTransition(ctx context.Context, requestID, decision, newStatus string, actor models.ActorSnapshot) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryWorkflow,
		EventType: eventTypeForDecision(decision),
		RequestID: requestID,
		ActorID:   &actor.UserID,
		Success:   true,
		Details: map[string]string{
			"decision":   decision,
			"new_status": newStatus,
			"actor_role": actor.RoleCode,
		},
	})
}

// RequestUpdated logs a payload edit on a pending request.
func (l *Logger) RequestUpdated(ctx context.Context, requestID string, actor models.ActorSnapshot, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryWorkflow,
		EventType: audit.EventRequestUpdated,
		RequestID: requestID,
		ActorID:   &actor.UserID,
		Success:   true,
		Details: map[string]string{
			"fields_changed": fieldsChanged,
		},
	})
}

// PublishSucceeded logs the downstream event materializing for an approved
// request.
func (l *Logger) PublishSucceeded(ctx context.Context, requestID string, eventID primitive.ObjectID, retried bool) {
	eventType := audit.EventPublishSucceeded
	if retried {
		eventType = audit.EventPublishRetried
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryWorkflow,
		EventType: eventType,
		RequestID: requestID,
		Success:   true,
		Details: map[string]string{
			"event_id": eventID.Hex(),
		},
	})
}

// PublishDeferred logs a downstream publish failure. The request stays
// approved with the publish marked pending.
func (l *Logger) PublishDeferred(ctx context.Context, requestID string, reason error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryWorkflow,
		EventType:     audit.EventPublishDeferred,
		RequestID:     requestID,
		Success:       false,
		FailureReason: reason.Error(),
	})
}

// --- Admin Events ---

// RoleAssigned logs an assignment edge being created.
func (l *Logger) RoleAssigned(ctx context.Context, actorID, targetUserID primitive.ObjectID, roleCode string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventRoleAssigned,
		UserID:    &targetUserID,
		ActorID:   &actorID,
		Success:   true,
		Details: map[string]string{
			"role_code": roleCode,
		},
	})
}

// RoleRevoked logs an assignment edge being revoked.
func (l *Logger) RoleRevoked(ctx context.Context, actorID, targetUserID primitive.ObjectID, roleCode string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventRoleRevoked,
		UserID:    &targetUserID,
		ActorID:   &actorID,
		Success:   true,
		Details: map[string]string{
			"role_code": roleCode,
		},
	})
}

// AuthorityReconciled logs a user's authority score being recomputed from
// their assignments.
func (l *Logger) AuthorityReconciled(ctx context.Context, userID primitive.ObjectID, oldScore, newScore int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAuthorityReconciled,
		UserID:    &userID,
		Success:   true,
		Details: map[string]string{
			"old": strconv.Itoa(oldScore),
			"new": strconv.Itoa(newScore),
		},
	})
}
