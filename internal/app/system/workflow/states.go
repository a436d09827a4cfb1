// internal/app/system/workflow/states.go

// Package workflow is the request lifecycle state machine: canonical states
// and actions, legacy-alias normalization, the transition table, and the
// active-responder computation. Everything here is a pure function; the
// authorization guards live in requestpolicy and the side effects in
// requestflow.
package workflow

import "strings"

// Status is a canonical lifecycle state.
type Status string

const (
	StatusPendingReview     Status = "pending_review"
	StatusReviewRescheduled Status = "review_rescheduled"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusCancelled         Status = "cancelled"
	StatusCompleted         Status = "completed"
)

// statusAliases maps historic state names onto the canonical set. The old
// review-accepted/review-rejected intermediates collapse straight into their
// terminal outcomes; awaiting-confirmation collapses into the reschedule
// state.
var statusAliases = map[string]Status{
	"pending":               StatusPendingReview,
	"pending_review":        StatusPendingReview,
	"for_review":            StatusPendingReview,
	"review_rescheduled":    StatusReviewRescheduled,
	"rescheduled":           StatusReviewRescheduled,
	"awaiting_confirmation": StatusReviewRescheduled,
	"review_accepted":       StatusApproved,
	"approved":              StatusApproved,
	"review_rejected":       StatusRejected,
	"rejected":              StatusRejected,
	"cancelled":             StatusCancelled,
	"canceled":              StatusCancelled,
	"completed":             StatusCompleted,
	"done":                  StatusCompleted,
}

// NormalizeStatus maps a stored or user-supplied state name onto the
// canonical set. The bool is false for unrecognized input.
func NormalizeStatus(raw string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	s, ok := statusAliases[key]
	return s, ok
}

// IsFinal reports whether the state admits no further transitions.
func IsFinal(s Status) bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanEdit reports whether the request payload may still be edited.
func CanEdit(s Status) bool {
	return s == StatusPendingReview
}

// CanCancel reports whether the request may be cancelled from this state.
func CanCancel(s Status) bool {
	return s == StatusPendingReview || s == StatusApproved
}

// Responder values for EventRequest.ActiveResponder.
const (
	ResponderReviewer  = "reviewer"
	ResponderRequester = "requester"
	ResponderNone      = ""
)

// NextResponder computes who must act after a transition into newStatus.
// In the reschedule state the ball flips to whoever did not just act.
func NextResponder(newStatus Status, actorWasRequester bool) string {
	switch newStatus {
	case StatusPendingReview:
		return ResponderReviewer
	case StatusReviewRescheduled:
		if actorWasRequester {
			return ResponderReviewer
		}
		return ResponderRequester
	default:
		return ResponderNone
	}
}
