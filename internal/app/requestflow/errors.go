// internal/app/requestflow/errors.go
package requestflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/civicworks/eventgate/internal/app/system/permissions"
	"github.com/civicworks/eventgate/internal/app/system/workflow"
)

// ValidationError rejects malformed input before any state mutation.
// Fully recoverable; the message is safe to surface verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError marks a lookup for a request that does not exist.
type NotFoundError struct {
	RequestID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("request %s not found", e.RequestID)
}

// AuthorizationError rejects a transition whose guard failed. It carries
// the denied action, the state it was attempted in, and the actor's
// resolved permission set for diagnostics. Never includes another user's
// data.
type AuthorizationError struct {
	Action      workflow.Action
	State       workflow.Status
	Reason      string
	Permissions []string
}

func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("not authorized to %s in state %s", e.Action, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Permissions) > 0 {
		msg += " (holding " + strings.Join(e.Permissions, ", ") + ")"
	}
	return msg
}

// describeSet flattens a permission set into "resource.action" strings for
// authorization diagnostics.
func describeSet(set permissions.Set) []string {
	var out []string
	for resource, grant := range set {
		for action := range grant.Actions {
			out = append(out, resource+"."+action)
		}
	}
	sort.Strings(out)
	return out
}

// InvalidTransitionError rejects an action the transition table does not
// define for the current state.
type InvalidTransitionError struct {
	State   workflow.Status
	Action  workflow.Action
	Allowed []workflow.Action
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("action %s is not valid in terminal state %s", e.Action, e.State)
	}
	allowed := make([]string, len(e.Allowed))
	for i, a := range e.Allowed {
		allowed[i] = string(a)
	}
	sort.Strings(allowed)
	return fmt.Sprintf("action %s is not valid in state %s (valid: %s)",
		e.Action, e.State, strings.Join(allowed, ", "))
}

// ConflictError reports a transition lost to a concurrent writer. The
// caller should reload the request and retry or surface the new state;
// the losing action was not applied.
type ConflictError struct {
	RequestID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s was modified concurrently; reload and retry", e.RequestID)
}

// PublishError reports that a request committed to approved but its
// downstream event could not be created. The request carries
// publish_pending=true and RetryPublish will settle it; the approval
// itself stands.
type PublishError struct {
	RequestID string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("request %s approved but event publish failed: %v", e.RequestID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
