// internal/app/system/workflow/actions.go
package workflow

import (
	"fmt"
	"strings"
)

// Action is a canonical transition verb.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionReject     Action = "reject"
	ActionReschedule Action = "reschedule"
	ActionConfirm    Action = "confirm"
	ActionDecline    Action = "decline"
	ActionCancel     Action = "cancel"
)

// Permission resource/action names guarding the workflow. These are the
// values stored in role permission grants.
const (
	ResourceRequest = "request"

	PermInitiate   = "initiate"
	PermCreate     = "create"
	PermReview     = "review"
	PermReschedule = "reschedule"
	PermConfirm    = "confirm"
	PermCancel     = "cancel"
	PermUpdate     = "update"
)

// actionAliases translates free-text verbs into canonical actions. This is
// the single alias table; nothing else in the codebase string-matches on
// user-supplied verbs.
var actionAliases = map[string]Action{
	"accept":      ActionAccept,
	"accepted":    ActionAccept,
	"approve":     ActionAccept,
	"approved":    ActionAccept,
	"reject":      ActionReject,
	"rejected":    ActionReject,
	"deny":        ActionReject,
	"denied":      ActionReject,
	"reschedule":  ActionReschedule,
	"rescheduled": ActionReschedule,
	"propose":     ActionReschedule,
	"confirm":     ActionConfirm,
	"confirmed":   ActionConfirm,
	"decline":     ActionDecline,
	"declined":    ActionDecline,
	"cancel":      ActionCancel,
	"cancelled":   ActionCancel,
	"canceled":    ActionCancel,
}

// NormalizeAction maps a raw verb onto a canonical action for the given
// state and actor.
//
// The reschedule state needs actor disambiguation: the same "accept" verb
// means confirm when the original requester says it (accepting the
// reviewer's counter-proposal) and accept when a reviewer says it. Likewise
// a requester's "reject" there is a decline. Identity decides, never the
// free text alone.
func NormalizeAction(raw string, current Status, actorIsRequester bool) (Action, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	action, ok := actionAliases[key]
	if !ok {
		return "", fmt.Errorf("unrecognized action %q", raw)
	}

	if current == StatusReviewRescheduled && actorIsRequester {
		switch action {
		case ActionAccept:
			return ActionConfirm, nil
		case ActionReject:
			return ActionDecline, nil
		}
	}
	return action, nil
}
