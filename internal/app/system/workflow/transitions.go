// internal/app/system/workflow/transitions.go
package workflow

// transitions is the full lifecycle table. Anything absent is invalid.
var transitions = map[Status]map[Action]Status{
	StatusPendingReview: {
		ActionAccept:     StatusApproved,
		ActionReject:     StatusRejected,
		ActionReschedule: StatusReviewRescheduled,
	},
	StatusReviewRescheduled: {
		ActionAccept:     StatusApproved,
		ActionReject:     StatusRejected,
		ActionConfirm:    StatusApproved,
		ActionDecline:    StatusRejected,
		ActionReschedule: StatusReviewRescheduled, // counter-proposal loop
	},
	StatusApproved: {
		ActionReschedule: StatusReviewRescheduled,
		ActionCancel:     StatusCancelled,
	},
}

// NextState returns the state the action leads to from current. The bool is
// false when the pair is not in the table.
func NextState(current Status, action Action) (Status, bool) {
	row, ok := transitions[current]
	if !ok {
		return "", false
	}
	next, ok := row[action]
	return next, ok
}

// IsValidTransition reports whether the (state, action) pair is defined.
func IsValidTransition(current Status, action Action) bool {
	_, ok := NextState(current, action)
	return ok
}

// ActionsFrom lists the actions defined for the state. Used for diagnostics
// in invalid-transition errors.
func ActionsFrom(current Status) []Action {
	row, ok := transitions[current]
	if !ok {
		return nil
	}
	out := make([]Action, 0, len(row))
	for a := range row {
		out = append(out, a)
	}
	return out
}
