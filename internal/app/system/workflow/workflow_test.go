package workflow_test

import (
	"testing"

	"github.com/civicworks/eventgate/internal/app/system/workflow"
)

func TestNextState_Table(t *testing.T) {
	tests := []struct {
		from   workflow.Status
		action workflow.Action
		want   workflow.Status
	}{
		{workflow.StatusPendingReview, workflow.ActionAccept, workflow.StatusApproved},
		{workflow.StatusPendingReview, workflow.ActionReject, workflow.StatusRejected},
		{workflow.StatusPendingReview, workflow.ActionReschedule, workflow.StatusReviewRescheduled},
		{workflow.StatusReviewRescheduled, workflow.ActionAccept, workflow.StatusApproved},
		{workflow.StatusReviewRescheduled, workflow.ActionReject, workflow.StatusRejected},
		{workflow.StatusReviewRescheduled, workflow.ActionConfirm, workflow.StatusApproved},
		{workflow.StatusReviewRescheduled, workflow.ActionDecline, workflow.StatusRejected},
		{workflow.StatusReviewRescheduled, workflow.ActionReschedule, workflow.StatusReviewRescheduled},
		{workflow.StatusApproved, workflow.ActionReschedule, workflow.StatusReviewRescheduled},
		{workflow.StatusApproved, workflow.ActionCancel, workflow.StatusCancelled},
	}

	for _, tt := range tests {
		got, ok := workflow.NextState(tt.from, tt.action)
		if !ok {
			t.Errorf("NextState(%s, %s): expected valid transition", tt.from, tt.action)
			continue
		}
		if got != tt.want {
			t.Errorf("NextState(%s, %s) = %s, want %s", tt.from, tt.action, got, tt.want)
		}
	}
}

func TestNextState_UndefinedPairsRejected(t *testing.T) {
	states := []workflow.Status{
		workflow.StatusPendingReview,
		workflow.StatusReviewRescheduled,
		workflow.StatusApproved,
		workflow.StatusRejected,
		workflow.StatusCancelled,
		workflow.StatusCompleted,
	}
	actions := []workflow.Action{
		workflow.ActionAccept,
		workflow.ActionReject,
		workflow.ActionReschedule,
		workflow.ActionConfirm,
		workflow.ActionDecline,
		workflow.ActionCancel,
	}

	defined := map[string]bool{
		"pending_review/accept":         true,
		"pending_review/reject":         true,
		"pending_review/reschedule":     true,
		"review_rescheduled/accept":     true,
		"review_rescheduled/reject":     true,
		"review_rescheduled/confirm":    true,
		"review_rescheduled/decline":    true,
		"review_rescheduled/reschedule": true,
		"approved/reschedule":           true,
		"approved/cancel":               true,
	}

	for _, s := range states {
		for _, a := range actions {
			key := string(s) + "/" + string(a)
			if _, ok := workflow.NextState(s, a); ok != defined[key] {
				t.Errorf("NextState(%s, %s) validity = %v, want %v", s, a, ok, defined[key])
			}
			if workflow.IsValidTransition(s, a) != defined[key] {
				t.Errorf("IsValidTransition(%s, %s) disagrees with table", s, a)
			}
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []workflow.Status{workflow.StatusRejected, workflow.StatusCancelled, workflow.StatusCompleted} {
		if !workflow.IsFinal(s) {
			t.Errorf("%s should be final", s)
		}
		if actions := workflow.ActionsFrom(s); len(actions) != 0 {
			t.Errorf("%s should have no outgoing actions, got %v", s, actions)
		}
	}
	if workflow.IsFinal(workflow.StatusApproved) {
		t.Error("approved is not terminal; it can still be rescheduled or cancelled")
	}
}

func TestRescheduleLoopTermination(t *testing.T) {
	// An arbitrary run of reschedules must stay in the loop, and a single
	// closing action must land on the expected terminal-adjacent state.
	state := workflow.StatusPendingReview
	for i := 0; i < 25; i++ {
		next, ok := workflow.NextState(state, workflow.ActionReschedule)
		if !ok {
			t.Fatalf("reschedule #%d invalid from %s", i+1, state)
		}
		if next != workflow.StatusReviewRescheduled {
			t.Fatalf("reschedule #%d led to %s", i+1, next)
		}
		state = next
	}

	if next, _ := workflow.NextState(state, workflow.ActionConfirm); next != workflow.StatusApproved {
		t.Errorf("confirm after loop = %s, want approved", next)
	}
	if next, _ := workflow.NextState(state, workflow.ActionAccept); next != workflow.StatusApproved {
		t.Errorf("accept after loop = %s, want approved", next)
	}
	if next, _ := workflow.NextState(state, workflow.ActionDecline); next != workflow.StatusRejected {
		t.Errorf("decline after loop = %s, want rejected", next)
	}
	if next, _ := workflow.NextState(state, workflow.ActionReject); next != workflow.StatusRejected {
		t.Errorf("reject after loop = %s, want rejected", next)
	}
}

func TestConfirmNotIdempotent(t *testing.T) {
	// Replaying confirm against an already-approved request is invalid.
	if workflow.IsValidTransition(workflow.StatusApproved, workflow.ActionConfirm) {
		t.Error("confirm must not be valid from approved")
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want workflow.Status
		ok   bool
	}{
		{"pending_review", workflow.StatusPendingReview, true},
		{"Pending-Review", workflow.StatusPendingReview, true},
		{"review-accepted", workflow.StatusApproved, true},
		{"review-rejected", workflow.StatusRejected, true},
		{"awaiting-confirmation", workflow.StatusReviewRescheduled, true},
		{"canceled", workflow.StatusCancelled, true},
		{"COMPLETED", workflow.StatusCompleted, true},
		{"limbo", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := workflow.NormalizeStatus(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeStatus(%q) = (%s, %v), want (%s, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		state       workflow.Status
		isRequester bool
		want        workflow.Action
		wantErr     bool
	}{
		{"plain accept", "accept", workflow.StatusPendingReview, false, workflow.ActionAccept, false},
		{"free-text approved", "Approved", workflow.StatusPendingReview, false, workflow.ActionAccept, false},
		{"free-text rejected", "rejected", workflow.StatusPendingReview, false, workflow.ActionReject, false},
		{"requester accept in reschedule maps to confirm", "accept", workflow.StatusReviewRescheduled, true, workflow.ActionConfirm, false},
		{"reviewer accept in reschedule stays accept", "accept", workflow.StatusReviewRescheduled, false, workflow.ActionAccept, false},
		{"requester reject in reschedule maps to decline", "reject", workflow.StatusReviewRescheduled, true, workflow.ActionDecline, false},
		{"requester accept elsewhere stays accept", "accept", workflow.StatusPendingReview, true, workflow.ActionAccept, false},
		{"explicit confirm passes through", "confirm", workflow.StatusReviewRescheduled, true, workflow.ActionConfirm, false},
		{"cancel", "cancel", workflow.StatusApproved, true, workflow.ActionCancel, false},
		{"garbage", "explode", workflow.StatusPendingReview, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := workflow.NormalizeAction(tt.raw, tt.state, tt.isRequester)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAction: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAction(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNextResponder(t *testing.T) {
	tests := []struct {
		status       workflow.Status
		wasRequester bool
		want         string
	}{
		{workflow.StatusPendingReview, true, workflow.ResponderReviewer},
		{workflow.StatusReviewRescheduled, false, workflow.ResponderRequester},
		{workflow.StatusReviewRescheduled, true, workflow.ResponderReviewer},
		{workflow.StatusApproved, false, workflow.ResponderNone},
		{workflow.StatusRejected, true, workflow.ResponderNone},
	}

	for _, tt := range tests {
		if got := workflow.NextResponder(tt.status, tt.wasRequester); got != tt.want {
			t.Errorf("NextResponder(%s, %v) = %q, want %q", tt.status, tt.wasRequester, got, tt.want)
		}
	}
}

func TestEditAndCancelGates(t *testing.T) {
	if !workflow.CanEdit(workflow.StatusPendingReview) {
		t.Error("pending requests should be editable")
	}
	for _, s := range []workflow.Status{workflow.StatusReviewRescheduled, workflow.StatusApproved, workflow.StatusRejected} {
		if workflow.CanEdit(s) {
			t.Errorf("%s should not be editable", s)
		}
	}
	if !workflow.CanCancel(workflow.StatusPendingReview) || !workflow.CanCancel(workflow.StatusApproved) {
		t.Error("pending and approved requests should be cancellable")
	}
	if workflow.CanCancel(workflow.StatusRejected) {
		t.Error("rejected requests should not be cancellable")
	}
}
