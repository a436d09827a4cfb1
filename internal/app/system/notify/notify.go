// Package notify delivers workflow notifications to request participants.
// Delivery failures never fail the transition that triggered them.
package notify

import (
	"context"

	"github.com/civicworks/eventgate/internal/domain/models"
	"go.uber.org/zap"
)

// Notifier receives workflow notifications. Implementations must be safe
// for concurrent use.
type Notifier interface {
	// RequestSubmitted tells discovered reviewers a new request needs review.
	RequestSubmitted(ctx context.Context, req models.EventRequest)
	// RequestTransitioned tells the next responder (and the requester on
	// terminal states) that a request moved.
	RequestTransitioned(ctx context.Context, req models.EventRequest, decision string, actor models.ActorSnapshot)
	// EventPublished tells the requester their event is scheduled.
	EventPublished(ctx context.Context, req models.EventRequest, ev models.ScheduledEvent)
}

// LogNotifier writes notifications to the structured log. Stands in until
// a real channel (mail, push) is wired; also what tests use.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) RequestSubmitted(_ context.Context, req models.EventRequest) {
	n.log.Info("notify: request submitted",
		zap.String("request_id", req.RequestID),
		zap.String("title", req.Title),
		zap.Int("reviewers", len(req.ValidReviewers)),
	)
}

func (n *LogNotifier) RequestTransitioned(_ context.Context, req models.EventRequest, decision string, actor models.ActorSnapshot) {
	n.log.Info("notify: request transitioned",
		zap.String("request_id", req.RequestID),
		zap.String("decision", decision),
		zap.String("status", req.Status),
		zap.String("actor", actor.Name),
		zap.String("next_responder", req.ActiveResponder),
	)
}

func (n *LogNotifier) EventPublished(_ context.Context, req models.EventRequest, ev models.ScheduledEvent) {
	n.log.Info("notify: event published",
		zap.String("request_id", req.RequestID),
		zap.String("event_id", ev.ID.Hex()),
		zap.Time("starts_at", ev.StartsAt),
	)
}
