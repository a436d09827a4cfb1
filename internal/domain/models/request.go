// internal/domain/models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventRequest is the workflow aggregate: one document per requested event,
// carrying its full review history.
//
// Invariants enforced by the request store:
//   - StatusHistory and DecisionHistory are append-only.
//   - Status always equals the status of the last StatusHistory entry.
//   - Every transition bumps Version; writers compare-and-swap on it so
//     concurrent reviewers cannot double-apply a transition.
type EventRequest struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID string             `bson:"request_id" json:"request_id"` // public UUID
	Version   int64              `bson:"version" json:"version"`

	Requester ActorSnapshot `bson:"requester" json:"requester"`

	// Reviewer is the first reviewer to act. Kept alongside ValidReviewers
	// for callers that want a single "the reviewer" answer.
	Reviewer       *ReviewerSnapshot  `bson:"reviewer,omitempty" json:"reviewer,omitempty"`
	ValidReviewers []ReviewerSnapshot `bson:"valid_reviewers,omitempty" json:"valid_reviewers,omitempty"`

	Status          string          `bson:"status" json:"status"`
	StatusHistory   []StatusEntry   `bson:"status_history" json:"status_history"`
	DecisionHistory []DecisionEntry `bson:"decision_history,omitempty" json:"decision_history,omitempty"`

	RescheduleProposal *RescheduleProposal `bson:"reschedule_proposal,omitempty" json:"reschedule_proposal,omitempty"`

	// ActiveResponder says who must act next ("reviewer" or "requester").
	// Advisory metadata for UI and notifications, not an authorization gate.
	ActiveResponder string `bson:"active_responder,omitempty" json:"active_responder,omitempty"`

	MunicipalityID   string `bson:"municipality_id" json:"municipality_id"`
	DistrictID       string `bson:"district_id,omitempty" json:"district_id,omitempty"`
	ProvinceID       string `bson:"province_id,omitempty" json:"province_id,omitempty"`
	OrganizationType string `bson:"organization_type,omitempty" json:"organization_type,omitempty"`

	Title       string `bson:"title" json:"title"`
	TitleCI     string `bson:"title_ci" json:"title_ci"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Category    string `bson:"category,omitempty" json:"category,omitempty"`

	StartsAt time.Time  `bson:"starts_at" json:"starts_at"`
	EndsAt   *time.Time `bson:"ends_at,omitempty" json:"ends_at,omitempty"`

	// CategoryData holds category-specific payload fields (head counts,
	// venue details, ...). Opaque to the workflow.
	CategoryData map[string]interface{} `bson:"category_data,omitempty" json:"category_data,omitempty"`

	// PublishPending marks an approved request whose downstream event
	// creation has not succeeded yet. Cleared by the publish retry path.
	PublishPending   bool                `bson:"publish_pending,omitempty" json:"publish_pending,omitempty"`
	PublishedEventID *primitive.ObjectID `bson:"published_event_id,omitempty" json:"published_event_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ActorSnapshot freezes who somebody was at the moment they acted. Authority
// is captured at snapshot time; later role changes do not rewrite history.
type ActorSnapshot struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name      string             `bson:"name" json:"name"`
	RoleCode  string             `bson:"role_code,omitempty" json:"role_code,omitempty"`
	Authority int                `bson:"authority" json:"authority"`
}

// ReviewerSnapshot is an ActorSnapshot tagged with when reviewer discovery
// found the user for a given request.
type ReviewerSnapshot struct {
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name         string             `bson:"name" json:"name"`
	RoleCode     string             `bson:"role_code,omitempty" json:"role_code,omitempty"`
	Authority    int                `bson:"authority" json:"authority"`
	DiscoveredAt time.Time          `bson:"discovered_at" json:"discovered_at"`
}

// StatusEntry is one append-only status history record. EntryID is a ULID so
// entries sort lexically in creation order.
type StatusEntry struct {
	EntryID string        `bson:"entry_id" json:"entry_id"`
	Status  string        `bson:"status" json:"status"`
	Actor   ActorSnapshot `bson:"actor" json:"actor"`
	Note    string        `bson:"note,omitempty" json:"note,omitempty"`
	At      time.Time     `bson:"at" json:"at"`
}

// DecisionEntry is one append-only decision record (the action taken, by
// whom, with what payload).
type DecisionEntry struct {
	EntryID  string                 `bson:"entry_id" json:"entry_id"`
	Decision string                 `bson:"decision" json:"decision"`
	Actor    ActorSnapshot          `bson:"actor" json:"actor"`
	Notes    string                 `bson:"notes,omitempty" json:"notes,omitempty"`
	Payload  map[string]interface{} `bson:"payload,omitempty" json:"payload,omitempty"`
	At       time.Time              `bson:"at" json:"at"`
}

// RescheduleProposal is the live counter-proposal in a reschedule loop. Each
// new proposal replaces the previous one; the superseded date is kept so the
// other party can see what changed.
type RescheduleProposal struct {
	ProposedStart time.Time     `bson:"proposed_start" json:"proposed_start"`
	ProposedEnd   *time.Time    `bson:"proposed_end,omitempty" json:"proposed_end,omitempty"`
	Reason        string        `bson:"reason,omitempty" json:"reason,omitempty"`
	ProposedBy    ActorSnapshot `bson:"proposed_by" json:"proposed_by"`
	PreviousStart time.Time     `bson:"previous_start" json:"previous_start"`
	ProposedAt    time.Time     `bson:"proposed_at" json:"proposed_at"`
}

// IsRequester reports whether the given user is the request's original
// requester.
func (r *EventRequest) IsRequester(userID primitive.ObjectID) bool {
	return r.Requester.UserID == userID
}

// IsValidReviewer reports whether the user is on the broadcast reviewer list.
func (r *EventRequest) IsValidReviewer(userID primitive.ObjectID) bool {
	for _, rev := range r.ValidReviewers {
		if rev.UserID == userID {
			return true
		}
	}
	return false
}
