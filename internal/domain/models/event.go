// internal/domain/models/event.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduledEvent is the downstream record materialized when a request
// reaches approval. One event per request; publishing is idempotent on
// RequestID.
type ScheduledEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID string             `bson:"request_id" json:"request_id"`

	Title       string `bson:"title" json:"title"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Category    string `bson:"category,omitempty" json:"category,omitempty"`

	MunicipalityID   string `bson:"municipality_id" json:"municipality_id"`
	DistrictID       string `bson:"district_id,omitempty" json:"district_id,omitempty"`
	ProvinceID       string `bson:"province_id,omitempty" json:"province_id,omitempty"`
	OrganizationType string `bson:"organization_type,omitempty" json:"organization_type,omitempty"`

	StartsAt time.Time  `bson:"starts_at" json:"starts_at"`
	EndsAt   *time.Time `bson:"ends_at,omitempty" json:"ends_at,omitempty"`

	Requester  ActorSnapshot `bson:"requester" json:"requester"`
	ApprovedBy ActorSnapshot `bson:"approved_by" json:"approved_by"`

	Status    string    `bson:"status" json:"status"` // scheduled | completed | cancelled
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
