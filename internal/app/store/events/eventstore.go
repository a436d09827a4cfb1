package eventstore

import (
	"context"
	"time"

	"github.com/civicworks/eventgate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("scheduled_events")}
}

// CreateFromRequest materializes the downstream event for an approved
// request. Idempotent on request_id: a retry that races an earlier success
// hits the unique index and returns the already-published event, so a
// request can never produce two events. When the request was re-approved
// out of the reschedule loop after an earlier publish, the stored event is
// realigned with the request's current window instead of handing back the
// superseded dates.
func (s *Store) CreateFromRequest(ctx context.Context, req models.EventRequest, approvedBy models.ActorSnapshot) (models.ScheduledEvent, error) {
	if existing, err := s.GetByRequestID(ctx, req.RequestID); err != nil {
		return models.ScheduledEvent{}, err
	} else if existing != nil {
		return s.syncWindow(ctx, *existing, req)
	}

	now := time.Now()
	ev := models.ScheduledEvent{
		ID:               primitive.NewObjectID(),
		RequestID:        req.RequestID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		MunicipalityID:   req.MunicipalityID,
		DistrictID:       req.DistrictID,
		ProvinceID:       req.ProvinceID,
		OrganizationType: req.OrganizationType,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		Requester:        req.Requester,
		ApprovedBy:       approvedBy,
		Status:           "scheduled",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		if wafflemongo.IsDup(err) {
			existing, gerr := s.GetByRequestID(ctx, req.RequestID)
			if gerr != nil {
				return models.ScheduledEvent{}, gerr
			}
			if existing != nil {
				return s.syncWindow(ctx, *existing, req)
			}
		}
		return models.ScheduledEvent{}, err
	}
	return ev, nil
}

// syncWindow pushes the request's current window onto an already-published
// event. A no-op when the dates already agree.
func (s *Store) syncWindow(ctx context.Context, ev models.ScheduledEvent, req models.EventRequest) (models.ScheduledEvent, error) {
	if ev.StartsAt.Equal(req.StartsAt) && sameEnd(ev.EndsAt, req.EndsAt) {
		return ev, nil
	}

	now := time.Now()
	set := bson.M{"starts_at": req.StartsAt, "updated_at": now}
	update := bson.M{"$set": set}
	if req.EndsAt != nil {
		set["ends_at"] = *req.EndsAt
	} else {
		update["$unset"] = bson.M{"ends_at": ""}
	}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": ev.ID}, update); err != nil {
		return models.ScheduledEvent{}, err
	}

	ev.StartsAt = req.StartsAt
	ev.EndsAt = req.EndsAt
	ev.UpdatedAt = now
	return ev, nil
}

func sameEnd(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// GetByRequestID returns the event published for a request, or (nil, nil).
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*models.ScheduledEvent, error) {
	var ev models.ScheduledEvent
	err := s.c.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// SetStatus moves a published event between scheduled/completed/cancelled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, st string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     st,
		"updated_at": time.Now(),
	}})
	return err
}
