package requeststore

import (
	"context"
	"errors"
	"time"

	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("event_requests")}
}

var (
	// ErrNotFound is returned when no request carries the given id.
	ErrNotFound = errors.New("request not found")
	// ErrVersionConflict is returned when a compare-and-swap write lost to
	// a concurrent transition. Callers reload and retry or surface the
	// conflict; the losing action is never applied.
	ErrVersionConflict = errors.New("request was modified concurrently")
)

// Create inserts a new request aggregate. The caller supplies the public
// RequestID, seeded history, and initial status; the store owns _id,
// version, and timestamps.
func (s *Store) Create(ctx context.Context, r models.EventRequest) (models.EventRequest, error) {
	r.ID = primitive.NewObjectID()
	r.Version = 1
	r.TitleCI = text.Fold(r.Title)
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.EventRequest{}, err
	}
	return r, nil
}

// GetByRequestID loads a request by its public UUID. (nil, nil) when absent.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*models.EventRequest, error) {
	var r models.EventRequest
	err := s.c.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Transition is the atomic write unit for one lifecycle step: the new
// status, both history appends, and any proposal/responder bookkeeping.
// Everything lands in a single document update so a crash can never leave
// the status and its history disagreeing.
type Transition struct {
	NewStatus       string
	StatusEntry     models.StatusEntry
	DecisionEntry   models.DecisionEntry
	ActiveResponder string

	// Proposal replaces the live reschedule proposal; ClearProposal removes
	// it (accept/confirm/reject paths).
	Proposal      *models.RescheduleProposal
	ClearProposal bool

	// NewStartsAt moves the event window when a proposal is accepted.
	NewStartsAt *time.Time
	NewEndsAt   *time.Time

	// SetReviewer records the first reviewer to act.
	SetReviewer *models.ReviewerSnapshot

	// PublishPending, when non-nil, sets the approved-but-unpublished
	// marker in the same write as the transition.
	PublishPending *bool
}

// ApplyTransition commits one transition if and only if the stored version
// still equals expectedVersion. On success it returns the updated
// aggregate; a lost race returns ErrVersionConflict.
func (s *Store) ApplyTransition(ctx context.Context, requestID string, expectedVersion int64, tx Transition) (*models.EventRequest, error) {
	now := time.Now()
	set := bson.M{
		"status":           tx.NewStatus,
		"active_responder": tx.ActiveResponder,
		"version":          expectedVersion + 1,
		"updated_at":       now,
	}
	unset := bson.M{}

	if tx.Proposal != nil {
		set["reschedule_proposal"] = tx.Proposal
	} else if tx.ClearProposal {
		unset["reschedule_proposal"] = ""
	}
	if tx.NewStartsAt != nil {
		set["starts_at"] = *tx.NewStartsAt
	}
	if tx.NewEndsAt != nil {
		set["ends_at"] = *tx.NewEndsAt
	}
	if tx.SetReviewer != nil {
		set["reviewer"] = tx.SetReviewer
	}
	if tx.PublishPending != nil {
		set["publish_pending"] = *tx.PublishPending
	}

	update := bson.M{
		"$set": set,
		"$push": bson.M{
			"status_history":   tx.StatusEntry,
			"decision_history": tx.DecisionEntry,
		},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.EventRequest
	err := s.c.FindOneAndUpdate(ctx, bson.M{
		"request_id": requestID,
		"version":    expectedVersion,
	}, update, opts).Decode(&updated)

	if err == mongo.ErrNoDocuments {
		// Either the request vanished or somebody else won the version
		// race. Distinguish for the caller.
		exists, exErr := s.exists(ctx, requestID)
		if exErr != nil {
			return nil, exErr
		}
		if exists {
			return nil, ErrVersionConflict
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) exists(ctx context.Context, requestID string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"request_id": requestID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PayloadUpdate holds the event payload fields the requester may edit while
// the request is still pending.
type PayloadUpdate struct {
	Title        string
	Description  string
	Category     string
	StartsAt     time.Time
	EndsAt       *time.Time
	CategoryData map[string]interface{}
}

// UpdatePayload edits the event payload under the same version discipline
// as transitions.
func (s *Store) UpdatePayload(ctx context.Context, requestID string, expectedVersion int64, upd PayloadUpdate) (*models.EventRequest, error) {
	set := bson.M{
		"title":       upd.Title,
		"title_ci":    text.Fold(upd.Title),
		"description": upd.Description,
		"category":    upd.Category,
		"starts_at":   upd.StartsAt,
		"version":     expectedVersion + 1,
		"updated_at":  time.Now(),
	}
	if upd.EndsAt != nil {
		set["ends_at"] = *upd.EndsAt
	}
	if upd.CategoryData != nil {
		set["category_data"] = upd.CategoryData
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.EventRequest
	err := s.c.FindOneAndUpdate(ctx, bson.M{
		"request_id": requestID,
		"version":    expectedVersion,
	}, bson.M{"$set": set}, opts).Decode(&updated)

	if err == mongo.ErrNoDocuments {
		exists, exErr := s.exists(ctx, requestID)
		if exErr != nil {
			return nil, exErr
		}
		if exists {
			return nil, ErrVersionConflict
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPublishState records the outcome of a downstream publish attempt.
// Deliberately not version-checked: the publish marker is owed regardless
// of later transitions, and losing it would orphan the approved request.
func (s *Store) SetPublishState(ctx context.Context, requestID string, pending bool, eventID *primitive.ObjectID) error {
	set := bson.M{
		"publish_pending": pending,
		"updated_at":      time.Now(),
	}
	if eventID != nil {
		set["published_event_id"] = *eventID
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"request_id": requestID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Filter narrows visibility listings.
type Filter struct {
	Status           string
	OrganizationType string
	Limit            int64
}

func (f Filter) apply(base bson.M) bson.M {
	if f.Status != "" {
		base["status"] = f.Status
	}
	if f.OrganizationType != "" {
		base["organization_type"] = f.OrganizationType
	}
	return base
}

func (f Filter) findOptions() *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return opts
}

// ListByParticipant returns requests where the user is the requester or on
// the broadcast reviewer list.
func (s *Store) ListByParticipant(ctx context.Context, userID primitive.ObjectID, f Filter) ([]models.EventRequest, error) {
	filter := f.apply(bson.M{"$or": bson.A{
		bson.M{"requester.user_id": userID},
		bson.M{"valid_reviewers.user_id": userID},
	}})
	return s.find(ctx, filter, f)
}

// ListByLocations returns requests whose municipality, district, or
// province matches any of the codes. This is how coverage-area visibility
// is answered without walking the hierarchy per request: a coverage code at
// any level matches the corresponding denormalized field.
func (s *Store) ListByLocations(ctx context.Context, codes []string, f Filter) ([]models.EventRequest, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	filter := f.apply(bson.M{"$or": bson.A{
		bson.M{"municipality_id": bson.M{"$in": codes}},
		bson.M{"district_id": bson.M{"$in": codes}},
		bson.M{"province_id": bson.M{"$in": codes}},
	}})
	return s.find(ctx, filter, f)
}

// ListPublishPending returns approved requests still owing their downstream
// event, oldest first. Backs the publish retry worker.
func (s *Store) ListPublishPending(ctx context.Context, limit int64) ([]models.EventRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"publish_pending": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.EventRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, f Filter) ([]models.EventRequest, error) {
	cur, err := s.c.Find(ctx, filter, f.findOptions())
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.EventRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
