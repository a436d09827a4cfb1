package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/civicworks/eventgate/internal/app/system/normalize"
	"github.com/civicworks/eventgate/internal/app/system/status"
	"github.com/civicworks/eventgate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
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
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadStatus      = errors.New(`status must be "active"|"disabled"`)
	errBadAuthority   = errors.New("authority must be between 20 and 100")
	errLocationNeeded = errors.New("users below coordinator tier must have a location")
	errCoverageNeeded = errors.New("coordinator-tier users must have at least one organization and one coverage area")
)

// Create inserts a new user after normalizing & validating fields.
//
// Tier invariants are enforced here, at the persistence boundary: users
// below coordinator tier need a direct location; users at or above it need
// at least one organization and one coverage area.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	if u.Status == "" {
		u.Status = status.Active
	}

	if !status.IsValid(u.Status) {
		return models.User{}, errBadStatus
	}
	if u.Authority < authority.BasicUser || u.Authority > authority.SystemAdmin {
		return models.User{}, errBadAuthority
	}
	if authority.IsCoordinatorTier(u.Authority) {
		if len(u.Organizations) == 0 || len(u.CoverageAreas) == 0 {
			return models.User{}, errCoverageNeeded
		}
	} else if u.Location == nil || u.Location.MunicipalityID == "" {
		return models.User{}, errLocationNeeded
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID. Returns (nil, nil) when no such user
// exists so permission paths can degrade instead of failing.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns (nil, nil)
// when not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ActiveUsersWithAuthority returns active users at or above the given
// authority, highest authority first. This backs reviewer discovery.
func (s *Store) ActiveUsersWithAuthority(ctx context.Context, minAuthority int) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "authority", Value: -1}, {Key: "full_name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{
		"status":    status.Active,
		"authority": bson.M{"$gte": minAuthority},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetAuthority writes a reconciled authority score and stamps
// authority_changed_at. No-op guards are the caller's concern.
func (s *Store) SetAuthority(ctx context.Context, id primitive.ObjectID, score int, at time.Time) error {
	if score < authority.BasicUser || score > authority.SystemAdmin {
		return errBadAuthority
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"authority":            score,
		"authority_changed_at": at,
		"updated_at":           at,
	}})
	return err
}

// SyncRoleCache replaces the cached role projection on the user document.
// Called after assignments change; the assignments collection stays
// authoritative.
func (s *Store) SyncRoleCache(ctx context.Context, id primitive.ObjectID, roles []models.UserRole) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"roles":      roles,
		"updated_at": time.Now(),
	}})
	return err
}

// SetStatus flips a user between active and disabled.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, st string) error {
	if !status.IsValid(st) {
		return errBadStatus
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     st,
		"updated_at": time.Now(),
	}})
	return err
}
