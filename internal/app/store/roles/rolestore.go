package rolestore

import (
	"context"
	"errors"
	"time"

	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/civicworks/eventgate/internal/app/system/normalize"
	"github.com/civicworks/eventgate/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("roles")}
}

var (
	// ErrDuplicateCode is returned when a role code is already taken.
	ErrDuplicateCode = errors.New("a role with this code already exists")
	errEmptyCode     = errors.New("role code is required")
	errBadAuthority  = errors.New("role authority must be between 20 and 100")
)

// Create inserts a new role after normalizing the code slug.
func (s *Store) Create(ctx context.Context, r models.Role) (models.Role, error) {
	r.ID = primitive.NewObjectID()
	r.Code = normalize.Slug(r.Code)
	if r.Code == "" {
		return models.Role{}, errEmptyCode
	}
	if r.Authority < authority.BasicUser || r.Authority > authority.SystemAdmin {
		return models.Role{}, errBadAuthority
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Role{}, ErrDuplicateCode
		}
		return models.Role{}, err
	}
	return r, nil
}

// RoleByID loads a role by ObjectID. Returns (nil, nil) when the role does
// not exist; the permission aggregator treats that as a dangling reference
// and degrades to denied.
func (s *Store) RoleByID(ctx context.Context, id primitive.ObjectID) (*models.Role, error) {
	var r models.Role
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByCode looks up a role by its slug. Returns (nil, nil) when not found.
func (s *Store) GetByCode(ctx context.Context, code string) (*models.Role, error) {
	var r models.Role
	err := s.c.FindOne(ctx, bson.M{"code": normalize.Slug(code)}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns roles sorted by authority then code. With activeOnly, only
// roles still open for assignment.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]models.Role, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "authority", Value: -1}, {Key: "code", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Role
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePermissions replaces a role's grant list.
func (s *Store) UpdatePermissions(ctx context.Context, id primitive.ObjectID, grants []models.PermissionGrant) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"permissions": grants,
		"updated_at":  time.Now(),
	}})
	return err
}
