package assignmentstore

import (
	"context"
	"time"

	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("role_assignments")}
}

// Assign creates an active assignment. The role code/authority are cached
// onto the edge so snapshots and reconciliation never need a join.
func (s *Store) Assign(ctx context.Context, a models.RoleAssignment) (models.RoleAssignment, error) {
	a.ID = primitive.NewObjectID()
	a.IsActive = true
	a.RevokedAt = nil
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.RoleAssignment{}, err
	}
	return a, nil
}

// Revoke soft-deletes an assignment. The document stays for audit; readers
// skip it through the is_active filter.
func (s *Store) Revoke(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_active":  false,
		"revoked_at": now,
	}})
	return err
}

// ActiveForUser returns the user's assignments that are active and
// unexpired at the given instant. Expiry is lazy: expired documents are
// excluded here, not deleted.
func (s *Store) ActiveForUser(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.RoleAssignment, error) {
	filter := bson.M{
		"user_id":   userID,
		"is_active": true,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "assigned_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RoleAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllForUser returns every assignment edge for the user, revoked and
// expired included. Admin/audit surfaces only.
func (s *Store) AllForUser(ctx context.Context, userID primitive.ObjectID) ([]models.RoleAssignment, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "assigned_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RoleAssignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProposedAuthority computes the authority the user's active assignments
// propose. The caller decides whether to reconcile it into the user
// document; reads of user authority never come through here.
func (s *Store) ProposedAuthority(ctx context.Context, userID primitive.ObjectID, now time.Time) (int, error) {
	assignments, err := s.ActiveForUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	scores := make([]int, 0, len(assignments))
	for _, a := range assignments {
		scores = append(scores, a.RoleAuthority)
	}
	return authority.ProposeFromRoles(scores), nil
}

// RoleCacheFor projects the user's assignments into the embedded role cache
// shape stored on the user document.
func RoleCacheFor(assignments []models.RoleAssignment) []models.UserRole {
	out := make([]models.UserRole, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, models.UserRole{
			RoleID:    a.RoleID,
			Code:      a.RoleCode,
			Authority: a.RoleAuthority,
			IsActive:  a.IsActive,
			ExpiresAt: a.ExpiresAt,
		})
	}
	return out
}
