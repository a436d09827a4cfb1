// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureRoles(ctx, db); err != nil {
		problems = append(problems, "roles: "+err.Error())
	}
	if err := ensureRoleAssignments(ctx, db); err != nil {
		problems = append(problems, "role_assignments: "+err.Error())
	}
	if err := ensureEventRequests(ctx, db); err != nil {
		problems = append(problems, "event_requests: "+err.Error())
	}
	if err := ensureScheduledEvents(ctx, db); err != nil {
		problems = append(problems, "scheduled_events: "+err.Error())
	}
	if err := ensureLocations(ctx, db); err != nil {
		problems = append(problems, "locations: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	// Load existing indexes once per collection.
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				zap.L().Warn("failed to decode existing index",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
		cur.Close(ctx)
	}

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}
			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email must be unique across all users.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Reviewer discovery scans active users at or above an authority
		// floor, highest first.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "authority", Value: -1},
				{Key: "full_name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_users_status_authority_fullnameci"),
		},
	})
}

func ensureRoles(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("roles")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roles_code"),
		},
		{
			Keys: bson.D{
				{Key: "is_active", Value: 1},
				{Key: "authority", Value: -1},
			},
			Options: options.Index().SetName("idx_roles_active_authority"),
		},
	})
}

func ensureRoleAssignments(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("role_assignments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// ActiveForUser: user + active flag, then the expiry predicate.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_active", Value: 1},
				{Key: "expires_at", Value: 1},
			},
			Options: options.Index().SetName("idx_assignments_user_active_expires"),
		},
		{
			Keys:    bson.D{{Key: "role_id", Value: 1}},
			Options: options.Index().SetName("idx_assignments_role"),
		},
	})
}

func ensureEventRequests(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("event_requests")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Public id; also the CAS filter {request_id, version} uses this prefix.
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_requests_request_id"),
		},
		// Participant listings.
		{
			Keys: bson.D{
				{Key: "requester.user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_requester_created"),
		},
		{
			Keys: bson.D{
				{Key: "valid_reviewers.user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_reviewers_created"),
		},
		// Coverage-area listings hit one of the denormalized location fields.
		{
			Keys: bson.D{
				{Key: "municipality_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_municipality_created"),
		},
		{
			Keys: bson.D{
				{Key: "district_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_district_created"),
		},
		{
			Keys: bson.D{
				{Key: "province_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_province_created"),
		},
		// Publish retry worker scans pending publishes oldest-first.
		{
			Keys: bson.D{
				{Key: "publish_pending", Value: 1},
				{Key: "updated_at", Value: 1},
			},
			Options: options.Index().SetName("idx_requests_publish_pending"),
		},
	})
}

func ensureScheduledEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("scheduled_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One published event per request; the idempotent publish path
		// relies on this.
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_events_request_id"),
		},
		{
			Keys: bson.D{
				{Key: "municipality_id", Value: 1},
				{Key: "starts_at", Value: 1},
			},
			Options: options.Index().SetName("idx_events_municipality_starts"),
		},
	})
}

func ensureLocations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("locations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_locations_code"),
		},
		{
			Keys:    bson.D{{Key: "parent_code", Value: 1}},
			Options: options.Index().SetName("idx_locations_parent"),
		},
	})
}
