package locationstore

import (
	"context"

	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("locations")}
}

// AllLocations returns the complete location table. The hierarchy tree
// loads through this once and caches until invalidated.
func (s *Store) AllLocations(ctx context.Context) ([]models.Location, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Location
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByCode loads one location. Returns (nil, nil) when the code is unknown.
func (s *Store) GetByCode(ctx context.Context, code string) (*models.Location, error) {
	var loc models.Location
	err := s.c.FindOne(ctx, bson.M{"code": code}).Decode(&loc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// Put upserts a location by code. Used by seeding and admin imports.
func (s *Store) Put(ctx context.Context, loc models.Location) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"code": loc.Code},
		bson.M{"$set": bson.M{
			"name":        loc.Name,
			"level":       loc.Level,
			"parent_code": loc.ParentCode,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}
