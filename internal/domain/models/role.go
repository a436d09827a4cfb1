// internal/domain/models/role.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a named bundle of permission grants at a fixed authority tier.
type Role struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code        string             `bson:"code" json:"code"` // unique slug, e.g. "district-coordinator"
	Name        string             `bson:"name" json:"name"`
	Authority   int                `bson:"authority" json:"authority"`
	Permissions []PermissionGrant  `bson:"permissions,omitempty" json:"permissions,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PermissionGrant is one resource entry on a role. Resource and any action
// may be the wildcard "*". Metadata carries constraint lists keyed by
// constraint name (e.g. allowed event categories for the "request" resource);
// a "*" entry in a list means unconstrained.
type PermissionGrant struct {
	Resource string              `bson:"resource" json:"resource"`
	Actions  []string            `bson:"actions" json:"actions"`
	Metadata map[string][]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
}
