// internal/domain/models/roleassignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleAssignment is the user-to-role edge. Assignments are soft-deleted:
// revocation sets IsActive=false and RevokedAt, the document stays.
// Expiry is lazy; readers must treat an assignment whose ExpiresAt has
// passed as inactive even before any cleanup touches it.
type RoleAssignment struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	RoleID primitive.ObjectID `bson:"role_id" json:"role_id"`

	// Cached from the role at assignment time, for snapshots and sorting.
	RoleCode      string `bson:"role_code" json:"role_code"`
	RoleAuthority int    `bson:"role_authority" json:"role_authority"`

	IsActive  bool       `bson:"is_active" json:"is_active"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`

	Context AssignmentContext `bson:"context,omitempty" json:"context,omitempty"`

	AssignedBy *primitive.ObjectID `bson:"assigned_by,omitempty" json:"assigned_by,omitempty"`
	AssignedAt time.Time           `bson:"assigned_at" json:"assigned_at"`
	RevokedAt  *time.Time          `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
}

// AssignmentContext narrows where an assignment's grants apply. Empty scopes
// mean the assignment is unscoped for that dimension.
type AssignmentContext struct {
	LocationScope     []string `bson:"location_scope,omitempty" json:"location_scope,omitempty"`
	CoverageAreaScope []string `bson:"coverage_area_scope,omitempty" json:"coverage_area_scope,omitempty"`
}

// EffectiveAt reports whether the assignment is live at the given instant:
// active and either non-expiring or not yet expired.
func (a *RoleAssignment) EffectiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}
