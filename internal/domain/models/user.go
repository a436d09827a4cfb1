// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents any account in the approval hierarchy, from basic
// requesters up to system admins.
//
// NOTE:
//   - Authority is the persisted rank (20-100). It is never derived from
//     roles at read time; assignment changes only propose a new value that
//     the reconciliation path writes back (see assignmentstore).
//   - Role entries here are a cached projection of the role_assignments
//     collection. The assignments collection is authoritative for
//     expiry/revocation; the cache exists for display and snapshots.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"` // active | disabled

	Authority          int        `bson:"authority" json:"authority"`
	AuthorityChangedAt *time.Time `bson:"authority_changed_at,omitempty" json:"authority_changed_at,omitempty"`

	Roles         []UserRole         `bson:"roles,omitempty" json:"roles,omitempty"`
	Organizations []UserOrganization `bson:"organizations,omitempty" json:"organizations,omitempty"`
	CoverageAreas []CoverageArea     `bson:"coverage_areas,omitempty" json:"coverage_areas,omitempty"`

	// Location is the single municipality/barangay assignment for users
	// below coordinator tier. Coordinator-tier and above use CoverageAreas.
	Location *UserLocation `bson:"location,omitempty" json:"location,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UserRole is the cached role projection embedded on the user document.
type UserRole struct {
	RoleID    primitive.ObjectID `bson:"role_id" json:"role_id"`
	Code      string             `bson:"code" json:"code"`
	Authority int                `bson:"authority" json:"authority"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	ExpiresAt *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// UserOrganization links a user to an organization with its type
// (e.g. "ngo", "lgu", "private") and a primary flag.
type UserOrganization struct {
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Name           string             `bson:"name" json:"name"`
	Type           string             `bson:"type" json:"type"`
	IsPrimary      bool               `bson:"is_primary" json:"is_primary"`
}

// CoverageArea is a named set of district/municipality identifiers a
// coordinator-tier user is responsible for. Location identifiers are
// PSGC-style string codes, not ObjectIDs.
type CoverageArea struct {
	Name        string   `bson:"name" json:"name"`
	LocationIDs []string `bson:"location_ids" json:"location_ids"`
	IsPrimary   bool     `bson:"is_primary" json:"is_primary"`
}

// UserLocation is the direct location assignment for non-coordinator users.
type UserLocation struct {
	MunicipalityID string `bson:"municipality_id" json:"municipality_id"`
	BarangayID     string `bson:"barangay_id,omitempty" json:"barangay_id,omitempty"`
}

// PrimaryOrgType returns the type of the user's primary organization, or the
// first organization's type when none is flagged primary. Empty when the
// user has no organizations.
func (u *User) PrimaryOrgType() string {
	for _, org := range u.Organizations {
		if org.IsPrimary {
			return org.Type
		}
	}
	if len(u.Organizations) > 0 {
		return u.Organizations[0].Type
	}
	return ""
}

// HasOrgType reports whether any of the user's organizations has the given
// type. Comparison is exact; callers normalize beforehand.
func (u *User) HasOrgType(orgType string) bool {
	for _, org := range u.Organizations {
		if org.Type == orgType {
			return true
		}
	}
	return false
}

// ActiveRoleCode returns the code of the highest-authority active cached
// role, for snapshots. Empty when the user has no active roles.
func (u *User) ActiveRoleCode() string {
	code := ""
	best := -1
	for _, r := range u.Roles {
		if r.IsActive && r.Authority > best {
			best = r.Authority
			code = r.Code
		}
	}
	return code
}
