// internal/app/system/permissions/permissions.go

// Package permissions merges a user's active role assignments into one
// effective permission set and answers allow/deny questions against it.
//
// Resolution is read-only and tolerant of bad data: a dangling role
// reference or a role with no grants is skipped with a warning, never an
// error. Data-integrity problems degrade to "denied"; only infrastructure
// failures (store unreachable) surface as errors.
package permissions

import (
	"context"
	"sort"
	"time"

	"github.com/civicworks/eventgate/internal/app/system/locations"
	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Wildcard matches any resource, action, or metadata constraint value.
const Wildcard = "*"

// Scope narrows which assignments contribute to a resolution. Zero values
// mean unfiltered.
type Scope struct {
	LocationID     string
	CoverageAreaID string
}

// Grant is the merged entry for one resource.
type Grant struct {
	Resource string
	Actions  map[string]bool
	Metadata map[string][]string
}

// Set is the effective permission set, keyed by resource.
type Set map[string]Grant

// Allows reports whether the set permits the action on the resource, via an
// exact entry or a wildcard one.
func (s Set) Allows(resource, action string) bool {
	for _, key := range [2]string{resource, Wildcard} {
		g, ok := s[key]
		if !ok {
			continue
		}
		if g.Actions[action] || g.Actions[Wildcard] {
			return true
		}
	}
	return false
}

// ConstraintAllows reports whether the metadata constraint list named key on
// the resource's grant admits the value. A missing list or a wildcard entry
// means unconstrained. Wildcard-resource grants are consulted as well.
func (s Set) ConstraintAllows(resource, key, value string) bool {
	for _, rk := range [2]string{resource, Wildcard} {
		g, ok := s[rk]
		if !ok {
			continue
		}
		list, has := g.Metadata[key]
		if !has || len(list) == 0 {
			return true
		}
		for _, v := range list {
			if v == Wildcard || v == value {
				return true
			}
		}
	}
	// No grant at all for the resource: nothing to constrain.
	_, direct := s[resource]
	_, wild := s[Wildcard]
	return !direct && !wild
}

// Resources returns the granted resource keys, sorted. Used in denial
// diagnostics.
func (s Set) Resources() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge folds one role grant into the set, union-ing actions and metadata
// lists. A wildcard on either side of a metadata list collapses the merged
// list to wildcard.
func (s Set) Merge(pg models.PermissionGrant) {
	if pg.Resource == "" || len(pg.Actions) == 0 {
		return
	}
	g, ok := s[pg.Resource]
	if !ok {
		g = Grant{
			Resource: pg.Resource,
			Actions:  make(map[string]bool),
			Metadata: make(map[string][]string),
		}
	}
	for _, a := range pg.Actions {
		if a != "" {
			g.Actions[a] = true
		}
	}
	for key, list := range pg.Metadata {
		g.Metadata[key] = unionConstraint(g.Metadata[key], list)
	}
	s[pg.Resource] = g
}

func unionConstraint(a, b []string) []string {
	for _, v := range a {
		if v == Wildcard {
			return []string{Wildcard}
		}
	}
	for _, v := range b {
		if v == Wildcard {
			return []string{Wildcard}
		}
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [2][]string{a, b} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// RoleSource resolves role documents. Implementations return (nil, nil) for
// unknown IDs so the aggregator can degrade instead of failing.
type RoleSource interface {
	RoleByID(ctx context.Context, id primitive.ObjectID) (*models.Role, error)
}

// AssignmentSource lists a user's assignments that are active and unexpired
// at the given instant.
type AssignmentSource interface {
	ActiveForUser(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]models.RoleAssignment, error)
}

// Aggregator is the store-backed resolution service.
type Aggregator struct {
	assignments AssignmentSource
	roles       RoleSource
	hier        locations.Hierarchy
	log         *zap.Logger

	now func() time.Time
}

// NewAggregator wires the aggregator to its collaborators.
func NewAggregator(assignments AssignmentSource, roles RoleSource, hier locations.Hierarchy, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		assignments: assignments,
		roles:       roles,
		hier:        hier,
		log:         logger,
		now:         time.Now,
	}
}

// WithClock overrides the aggregator's clock. Tests only.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// UserPermissions resolves the user's effective permission set under the
// given scope.
func (a *Aggregator) UserPermissions(ctx context.Context, userID primitive.ObjectID, scope Scope) (Set, error) {
	assignments, err := a.assignments.ActiveForUser(ctx, userID, a.now())
	if err != nil {
		return nil, err
	}

	kept, err := FilterByScope(ctx, assignments, scope, a.hier)
	if err != nil {
		return nil, err
	}

	set := make(Set)
	for _, asg := range kept {
		role, err := a.roles.RoleByID(ctx, asg.RoleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			// Dangling reference: the role was deleted out from under the
			// assignment. Degrade to denied for this grant.
			a.log.Warn("role assignment references missing role",
				zap.String("assignment_id", asg.ID.Hex()),
				zap.String("role_id", asg.RoleID.Hex()),
				zap.String("user_id", userID.Hex()))
			continue
		}
		if len(role.Permissions) == 0 {
			continue
		}
		for _, pg := range role.Permissions {
			set.Merge(pg)
		}
	}
	return set, nil
}

// Check reports whether the user may perform action on resource under the
// given scope. Zero active assignments deny everything.
func (a *Aggregator) Check(ctx context.Context, userID primitive.ObjectID, resource, action string, scope Scope) (bool, error) {
	set, err := a.UserPermissions(ctx, userID, scope)
	if err != nil {
		return false, err
	}
	return set.Allows(resource, action), nil
}

// FilterByScope drops assignments whose context excludes the scope's
// location or coverage area. An empty scope list on the assignment keeps it:
// unscoped assignments apply everywhere, and the actor's own geographic
// reach is the jurisdiction resolver's concern. Scoped assignments match
// when the target is in the scope list or hierarchically related to an
// entry (a district-scoped grant applies in its municipalities and
// vice versa).
func FilterByScope(ctx context.Context, assignments []models.RoleAssignment, scope Scope, hier locations.Hierarchy) ([]models.RoleAssignment, error) {
	if scope.LocationID == "" && scope.CoverageAreaID == "" {
		return assignments, nil
	}

	var out []models.RoleAssignment
	for _, asg := range assignments {
		if scope.LocationID != "" {
			ok, err := scopeAdmits(ctx, asg.Context.LocationScope, scope.LocationID, hier)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if scope.CoverageAreaID != "" {
			ok, err := scopeAdmits(ctx, asg.Context.CoverageAreaScope, scope.CoverageAreaID, hier)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, asg)
	}
	return out, nil
}

func scopeAdmits(ctx context.Context, scopeList []string, target string, hier locations.Hierarchy) (bool, error) {
	if len(scopeList) == 0 {
		return true, nil
	}
	for _, code := range scopeList {
		ok, err := locations.Related(ctx, hier, code, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
