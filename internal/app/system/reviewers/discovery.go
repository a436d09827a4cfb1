// internal/app/system/reviewers/discovery.go

// Package reviewers finds who may review a request. The model is broadcast:
// every qualifying user lands on the request's reviewer list and any of them
// may act; first to transition wins through the store's version check.
package reviewers

import (
	"context"
	"time"

	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/civicworks/eventgate/internal/app/system/jurisdiction"
	"github.com/civicworks/eventgate/internal/app/system/locations"
	"github.com/civicworks/eventgate/internal/app/system/permissions"
	"github.com/civicworks/eventgate/internal/app/system/workflow"
	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PermissionChecker is the slice of the permission aggregator discovery
// needs.
type PermissionChecker interface {
	Check(ctx context.Context, userID primitive.ObjectID, resource, action string, scope permissions.Scope) (bool, error)
}

// CandidateSource enumerates active users at or above the given authority.
type CandidateSource interface {
	ActiveUsersWithAuthority(ctx context.Context, minAuthority int) ([]models.User, error)
}

// Discovery is the reviewer discovery service.
type Discovery struct {
	users CandidateSource
	perms PermissionChecker
	hier  locations.Hierarchy
	log   *zap.Logger

	now func() time.Time
}

// New wires a Discovery to its collaborators.
func New(users CandidateSource, perms PermissionChecker, hier locations.Hierarchy, logger *zap.Logger) *Discovery {
	return &Discovery{users: users, perms: perms, hier: hier, log: logger, now: time.Now}
}

// WithClock overrides the discovery clock. Tests only.
func (d *Discovery) WithClock(now func() time.Time) *Discovery {
	d.now = now
	return d
}

// Qualifies reports whether one user passes the reviewer test for a
// location and org type: the review permission at that location plus a
// jurisdiction match.
func Qualifies(ctx context.Context, perms PermissionChecker, hier locations.Hierarchy, user *models.User, locationID, orgType string) (bool, error) {
	if user == nil {
		return false, nil
	}
	allowed, err := perms.Check(ctx, user.ID, workflow.ResourceRequest, workflow.PermReview, permissions.Scope{LocationID: locationID})
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}
	return jurisdiction.Matches(ctx, user, locationID, orgType, hier)
}

// FindReviewers returns every user qualified to review a request at the
// location/org type, given the requester's authority snapshot. Candidates
// must be at coordinator tier or above and outrank (or equal) the
// requester; system admins bypass the requester floor. Each snapshot is
// stamped with the discovery time.
func (d *Discovery) FindReviewers(ctx context.Context, locationID, orgType string, requesterAuthority int) ([]models.ReviewerSnapshot, error) {
	candidates, err := d.users.ActiveUsersWithAuthority(ctx, authority.Coordinator)
	if err != nil {
		return nil, err
	}

	discoveredAt := d.now()
	var out []models.ReviewerSnapshot
	for i := range candidates {
		u := &candidates[i]
		if u.Authority < requesterAuthority && !authority.IsSystemAdmin(u.Authority) {
			continue
		}
		ok, err := Qualifies(ctx, d.perms, d.hier, u, locationID, orgType)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, models.ReviewerSnapshot{
			UserID:       u.ID,
			Name:         u.FullName,
			RoleCode:     u.ActiveRoleCode(),
			Authority:    u.Authority,
			DiscoveredAt: discoveredAt,
		})
	}

	d.log.Debug("reviewer discovery",
		zap.String("location_id", locationID),
		zap.String("org_type", orgType),
		zap.Int("requester_authority", requesterAuthority),
		zap.Int("candidates", len(candidates)),
		zap.Int("qualified", len(out)))
	return out, nil
}
