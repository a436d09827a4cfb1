// internal/app/system/jurisdiction/jurisdiction.go

// Package jurisdiction decides whether a user's coverage and organization
// type reach a request's location and organization type.
package jurisdiction

import (
	"context"

	"github.com/civicworks/eventgate/internal/app/system/locations"
	"github.com/civicworks/eventgate/internal/domain/models"
)

// Matches reports whether the user's coverage areas and organization type
// intersect the target location and organization type.
//
// Organization type: absence on either side is "don't care"; a user whose
// concrete org types all differ from a concrete target type never matches.
//
// Coverage: the target must be one of the user's coverage location codes or
// sit inside one (province/district containment resolved through the
// hierarchy collaborator). A user with zero coverage areas never matches,
// whatever permissions they hold.
func Matches(ctx context.Context, user *models.User, targetLocationID, targetOrgType string, hier locations.Hierarchy) (bool, error) {
	if user == nil || targetLocationID == "" {
		return false, nil
	}
	if !orgTypeCompatible(user, targetOrgType) {
		return false, nil
	}
	if len(user.CoverageAreas) == 0 {
		return false, nil
	}

	for _, area := range user.CoverageAreas {
		ok, err := locations.AnyContains(ctx, hier, area.LocationIDs, targetLocationID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func orgTypeCompatible(user *models.User, targetOrgType string) bool {
	if targetOrgType == "" {
		return true
	}
	concrete := false
	for _, org := range user.Organizations {
		if org.Type == "" {
			continue
		}
		concrete = true
		if org.Type == targetOrgType {
			return true
		}
	}
	// No concrete org type on the user side means "don't care".
	return !concrete
}
