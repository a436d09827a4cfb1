// internal/app/system/authority/authority.go

// Package authority defines the integer authority scale (20-100) and the
// tier lookup used across permission checks and reviewer discovery.
//
// Authority is persisted on users and roles; nothing in this package ever
// recomputes a user's score from their roles. Assigning a role only
// *proposes* a score (see ProposeFromRoles), which the assignment store's
// reconciliation path writes back to the user document.
package authority

// Tier boundaries. Stakeholder occupies the 30-59 band with the basic floor
// at 20; there is no separate boundary at 40.
const (
	BasicUser        = 20
	Stakeholder      = 30
	Coordinator      = 60
	OperationalAdmin = 80
	SystemAdmin      = 100
)

// Tier names, used in snapshots, logs, and API responses.
const (
	TierBasicUser        = "basic_user"
	TierStakeholder      = "stakeholder"
	TierCoordinator      = "coordinator"
	TierOperationalAdmin = "operational_admin"
	TierSystemAdmin      = "system_admin"
)

// TierFor maps an authority score to its tier name. Pure lookup, no side
// effects.
func TierFor(score int) string {
	switch {
	case score >= SystemAdmin:
		return TierSystemAdmin
	case score >= OperationalAdmin:
		return TierOperationalAdmin
	case score >= Coordinator:
		return TierCoordinator
	case score >= Stakeholder:
		return TierStakeholder
	default:
		return TierBasicUser
	}
}

// IsCoordinatorTier reports whether the score is at or above coordinator.
// Users at this tier carry coverage areas instead of a single location.
func IsCoordinatorTier(score int) bool {
	return score >= Coordinator
}

// IsSystemAdmin reports whether the score is at or above system admin.
// System admins bypass the requester-authority floor in reviewer discovery.
func IsSystemAdmin(score int) bool {
	return score >= SystemAdmin
}

// Clamp bounds a proposed score to the legal [BasicUser, SystemAdmin] range.
func Clamp(score int) int {
	if score < BasicUser {
		return BasicUser
	}
	if score > SystemAdmin {
		return SystemAdmin
	}
	return score
}

// ProposeFromRoles returns the authority a user's active role authorities
// propose: the highest of them, clamped to the legal range. BasicUser when
// there are none. Callers persist the result; reads always use the stored
// user field.
func ProposeFromRoles(roleAuthorities []int) int {
	best := BasicUser
	for _, a := range roleAuthorities {
		if a > best {
			best = a
		}
	}
	return Clamp(best)
}
