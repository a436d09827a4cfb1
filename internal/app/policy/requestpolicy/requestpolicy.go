// Package requestpolicy holds the authorization guards for the request
// workflow.
//
// Authorization rules:
//   - accept/reject: actor must pass the reviewer test for the request's
//     location (review permission there plus jurisdiction match)
//   - reschedule: reschedule or review permission at the location, and the
//     actor is the requester, outranks the requester's authority snapshot,
//     or is system-admin tier
//   - confirm/decline: actor must be the original requester and hold the
//     confirm permission
//   - cancel: cancel permission, and the actor is the requester or a
//     qualifying reviewer
//
// Guards are evaluated before the transition table is consulted and are
// read-only; they never mutate the request.
package requestpolicy

import (
	"context"
	"fmt"

	"github.com/civicworks/eventgate/internal/app/system/authority"
	"github.com/civicworks/eventgate/internal/app/system/jurisdiction"
	"github.com/civicworks/eventgate/internal/app/system/locations"
	"github.com/civicworks/eventgate/internal/app/system/permissions"
	"github.com/civicworks/eventgate/internal/app/system/reviewers"
	"github.com/civicworks/eventgate/internal/app/system/workflow"
	"github.com/civicworks/eventgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PermissionSource is the slice of the permission aggregator the guards
// need: point checks plus the full set for diagnostics and constraint
// checks.
type PermissionSource interface {
	Check(ctx context.Context, userID primitive.ObjectID, resource, action string, scope permissions.Scope) (bool, error)
	UserPermissions(ctx context.Context, userID primitive.ObjectID, scope permissions.Scope) (permissions.Set, error)
}

// Deps bundles the collaborators every guard needs.
type Deps struct {
	Perms PermissionSource
	Hier  locations.Hierarchy
}

// CanTransition evaluates the guard for one action against one request.
// It returns (false, reason, nil) on a clean denial; the reason names the
// failed rule and is safe to surface to the caller.
func CanTransition(ctx context.Context, deps Deps, actor *models.User, req *models.EventRequest, action workflow.Action) (bool, string, error) {
	if actor == nil {
		return false, "actor not found", nil
	}
	isRequester := req.IsRequester(actor.ID)
	scope := permissions.Scope{LocationID: req.MunicipalityID}

	switch action {
	case workflow.ActionAccept, workflow.ActionReject:
		ok, err := reviewers.Qualifies(ctx, deps.Perms, deps.Hier, actor, req.MunicipalityID, req.OrganizationType)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, "actor does not qualify as a reviewer for this request's location", nil
		}
		return true, "", nil

	case workflow.ActionReschedule:
		allowed, err := deps.Perms.Check(ctx, actor.ID, workflow.ResourceRequest, workflow.PermReschedule, scope)
		if err != nil {
			return false, "", err
		}
		if !allowed {
			// Review permission doubles as a reschedule grant for
			// reviewers whose roles predate the dedicated action.
			allowed, err = deps.Perms.Check(ctx, actor.ID, workflow.ResourceRequest, workflow.PermReview, scope)
			if err != nil {
				return false, "", err
			}
		}
		if !allowed {
			return false, "actor lacks the reschedule permission at this location", nil
		}
		if isRequester || actor.Authority >= req.Requester.Authority || authority.IsSystemAdmin(actor.Authority) {
			return true, "", nil
		}
		return false, fmt.Sprintf("actor authority %d is below the requester's %d", actor.Authority, req.Requester.Authority), nil

	case workflow.ActionConfirm, workflow.ActionDecline:
		if !isRequester {
			return false, "only the original requester may confirm or decline a reschedule", nil
		}
		allowed, err := deps.Perms.Check(ctx, actor.ID, workflow.ResourceRequest, workflow.PermConfirm, scope)
		if err != nil {
			return false, "", err
		}
		if !allowed {
			return false, "actor lacks the confirm permission", nil
		}
		return true, "", nil

	case workflow.ActionCancel:
		allowed, err := deps.Perms.Check(ctx, actor.ID, workflow.ResourceRequest, workflow.PermCancel, scope)
		if err != nil {
			return false, "", err
		}
		if !allowed {
			return false, "actor lacks the cancel permission", nil
		}
		if isRequester {
			return true, "", nil
		}
		ok, err := reviewers.Qualifies(ctx, deps.Perms, deps.Hier, actor, req.MunicipalityID, req.OrganizationType)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, "only the requester or a qualifying reviewer may cancel", nil
		}
		return true, "", nil
	}

	return false, fmt.Sprintf("no guard defined for action %q", action), nil
}

// CanCreate reports whether the actor may file a new request at the
// location, optionally constrained by event category metadata on the grant.
func CanCreate(ctx context.Context, deps Deps, actor *models.User, locationID, category string) (bool, string, error) {
	if actor == nil {
		return false, "actor not found", nil
	}
	set, err := deps.Perms.UserPermissions(ctx, actor.ID, permissions.Scope{LocationID: locationID})
	if err != nil {
		return false, "", err
	}
	if !set.Allows(workflow.ResourceRequest, workflow.PermInitiate) &&
		!set.Allows(workflow.ResourceRequest, workflow.PermCreate) {
		return false, "actor lacks the initiate permission", nil
	}
	if category != "" && !set.ConstraintAllows(workflow.ResourceRequest, "categories", category) {
		return false, fmt.Sprintf("actor's roles do not cover event category %q", category), nil
	}
	return true, "", nil
}

// CanView reports whether the user may see the request: its requester, a
// broadcast reviewer candidate, or anyone whose jurisdiction reaches its
// location.
func CanView(ctx context.Context, deps Deps, user *models.User, req *models.EventRequest) (bool, error) {
	if user == nil {
		return false, nil
	}
	if req.IsRequester(user.ID) || req.IsValidReviewer(user.ID) {
		return true, nil
	}
	return jurisdiction.Matches(ctx, user, req.MunicipalityID, req.OrganizationType, deps.Hier)
}

// CanEditPayload reports whether the user may update the request's event
// payload. Only the requester, and only while the request is still pending.
func CanEditPayload(user *models.User, req *models.EventRequest) (bool, string) {
	if user == nil {
		return false, "actor not found"
	}
	status, ok := workflow.NormalizeStatus(req.Status)
	if !ok || !workflow.CanEdit(status) {
		return false, "request is no longer editable"
	}
	if !req.IsRequester(user.ID) {
		return false, "only the requester may edit a request"
	}
	return true, ""
}
