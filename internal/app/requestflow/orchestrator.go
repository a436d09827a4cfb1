// Package requestflow drives request lifecycle transitions end-to-end:
// normalize the action, consult the transition table, run the policy
// guards, commit the transition atomically, then fire side effects
// (publish, notify, audit, metrics). The transition commits before any
// side effect runs; side effects are best-effort and retryable.
package requestflow

import (
	"context"
	"time"

	"github.com/civicworks/eventgate/internal/app/policy/requestpolicy"
	"github.com/civicworks/eventgate/internal/app/store/requests"
	"github.com/civicworks/eventgate/internal/app/system/auditlog"
	"github.com/civicworks/eventgate/internal/app/system/htmlsanitize"
	"github.com/civicworks/eventgate/internal/app/system/jurisdiction"
	"github.com/civicworks/eventgate/internal/app/system/metrics"
	"github.com/civicworks/eventgate/internal/app/system/notify"
	"github.com/civicworks/eventgate/internal/app/system/permissions"
	"github.com/civicworks/eventgate/internal/app/system/workflow"
	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RequestStore is the slice of the request store the orchestrator needs.
// requeststore.Store satisfies it; tests use an in-memory fake.
type RequestStore interface {
	Create(ctx context.Context, r models.EventRequest) (models.EventRequest, error)
	GetByRequestID(ctx context.Context, requestID string) (*models.EventRequest, error)
	ApplyTransition(ctx context.Context, requestID string, expectedVersion int64, tx requeststore.Transition) (*models.EventRequest, error)
	UpdatePayload(ctx context.Context, requestID string, expectedVersion int64, upd requeststore.PayloadUpdate) (*models.EventRequest, error)
	SetPublishState(ctx context.Context, requestID string, pending bool, eventID *primitive.ObjectID) error
	ListByParticipant(ctx context.Context, userID primitive.ObjectID, f requeststore.Filter) ([]models.EventRequest, error)
	ListByLocations(ctx context.Context, codes []string, f requeststore.Filter) ([]models.EventRequest, error)
	ListPublishPending(ctx context.Context, limit int64) ([]models.EventRequest, error)
}

// UserSource loads actors. (nil, nil) means unknown user.
type UserSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// EventPublisher materializes the downstream event for an approved request.
// Must be idempotent on request id; a republish for a request whose window
// moved since the first publish realigns the event with the request.
type EventPublisher interface {
	CreateFromRequest(ctx context.Context, req models.EventRequest, approvedBy models.ActorSnapshot) (models.ScheduledEvent, error)
}

// ReviewerFinder is the broadcast discovery service.
type ReviewerFinder interface {
	FindReviewers(ctx context.Context, locationID, orgType string, requesterAuthority int) ([]models.ReviewerSnapshot, error)
}

// Config wires a Service to its collaborators. Audit and Metrics may be
// nil; Notifier may be nil.
type Config struct {
	Requests  RequestStore
	Users     UserSource
	Publisher EventPublisher
	Discovery ReviewerFinder
	Policy    requestpolicy.Deps
	Notifier  notify.Notifier
	Audit     *auditlog.Logger
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Service is the request workflow orchestrator.
type Service struct {
	requests  RequestStore
	users     UserSource
	publisher EventPublisher
	discovery ReviewerFinder
	policy    requestpolicy.Deps
	notifier  notify.Notifier
	audit     *auditlog.Logger
	metrics   *metrics.Metrics
	log       *zap.Logger

	now func() time.Time
}

func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		requests:  cfg.Requests,
		users:     cfg.Users,
		publisher: cfg.Publisher,
		discovery: cfg.Discovery,
		policy:    cfg.Policy,
		notifier:  cfg.Notifier,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func snapshot(u *models.User) models.ActorSnapshot {
	return models.ActorSnapshot{
		UserID:    u.ID,
		Name:      u.FullName,
		RoleCode:  u.ActiveRoleCode(),
		Authority: u.Authority,
	}
}

func entryID() string {
	return ulid.Make().String()
}

/* -------------------------------------------------------------------------- */
/* Create                                                                     */
/* -------------------------------------------------------------------------- */

// CreateInput is the payload for a new event request.
type CreateInput struct {
	Title            string
	Description      string
	Category         string
	MunicipalityID   string
	DistrictID       string
	ProvinceID       string
	OrganizationType string
	StartsAt         time.Time
	EndsAt           *time.Time
	CategoryData     map[string]interface{}
}

// CreateRequest validates and files a new request, runs reviewer discovery,
// and seeds the history with the initial pending entry.
func (s *Service) CreateRequest(ctx context.Context, actorID primitive.ObjectID, in CreateInput) (*models.EventRequest, error) {
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.MunicipalityID == "" {
		return nil, &ValidationError{Field: "municipality_id", Message: "municipality is required"}
	}
	now := s.now()
	if !in.StartsAt.After(now) {
		return nil, &ValidationError{Field: "starts_at", Message: "event start must be in the future"}
	}
	if in.EndsAt != nil && !in.EndsAt.After(in.StartsAt) {
		return nil, &ValidationError{Field: "ends_at", Message: "event end must be after its start"}
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, &AuthorizationError{Action: "create", State: workflow.StatusPendingReview, Reason: "actor not found"}
	}

	ok, reason, err := requestpolicy.CanCreate(ctx, s.policy, actor, in.MunicipalityID, in.Category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.denied(ctx, actor.ID, "create", workflow.StatusPendingReview, reason)
	}

	reviewerList, err := s.discovery.FindReviewers(ctx, in.MunicipalityID, in.OrganizationType, actor.Authority)
	if err != nil {
		return nil, err
	}

	requester := snapshot(actor)
	req := models.EventRequest{
		RequestID:        uuid.NewString(),
		Requester:        requester,
		ValidReviewers:   reviewerList,
		Status:           string(workflow.StatusPendingReview),
		ActiveResponder:  workflow.ResponderReviewer,
		MunicipalityID:   in.MunicipalityID,
		DistrictID:       in.DistrictID,
		ProvinceID:       in.ProvinceID,
		OrganizationType: in.OrganizationType,
		Title:            in.Title,
		Description:      htmlsanitize.Sanitize(in.Description),
		Category:         in.Category,
		StartsAt:         in.StartsAt,
		EndsAt:           in.EndsAt,
		CategoryData:     in.CategoryData,
		StatusHistory: []models.StatusEntry{{
			EntryID: entryID(),
			Status:  string(workflow.StatusPendingReview),
			Actor:   requester,
			At:      now,
		}},
	}

	created, err := s.requests.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RequestsCreated.Inc()
		s.metrics.ReviewersFound.Observe(float64(len(reviewerList)))
	}
	s.audit.RequestCreated(ctx, created.RequestID, requester, len(reviewerList))
	if s.notifier != nil {
		s.notifier.RequestSubmitted(ctx, created)
	}
	s.log.Info("request created",
		zap.String("request_id", created.RequestID),
		zap.String("municipality_id", created.MunicipalityID),
		zap.Int("reviewers", len(reviewerList)))
	return &created, nil
}

/* -------------------------------------------------------------------------- */
/* Transitions                                                                */
/* -------------------------------------------------------------------------- */

// ActionInput carries one transition attempt. Action is free text and is
// normalized against the current state and the actor's identity.
type ActionInput struct {
	Action        string
	Notes         string
	ProposedStart time.Time
	ProposedEnd   *time.Time
	Reason        string
}

// ExecuteAction runs one transition end-to-end.
//
// On approval, the transition commits with publish_pending=true, then the
// downstream event is created. If publishing fails the request is returned
// together with a *PublishError: the approval stands, the publish is owed,
// and RetryPublish settles it.
func (s *Service) ExecuteAction(ctx context.Context, actorID primitive.ObjectID, requestID string, in ActionInput) (*models.EventRequest, error) {
	req, err := s.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{RequestID: requestID}
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, &AuthorizationError{Action: workflow.Action(in.Action), Reason: "actor not found"}
	}

	current, ok := workflow.NormalizeStatus(req.Status)
	if !ok {
		return nil, &ValidationError{Field: "status", Message: "request carries an unrecognized status"}
	}
	isRequester := req.IsRequester(actor.ID)

	action, err := workflow.NormalizeAction(in.Action, current, isRequester)
	if err != nil {
		return nil, &ValidationError{Field: "action", Message: err.Error()}
	}

	now := s.now()
	if action == workflow.ActionReschedule {
		if in.ProposedStart.IsZero() {
			return nil, &ValidationError{Field: "proposed_start", Message: "a reschedule needs a proposed start"}
		}
		if !in.ProposedStart.After(now) {
			return nil, &ValidationError{Field: "proposed_start", Message: "proposed start must be in the future"}
		}
		if in.ProposedEnd != nil && !in.ProposedEnd.After(in.ProposedStart) {
			return nil, &ValidationError{Field: "proposed_end", Message: "proposed end must be after the proposed start"}
		}
	}

	next, ok := workflow.NextState(current, action)
	if !ok {
		if s.metrics != nil {
			s.metrics.TransitionErrors.WithLabelValues("invalid_transition").Inc()
		}
		return nil, &InvalidTransitionError{State: current, Action: action, Allowed: workflow.ActionsFrom(current)}
	}

	allowed, reason, err := requestpolicy.CanTransition(ctx, s.policy, actor, req, action)
	if err != nil {
		return nil, err
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.TransitionErrors.WithLabelValues("authorization").Inc()
		}
		return nil, s.denied(ctx, actor.ID, action, current, reason)
	}

	actorSnap := snapshot(actor)
	notes := htmlsanitize.Sanitize(in.Notes)
	tx := requeststore.Transition{
		NewStatus:       string(next),
		ActiveResponder: workflow.NextResponder(next, isRequester),
		StatusEntry: models.StatusEntry{
			EntryID: entryID(),
			Status:  string(next),
			Actor:   actorSnap,
			Note:    notes,
			At:      now,
		},
		DecisionEntry: models.DecisionEntry{
			EntryID:  entryID(),
			Decision: string(action),
			Actor:    actorSnap,
			Notes:    notes,
			At:       now,
		},
	}

	switch action {
	case workflow.ActionReschedule:
		previous := req.StartsAt
		if req.RescheduleProposal != nil {
			previous = req.RescheduleProposal.ProposedStart
		}
		tx.Proposal = &models.RescheduleProposal{
			ProposedStart: in.ProposedStart,
			ProposedEnd:   in.ProposedEnd,
			Reason:        htmlsanitize.Sanitize(in.Reason),
			ProposedBy:    actorSnap,
			PreviousStart: previous,
			ProposedAt:    now,
		}
		tx.DecisionEntry.Payload = map[string]interface{}{
			"proposed_start": in.ProposedStart,
			"previous_start": previous,
		}
	case workflow.ActionAccept, workflow.ActionConfirm:
		// Approving out of the reschedule loop adopts the live proposal's
		// window.
		if current == workflow.StatusReviewRescheduled && req.RescheduleProposal != nil {
			start := req.RescheduleProposal.ProposedStart
			tx.NewStartsAt = &start
			tx.NewEndsAt = req.RescheduleProposal.ProposedEnd
		}
		tx.ClearProposal = true
	case workflow.ActionReject, workflow.ActionDecline, workflow.ActionCancel:
		tx.ClearProposal = true
	}

	if req.Reviewer == nil && !isRequester {
		tx.SetReviewer = &models.ReviewerSnapshot{
			UserID:       actor.ID,
			Name:         actor.FullName,
			RoleCode:     actor.ActiveRoleCode(),
			Authority:    actor.Authority,
			DiscoveredAt: now,
		}
	}

	if next == workflow.StatusApproved {
		pending := true
		tx.PublishPending = &pending
	}

	updated, err := s.requests.ApplyTransition(ctx, requestID, req.Version, tx)
	if err != nil {
		switch err {
		case requeststore.ErrVersionConflict:
			if s.metrics != nil {
				s.metrics.VersionConflicts.Inc()
				s.metrics.TransitionErrors.WithLabelValues("conflict").Inc()
			}
			return nil, &ConflictError{RequestID: requestID}
		case requeststore.ErrNotFound:
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(action), string(next)).Inc()
	}
	s.audit.RequestTransition(ctx, requestID, string(action), string(next), actorSnap)
	if s.notifier != nil {
		s.notifier.RequestTransitioned(ctx, *updated, string(action), actorSnap)
	}
	s.log.Info("request transitioned",
		zap.String("request_id", requestID),
		zap.String("action", string(action)),
		zap.String("from", string(current)),
		zap.String("to", string(next)),
		zap.Int64("version", updated.Version))

	// Side effects only after the transition is durable.
	if next == workflow.StatusApproved {
		return s.publish(ctx, updated, actorSnap, false)
	}
	return updated, nil
}

// denied builds an AuthorizationError carrying the actor's resolved
// permission set for diagnostics.
func (s *Service) denied(ctx context.Context, actorID primitive.ObjectID, action workflow.Action, state workflow.Status, reason string) error {
	authErr := &AuthorizationError{Action: action, State: state, Reason: reason}
	if set, err := s.policy.Perms.UserPermissions(ctx, actorID, permissions.Scope{}); err == nil {
		authErr.Permissions = describeSet(set)
	}
	return authErr
}

/* -------------------------------------------------------------------------- */
/* Publish                                                                    */
/* -------------------------------------------------------------------------- */

// publish creates the downstream event and clears the pending marker. On
// failure the request is returned alongside a *PublishError.
func (s *Service) publish(ctx context.Context, req *models.EventRequest, approvedBy models.ActorSnapshot, retry bool) (*models.EventRequest, error) {
	ev, err := s.publisher.CreateFromRequest(ctx, *req, approvedBy)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PublishDeferred.Inc()
		}
		s.audit.PublishDeferred(ctx, req.RequestID, err)
		s.log.Warn("event publish deferred",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return req, &PublishError{RequestID: req.RequestID, Err: err}
	}

	if err := s.requests.SetPublishState(ctx, req.RequestID, false, &ev.ID); err != nil {
		// The event exists; the marker will be cleared by the next retry
		// because CreateFromRequest is idempotent.
		s.log.Error("failed to clear publish marker",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return req, &PublishError{RequestID: req.RequestID, Err: err}
	}

	req.PublishPending = false
	req.PublishedEventID = &ev.ID
	s.audit.PublishSucceeded(ctx, req.RequestID, ev.ID, retry)
	if s.notifier != nil {
		s.notifier.EventPublished(ctx, *req, ev)
	}
	return req, nil
}

// RetryPublish settles a deferred publish for one request. Idempotent: a
// request already published is a no-op.
func (s *Service) RetryPublish(ctx context.Context, requestID string) (*models.EventRequest, error) {
	req, err := s.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{RequestID: requestID}
	}
	if !req.PublishPending {
		return req, nil
	}
	if s.metrics != nil {
		s.metrics.PublishRetries.Inc()
	}

	// The approving reviewer's snapshot is the last decision entry's actor.
	approvedBy := req.Requester
	if n := len(req.DecisionHistory); n > 0 {
		approvedBy = req.DecisionHistory[n-1].Actor
	}
	return s.publish(ctx, req, approvedBy, true)
}

// RetryAllPending sweeps deferred publishes, oldest first. Returns how many
// settled; individual failures are logged and skipped.
func (s *Service) RetryAllPending(ctx context.Context, limit int64) (int, error) {
	pending, err := s.requests.ListPublishPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for i := range pending {
		if _, err := s.RetryPublish(ctx, pending[i].RequestID); err != nil {
			s.log.Warn("publish retry failed",
				zap.String("request_id", pending[i].RequestID),
				zap.Error(err))
			continue
		}
		settled++
	}
	return settled, nil
}

/* -------------------------------------------------------------------------- */
/* Reads and edits                                                            */
/* -------------------------------------------------------------------------- */

// GetRequest loads a request and enforces visibility.
func (s *Service) GetRequest(ctx context.Context, userID primitive.ObjectID, requestID string) (*models.EventRequest, error) {
	req, err := s.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{RequestID: requestID}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ok, err := requestpolicy.CanView(ctx, s.policy, user, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthorizationError{Action: "view", Reason: "request is outside the user's jurisdiction"}
	}
	return req, nil
}

// UpdateInput is the editable payload of a pending request.
type UpdateInput struct {
	Title        string
	Description  string
	Category     string
	StartsAt     time.Time
	EndsAt       *time.Time
	CategoryData map[string]interface{}
}

// UpdateRequest edits a pending request's event payload. Requester only,
// and only while pending.
func (s *Service) UpdateRequest(ctx context.Context, actorID primitive.ObjectID, requestID string, in UpdateInput) (*models.EventRequest, error) {
	req, err := s.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{RequestID: requestID}
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if ok, reason := requestpolicy.CanEditPayload(actor, req); !ok {
		current, _ := workflow.NormalizeStatus(req.Status)
		return nil, &AuthorizationError{Action: "update", State: current, Reason: reason}
	}
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if !in.StartsAt.After(s.now()) {
		return nil, &ValidationError{Field: "starts_at", Message: "event start must be in the future"}
	}

	updated, err := s.requests.UpdatePayload(ctx, requestID, req.Version, requeststore.PayloadUpdate{
		Title:        in.Title,
		Description:  htmlsanitize.Sanitize(in.Description),
		Category:     in.Category,
		StartsAt:     in.StartsAt,
		EndsAt:       in.EndsAt,
		CategoryData: in.CategoryData,
	})
	if err != nil {
		switch err {
		case requeststore.ErrVersionConflict:
			return nil, &ConflictError{RequestID: requestID}
		case requeststore.ErrNotFound:
			return nil, &NotFoundError{RequestID: requestID}
		}
		return nil, err
	}

	s.audit.RequestUpdated(ctx, requestID, snapshot(actor), "payload")
	return updated, nil
}

// RequestsVisibleTo lists the requests a user may see: their own
// participations plus, for coverage-holding users, everything inside their
// jurisdiction. Coverage candidates go through the same jurisdiction test
// GetRequest applies, so a request never shows up in a listing that a
// direct read would deny. Results are deduplicated by request id.
func (s *Service) RequestsVisibleTo(ctx context.Context, userID primitive.ObjectID, f requeststore.Filter) ([]models.EventRequest, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	own, err := s.requests.ListByParticipant(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	var codes []string
	for _, area := range user.CoverageAreas {
		codes = append(codes, area.LocationIDs...)
	}
	if len(codes) == 0 {
		return own, nil
	}

	covered, err := s.requests.ListByLocations(ctx, codes, f)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(own))
	out := make([]models.EventRequest, 0, len(own)+len(covered))
	for _, r := range own {
		seen[r.RequestID] = true
		out = append(out, r)
	}
	for _, r := range covered {
		if seen[r.RequestID] {
			continue
		}
		ok, err := jurisdiction.Matches(ctx, user, r.MunicipalityID, r.OrganizationType, s.policy.Hier)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Location overlap alone is not jurisdiction; the
			// organization type has to be compatible too.
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FindReviewersForRequest re-runs broadcast discovery for an existing
// request (e.g. after role changes).
func (s *Service) FindReviewersForRequest(ctx context.Context, requestID string) ([]models.ReviewerSnapshot, error) {
	req, err := s.requests.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{RequestID: requestID}
	}
	return s.discovery.FindReviewers(ctx, req.MunicipalityID, req.OrganizationType, req.Requester.Authority)
}
