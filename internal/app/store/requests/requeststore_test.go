package requeststore_test

import (
	"testing"
	"time"

	"github.com/civicworks/eventgate/internal/app/store/requests"
	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/civicworks/eventgate/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func pendingRequest(requester models.ActorSnapshot) models.EventRequest {
	return models.EventRequest{
		RequestID:       primitive.NewObjectID().Hex(),
		Requester:       requester,
		Status:          "pending_review",
		ActiveResponder: "reviewer",
		MunicipalityID:  "M1",
		DistrictID:      "D1",
		ProvinceID:      "P1",
		Title:           "Street Clean-Up Drive",
		StartsAt:        time.Now().Add(72 * time.Hour),
		StatusHistory: []models.StatusEntry{{
			EntryID: primitive.NewObjectID().Hex(),
			Status:  "pending_review",
			Actor:   requester,
			At:      time.Now(),
		}},
	}
}

func actor(name string, authority int) models.ActorSnapshot {
	return models.ActorSnapshot{UserID: primitive.NewObjectID(), Name: name, Authority: authority}
}

func acceptTransition(by models.ActorSnapshot) requeststore.Transition {
	now := time.Now()
	pending := true
	return requeststore.Transition{
		NewStatus:       "approved",
		ActiveResponder: "",
		StatusEntry: models.StatusEntry{
			EntryID: primitive.NewObjectID().Hex(),
			Status:  "approved",
			Actor:   by,
			At:      now,
		},
		DecisionEntry: models.DecisionEntry{
			EntryID:  primitive.NewObjectID().Hex(),
			Decision: "accept",
			Actor:    by,
			At:       now,
		},
		ClearProposal:  true,
		PublishPending: &pending,
	}
}

func TestCreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	created, err := store.Create(ctx, pendingRequest(actor("Rita Santos", 20)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Version != 1 {
		t.Errorf("expected version 1, got %d", created.Version)
	}
	if created.TitleCI == "" {
		t.Error("expected folded title for case-insensitive search")
	}

	got, err := store.GetByRequestID(ctx, created.RequestID)
	if err != nil {
		t.Fatalf("GetByRequestID failed: %v", err)
	}
	if got == nil || got.Title != created.Title {
		t.Errorf("round trip mismatch: %+v", got)
	}

	missing, err := store.GetByRequestID(ctx, "nope")
	if err != nil {
		t.Fatalf("lookup of missing request errored: %v", err)
	}
	if missing != nil {
		t.Error("expected (nil, nil) for an unknown request id")
	}
}

func TestApplyTransition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	created, err := store.Create(ctx, pendingRequest(actor("Rita Santos", 20)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reviewer := actor("Carlos Reyes", 60)
	updated, err := store.ApplyTransition(ctx, created.RequestID, created.Version, acceptTransition(reviewer))
	if err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}
	if updated.Status != "approved" {
		t.Errorf("expected approved, got %s", updated.Status)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if len(updated.StatusHistory) != 2 {
		t.Errorf("expected 2 status entries, got %d", len(updated.StatusHistory))
	}
	if len(updated.DecisionHistory) != 1 {
		t.Errorf("expected 1 decision entry, got %d", len(updated.DecisionHistory))
	}
	if !updated.PublishPending {
		t.Error("expected publish_pending to be set")
	}
}

func TestApplyTransition_StaleVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	created, err := store.Create(ctx, pendingRequest(actor("Rita Santos", 20)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first := actor("Carlos Reyes", 60)
	if _, err := store.ApplyTransition(ctx, created.RequestID, created.Version, acceptTransition(first)); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	// Second writer still holds version 1.
	second := actor("Maria Cruz", 80)
	_, err = store.ApplyTransition(ctx, created.RequestID, created.Version, acceptTransition(second))
	if err != requeststore.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// The losing write must not have touched the document.
	got, err := store.GetByRequestID(ctx, created.RequestID)
	if err != nil {
		t.Fatalf("GetByRequestID failed: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2 after one transition, got %d", got.Version)
	}
	approvals := 0
	for _, e := range got.StatusHistory {
		if e.Status == "approved" {
			approvals++
		}
	}
	if approvals != 1 {
		t.Errorf("expected exactly one approved history entry, got %d", approvals)
	}
}

func TestApplyTransition_MissingRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	_, err := store.ApplyTransition(ctx, "no-such-request", 1, acceptTransition(actor("Carlos Reyes", 60)))
	if err != requeststore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyTransition_ProposalLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	created, err := store.Create(ctx, pendingRequest(actor("Rita Santos", 20)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reviewer := actor("Carlos Reyes", 60)
	now := time.Now()
	proposed := created.StartsAt.Add(7 * 24 * time.Hour)
	tx := requeststore.Transition{
		NewStatus:       "review_rescheduled",
		ActiveResponder: "requester",
		StatusEntry: models.StatusEntry{
			EntryID: primitive.NewObjectID().Hex(),
			Status:  "review_rescheduled",
			Actor:   reviewer,
			At:      now,
		},
		DecisionEntry: models.DecisionEntry{
			EntryID:  primitive.NewObjectID().Hex(),
			Decision: "reschedule",
			Actor:    reviewer,
			At:       now,
		},
		Proposal: &models.RescheduleProposal{
			ProposedStart: proposed,
			ProposedBy:    reviewer,
			PreviousStart: created.StartsAt,
			ProposedAt:    now,
		},
	}
	afterResched, err := store.ApplyTransition(ctx, created.RequestID, created.Version, tx)
	if err != nil {
		t.Fatalf("reschedule transition failed: %v", err)
	}
	if afterResched.RescheduleProposal == nil {
		t.Fatal("expected stored proposal")
	}

	// Approval adopts the proposed window and clears the proposal.
	requester := created.Requester
	confirm := requeststore.Transition{
		NewStatus: "approved",
		StatusEntry: models.StatusEntry{
			EntryID: primitive.NewObjectID().Hex(),
			Status:  "approved",
			Actor:   requester,
			At:      now,
		},
		DecisionEntry: models.DecisionEntry{
			EntryID:  primitive.NewObjectID().Hex(),
			Decision: "confirm",
			Actor:    requester,
			At:       now,
		},
		NewStartsAt:   &proposed,
		ClearProposal: true,
	}
	final, err := store.ApplyTransition(ctx, created.RequestID, afterResched.Version, confirm)
	if err != nil {
		t.Fatalf("confirm transition failed: %v", err)
	}
	if final.RescheduleProposal != nil {
		t.Error("expected proposal to be cleared")
	}
	if !final.StartsAt.Truncate(time.Millisecond).Equal(proposed.Truncate(time.Millisecond)) {
		t.Errorf("expected adopted start %v, got %v", proposed, final.StartsAt)
	}
}

func TestUpdatePayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	created, err := store.Create(ctx, pendingRequest(actor("Rita Santos", 20)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.UpdatePayload(ctx, created.RequestID, created.Version, requeststore.PayloadUpdate{
		Title:    "Street Clean-Up Drive (moved)",
		StartsAt: created.StartsAt.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("UpdatePayload failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version bump, got %d", updated.Version)
	}
	if updated.TitleCI == created.TitleCI {
		t.Error("expected title_ci to be refolded")
	}

	// Stale edits lose.
	_, err = store.UpdatePayload(ctx, created.RequestID, created.Version, requeststore.PayloadUpdate{
		Title:    "Stale edit",
		StartsAt: created.StartsAt,
	})
	if err != requeststore.ErrVersionConflict {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestListByParticipantAndLocations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	requester := actor("Rita Santos", 20)
	reviewerID := primitive.NewObjectID()

	req := pendingRequest(requester)
	req.ValidReviewers = []models.ReviewerSnapshot{{UserID: reviewerID, Name: "Carlos Reyes", Authority: 60}}
	created, err := store.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	other := pendingRequest(actor("Someone Else", 20))
	other.MunicipalityID = "M9"
	other.DistrictID = "D9"
	other.ProvinceID = "P9"
	if _, err := store.Create(ctx, other); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, id := range []primitive.ObjectID{requester.UserID, reviewerID} {
		got, err := store.ListByParticipant(ctx, id, requeststore.Filter{})
		if err != nil {
			t.Fatalf("ListByParticipant failed: %v", err)
		}
		if len(got) != 1 || got[0].RequestID != created.RequestID {
			t.Errorf("participant %s: expected the one request, got %d", id.Hex(), len(got))
		}
	}

	covered, err := store.ListByLocations(ctx, []string{"D1"}, requeststore.Filter{})
	if err != nil {
		t.Fatalf("ListByLocations failed: %v", err)
	}
	if len(covered) != 1 || covered[0].RequestID != created.RequestID {
		t.Errorf("expected only the D1 request, got %d", len(covered))
	}

	none, err := store.ListByLocations(ctx, nil, requeststore.Filter{})
	if err != nil {
		t.Fatalf("ListByLocations with no codes failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("no coverage codes should match nothing, got %d", len(none))
	}
}

func TestListPublishPendingAndSetPublishState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := requeststore.New(db)

	created, err := store.Create(ctx, pendingRequest(actor("Rita Santos", 20)))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.ApplyTransition(ctx, created.RequestID, created.Version, acceptTransition(actor("Carlos Reyes", 60))); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	pending, err := store.ListPublishPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPublishPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending publish, got %d", len(pending))
	}

	eventID := primitive.NewObjectID()
	if err := store.SetPublishState(ctx, created.RequestID, false, &eventID); err != nil {
		t.Fatalf("SetPublishState failed: %v", err)
	}

	pending, err = store.ListPublishPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPublishPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending publishes after settle, got %d", len(pending))
	}

	got, _ := store.GetByRequestID(ctx, created.RequestID)
	if got.PublishedEventID == nil || *got.PublishedEventID != eventID {
		t.Error("expected published event id to be recorded")
	}
}
