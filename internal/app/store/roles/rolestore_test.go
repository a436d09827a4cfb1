package rolestore_test

import (
	"testing"

	rolestore "github.com/civicworks/eventgate/internal/app/store/roles"
	"github.com/civicworks/eventgate/internal/app/system/indexes"
	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/civicworks/eventgate/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func reviewGrant() []models.PermissionGrant {
	return []models.PermissionGrant{{
		Resource: "request",
		Actions:  []string{"review", "reschedule"},
	}}
}

func TestCreate_NormalizesCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := rolestore.New(db)

	created, err := store.Create(ctx, models.Role{
		Code:        "District Coordinator",
		Name:        "District Coordinator",
		Authority:   60,
		Permissions: reviewGrant(),
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Code != "district-coordinator" {
		t.Errorf("code: got %q, want %q", created.Code, "district-coordinator")
	}

	got, err := store.GetByCode(ctx, "District Coordinator")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("expected to load the created role back, got %+v", got)
	}
}

func TestCreate_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := rolestore.New(db)

	if _, err := store.Create(ctx, models.Role{Code: "", Authority: 60}); err == nil {
		t.Error("expected error for empty code")
	}
	if _, err := store.Create(ctx, models.Role{Code: "x", Authority: 10}); err == nil {
		t.Error("expected error for authority below the basic floor")
	}
}

func TestCreate_DuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := rolestore.New(db)

	if _, err := store.Create(ctx, models.Role{Code: "reviewer", Authority: 60, IsActive: true}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Role{Code: "reviewer", Authority: 80, IsActive: true}); err != rolestore.ErrDuplicateCode {
		t.Errorf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestRoleByID_MissReturnsNil(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := rolestore.New(db)

	got, err := store.RoleByID(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("RoleByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected (nil, nil) for a dangling role reference, got %+v", got)
	}
}

func TestUpdatePermissionsAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := rolestore.New(db)

	active, err := store.Create(ctx, models.Role{Code: "coordinator", Authority: 60, IsActive: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Role{Code: "retired", Authority: 80, IsActive: false}); err != nil {
		t.Fatalf("Create retired role failed: %v", err)
	}

	if err := store.UpdatePermissions(ctx, active.ID, reviewGrant()); err != nil {
		t.Fatalf("UpdatePermissions failed: %v", err)
	}
	got, err := store.RoleByID(ctx, active.ID)
	if err != nil || got == nil {
		t.Fatalf("reload role: %v", err)
	}
	if len(got.Permissions) != 1 || got.Permissions[0].Resource != "request" {
		t.Errorf("unexpected permissions after update: %+v", got.Permissions)
	}

	all, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(false): got %d roles, want 2", len(all))
	}

	activeOnly, err := store.List(ctx, true)
	if err != nil {
		t.Fatalf("List(activeOnly) failed: %v", err)
	}
	if len(activeOnly) != 1 || activeOnly[0].Code != "coordinator" {
		t.Errorf("List(true): got %+v, want only the coordinator role", activeOnly)
	}
}
