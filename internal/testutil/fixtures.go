package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an active test user at the given authority tier.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string, authority int) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Status:     "active",
		Authority:  authority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateRequesterAt creates a basic-tier user assigned to one municipality.
func (f *Fixtures) CreateRequesterAt(ctx context.Context, fullName, email, municipalityID string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Status:     "active",
		Authority:  20,
		Location:   &models.UserLocation{MunicipalityID: municipalityID},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test requester: %v", err)
	}
	return user
}

// CreateReviewer creates a coordinator-tier user covering the given location
// codes, with the given organization type.
func (f *Fixtures) CreateReviewer(ctx context.Context, fullName, email string, authority int, orgType string, coverage []string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Status:     "active",
		Authority:  authority,
		Organizations: []models.UserOrganization{
			{OrganizationID: primitive.NewObjectID(), Name: "Test Org", Type: orgType, IsPrimary: true},
		},
		CoverageAreas: []models.CoverageArea{
			{Name: "Test Coverage", LocationIDs: coverage, IsPrimary: true},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test reviewer: %v", err)
	}
	return user
}

// CreateDisabledUser creates a test user with disabled status.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Status:     "disabled",
		Authority:  20,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create disabled test user: %v", err)
	}
	return user
}

// CreateRole creates an active role with the given permission grants.
func (f *Fixtures) CreateRole(ctx context.Context, code string, authority int, grants []models.PermissionGrant) models.Role {
	f.t.Helper()

	now := time.Now().UTC()
	role := models.Role{
		ID:          primitive.NewObjectID(),
		Code:        code,
		Name:        code,
		Authority:   authority,
		Permissions: grants,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("roles").InsertOne(ctx, role); err != nil {
		f.t.Fatalf("failed to create test role: %v", err)
	}
	return role
}

// AssignRole creates an active assignment linking a user to a role.
// Pass a nil expiry for a non-expiring assignment.
func (f *Fixtures) AssignRole(ctx context.Context, user models.User, role models.Role, expiresAt *time.Time) models.RoleAssignment {
	f.t.Helper()

	a := models.RoleAssignment{
		ID:            primitive.NewObjectID(),
		UserID:        user.ID,
		RoleID:        role.ID,
		RoleCode:      role.Code,
		RoleAuthority: role.Authority,
		IsActive:      true,
		ExpiresAt:     expiresAt,
		AssignedAt:    time.Now().UTC(),
	}

	if _, err := f.db.Collection("role_assignments").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test role assignment: %v", err)
	}
	return a
}

// CreateLocation inserts one location node.
func (f *Fixtures) CreateLocation(ctx context.Context, code, name, level, parentCode string) models.Location {
	f.t.Helper()

	loc := models.Location{
		ID:         primitive.NewObjectID(),
		Code:       code,
		Name:       name,
		Level:      level,
		ParentCode: parentCode,
	}

	if _, err := f.db.Collection("locations").InsertOne(ctx, loc); err != nil {
		f.t.Fatalf("failed to create test location: %v", err)
	}
	return loc
}

// SeedLocationTree inserts a small province/district/municipality tree:
// P1 > D1 > M1, M2 and P1 > D2 > M3.
func (f *Fixtures) SeedLocationTree(ctx context.Context) {
	f.t.Helper()
	f.CreateLocation(ctx, "P1", "Test Province", models.LevelProvince, "")
	f.CreateLocation(ctx, "D1", "District One", models.LevelDistrict, "P1")
	f.CreateLocation(ctx, "D2", "District Two", models.LevelDistrict, "P1")
	f.CreateLocation(ctx, "M1", "Municipality One", models.LevelMunicipality, "D1")
	f.CreateLocation(ctx, "M2", "Municipality Two", models.LevelMunicipality, "D1")
	f.CreateLocation(ctx, "M3", "Municipality Three", models.LevelMunicipality, "D2")
}

// CreateEventRequest inserts a pending request directly, bypassing the
// orchestrator. Store-level tests use this to control every field.
func (f *Fixtures) CreateEventRequest(ctx context.Context, requester models.User, municipalityID string, startsAt time.Time) models.EventRequest {
	f.t.Helper()

	now := time.Now().UTC()
	req := models.EventRequest{
		ID:        primitive.NewObjectID(),
		RequestID: primitive.NewObjectID().Hex(),
		Version:   1,
		Requester: models.ActorSnapshot{
			UserID:    requester.ID,
			Name:      requester.FullName,
			Authority: requester.Authority,
		},
		Status:          "pending_review",
		ActiveResponder: "reviewer",
		MunicipalityID:  municipalityID,
		Title:           "Test Event",
		TitleCI:         text.Fold("Test Event"),
		StartsAt:        startsAt,
		StatusHistory: []models.StatusEntry{{
			EntryID: primitive.NewObjectID().Hex(),
			Status:  "pending_review",
			Actor: models.ActorSnapshot{
				UserID:    requester.ID,
				Name:      requester.FullName,
				Authority: requester.Authority,
			},
			At: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("event_requests").InsertOne(ctx, req); err != nil {
		f.t.Fatalf("failed to create test event request: %v", err)
	}
	return req
}
