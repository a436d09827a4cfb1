package locationstore_test

import (
	"testing"

	locationstore "github.com/civicworks/eventgate/internal/app/store/locations"
	"github.com/civicworks/eventgate/internal/domain/models"
	"github.com/civicworks/eventgate/internal/testutil"
)

func TestPutGetAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := locationstore.New(db)

	seed := []models.Location{
		{Code: "P1", Name: "North Province", Level: models.LevelProvince},
		{Code: "D1", Name: "First District", Level: models.LevelDistrict, ParentCode: "P1"},
		{Code: "M1", Name: "Riverside", Level: models.LevelMunicipality, ParentCode: "D1"},
	}
	for _, loc := range seed {
		if err := store.Put(ctx, loc); err != nil {
			t.Fatalf("Put %s failed: %v", loc.Code, err)
		}
	}

	got, err := store.GetByCode(ctx, "M1")
	if err != nil {
		t.Fatalf("GetByCode failed: %v", err)
	}
	if got == nil || got.ParentCode != "D1" {
		t.Fatalf("unexpected municipality: %+v", got)
	}

	missing, err := store.GetByCode(ctx, "ZZ")
	if err != nil {
		t.Fatalf("GetByCode miss failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected (nil, nil) for unknown code, got %+v", missing)
	}

	all, err := store.AllLocations(ctx)
	if err != nil {
		t.Fatalf("AllLocations failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("AllLocations: got %d, want 3", len(all))
	}
	// Sorted by code.
	if all[0].Code != "D1" || all[2].Code != "P1" {
		t.Errorf("unexpected sort order: %v, %v, %v", all[0].Code, all[1].Code, all[2].Code)
	}
}

func TestPut_UpsertsInPlace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := locationstore.New(db)

	if err := store.Put(ctx, models.Location{Code: "M1", Name: "Riverside", Level: models.LevelMunicipality, ParentCode: "D1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, models.Location{Code: "M1", Name: "Riverside City", Level: models.LevelMunicipality, ParentCode: "D1"}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	all, err := store.AllLocations(ctx)
	if err != nil {
		t.Fatalf("AllLocations failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one document after upsert, got %d", len(all))
	}
	if all[0].Name != "Riverside City" {
		t.Errorf("name: got %q, want %q", all[0].Name, "Riverside City")
	}
}
