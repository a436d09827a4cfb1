package locations_test

import (
	"context"
	"testing"

	"github.com/civicworks/eventgate/internal/app/system/locations"
)

// testTree builds a small province → district → municipality → barangay
// chain plus an unrelated sibling municipality.
func testTree() *locations.Tree {
	return locations.NewStaticTree(map[string]string{
		"prov-01":      "",
		"dist-01a":     "prov-01",
		"mun-alpha":    "dist-01a",
		"mun-beta":     "dist-01a",
		"brgy-alpha-1": "mun-alpha",
		"prov-02":      "",
		"dist-02a":     "prov-02",
		"mun-gamma":    "dist-02a",
	})
}

func TestIsDescendant(t *testing.T) {
	tree := testTree()
	ctx := context.Background()

	tests := []struct {
		name     string
		ancestor string
		code     string
		want     bool
	}{
		{"direct child", "dist-01a", "mun-alpha", true},
		{"grandchild", "prov-01", "mun-alpha", true},
		{"great-grandchild", "prov-01", "brgy-alpha-1", true},
		{"self is not descendant", "mun-alpha", "mun-alpha", false},
		{"sibling", "mun-alpha", "mun-beta", false},
		{"reversed", "mun-alpha", "dist-01a", false},
		{"cross-province", "prov-01", "mun-gamma", false},
		{"unknown code", "prov-01", "mun-nowhere", false},
		{"empty ancestor", "", "mun-alpha", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.IsDescendant(ctx, tt.ancestor, tt.code)
			if err != nil {
				t.Fatalf("IsDescendant: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsDescendant(%q, %q) = %v, want %v", tt.ancestor, tt.code, got, tt.want)
			}
		})
	}
}

func TestAncestorsOf(t *testing.T) {
	tree := testTree()
	ctx := context.Background()

	got, err := tree.AncestorsOf(ctx, "brgy-alpha-1")
	if err != nil {
		t.Fatalf("AncestorsOf: %v", err)
	}
	want := []string{"mun-alpha", "dist-01a", "prov-01"}
	if len(got) != len(want) {
		t.Fatalf("AncestorsOf = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ancestor[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	top, err := tree.AncestorsOf(ctx, "prov-01")
	if err != nil {
		t.Fatalf("AncestorsOf: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("province should have no ancestors, got %v", top)
	}
}

func TestContainsAndRelated(t *testing.T) {
	tree := testTree()
	ctx := context.Background()

	if ok, _ := locations.Contains(ctx, tree, "mun-alpha", "mun-alpha"); !ok {
		t.Error("Contains should include the code itself")
	}
	if ok, _ := locations.Contains(ctx, tree, "dist-01a", "brgy-alpha-1"); !ok {
		t.Error("district should contain its barangays")
	}
	if ok, _ := locations.AnyContains(ctx, tree, []string{"mun-gamma", "dist-01a"}, "mun-beta"); !ok {
		t.Error("AnyContains should match via dist-01a")
	}
	if ok, _ := locations.Related(ctx, tree, "mun-alpha", "dist-01a"); !ok {
		t.Error("Related should match in either direction")
	}
	if ok, _ := locations.Related(ctx, tree, "mun-alpha", "mun-gamma"); ok {
		t.Error("unrelated municipalities should not be related")
	}
}

func TestCycleDoesNotHang(t *testing.T) {
	tree := locations.NewStaticTree(map[string]string{
		"a": "b",
		"b": "a",
	})
	ctx := context.Background()

	if ok, _ := tree.IsDescendant(ctx, "c", "a"); ok {
		t.Error("cyclic data should not produce a match")
	}
	if anc, _ := tree.AncestorsOf(ctx, "a"); len(anc) > 8 {
		t.Errorf("ancestor walk should be depth-bounded, got %d entries", len(anc))
	}
}
