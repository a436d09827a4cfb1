// internal/app/system/locations/hierarchy.go

// Package locations resolves geographic containment over the
// province → district → municipality → barangay hierarchy.
//
// The hierarchy is an injected collaborator everywhere it is consumed
// (permission scoping, jurisdiction matching); nothing else walks parent
// codes directly. The in-memory tree caches the full location set and is
// rebuilt on demand after Invalidate.
package locations

import (
	"context"
	"sync"

	"github.com/civicworks/eventgate/internal/domain/models"
	"go.uber.org/zap"
)

// maxDepth bounds ancestor walks so malformed parent links (cycles, broken
// imports) cannot loop forever. The real hierarchy is four levels deep.
const maxDepth = 8

// Hierarchy answers containment questions between location codes.
type Hierarchy interface {
	// IsDescendant reports whether code sits strictly below ancestorCode.
	IsDescendant(ctx context.Context, ancestorCode, code string) (bool, error)
	// AncestorsOf returns the chain of enclosing codes, nearest first.
	AncestorsOf(ctx context.Context, code string) ([]string, error)
}

// Loader supplies the location documents the tree is built from.
type Loader interface {
	AllLocations(ctx context.Context) ([]models.Location, error)
}

// Tree is a Loader-backed Hierarchy with an explicit invalidation hook.
// Safe for concurrent use.
type Tree struct {
	mu     sync.RWMutex
	parent map[string]string
	loaded bool

	loader Loader
	log    *zap.Logger
}

// NewTree creates a Tree that lazily loads from the given Loader on first
// use and after each Invalidate.
func NewTree(loader Loader, logger *zap.Logger) *Tree {
	return &Tree{loader: loader, log: logger}
}

// NewStaticTree builds a Tree from a fixed code→parent map. Used by tests
// and seed tooling; Invalidate is a no-op for static trees.
func NewStaticTree(parent map[string]string) *Tree {
	cp := make(map[string]string, len(parent))
	for k, v := range parent {
		cp[k] = v
	}
	return &Tree{parent: cp, loaded: true, log: zap.NewNop()}
}

// Invalidate drops the cached tree. The next lookup reloads from the Loader.
func (t *Tree) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loader == nil {
		return
	}
	t.parent = nil
	t.loaded = false
	t.log.Info("location hierarchy cache invalidated")
}

func (t *Tree) ensure(ctx context.Context) error {
	t.mu.RLock()
	loaded := t.loaded
	t.mu.RUnlock()
	if loaded {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return nil
	}

	locs, err := t.loader.AllLocations(ctx)
	if err != nil {
		return err
	}
	parent := make(map[string]string, len(locs))
	for _, l := range locs {
		parent[l.Code] = l.ParentCode
	}
	t.parent = parent
	t.loaded = true
	t.log.Info("location hierarchy loaded", zap.Int("locations", len(locs)))
	return nil
}

// IsDescendant reports whether code sits strictly below ancestorCode.
// Unknown codes are simply not descendants of anything.
func (t *Tree) IsDescendant(ctx context.Context, ancestorCode, code string) (bool, error) {
	if ancestorCode == "" || code == "" || ancestorCode == code {
		return false, nil
	}
	if err := t.ensure(ctx); err != nil {
		return false, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	cur := code
	for i := 0; i < maxDepth; i++ {
		p, ok := t.parent[cur]
		if !ok || p == "" {
			return false, nil
		}
		if p == ancestorCode {
			return true, nil
		}
		cur = p
	}
	return false, nil
}

// AncestorsOf returns the enclosing codes of the given location, nearest
// first. Empty for unknown or top-level codes.
func (t *Tree) AncestorsOf(ctx context.Context, code string) ([]string, error) {
	if code == "" {
		return nil, nil
	}
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	cur := code
	for i := 0; i < maxDepth; i++ {
		p, ok := t.parent[cur]
		if !ok || p == "" {
			break
		}
		out = append(out, p)
		cur = p
	}
	return out, nil
}

// Contains reports whether target equals code or sits anywhere below it.
func Contains(ctx context.Context, h Hierarchy, code, target string) (bool, error) {
	if code == "" || target == "" {
		return false, nil
	}
	if code == target {
		return true, nil
	}
	return h.IsDescendant(ctx, code, target)
}

// AnyContains reports whether any of the codes contains target.
func AnyContains(ctx context.Context, h Hierarchy, codes []string, target string) (bool, error) {
	for _, c := range codes {
		ok, err := Contains(ctx, h, c, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Related reports whether a and b are the same, or one contains the other.
// Scope filters use this so a grant scoped to a district applies to its
// municipalities and vice versa.
func Related(ctx context.Context, h Hierarchy, a, b string) (bool, error) {
	ok, err := Contains(ctx, h, a, b)
	if err != nil || ok {
		return ok, err
	}
	return h.IsDescendant(ctx, b, a)
}
