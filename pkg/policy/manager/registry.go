package manager

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"mercator-hq/bdl/pkg/bdl/ast"
)

// PolicyRegistry is a thread-safe in-memory store of compiled policy
// versions. Updates replace the whole set at once, so readers never observe
// a half-applied reload.
type PolicyRegistry struct {
	mu       sync.RWMutex
	entries  map[ast.PolicyRef]*Entry
	versions map[string][]string // policy id -> versions, ascending
	version  string
	loadTime time.Time
}

// NewPolicyRegistry creates a new empty policy registry.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{
		entries:  make(map[ast.PolicyRef]*Entry),
		versions: make(map[string][]string),
		loadTime: time.Now(),
	}
}

// Replace atomically replaces the entire set of entries.
func (r *PolicyRegistry) Replace(entries []*Entry) error {
	newEntries := make(map[ast.PolicyRef]*Entry, len(entries))
	newVersions := make(map[string][]string)
	for _, e := range entries {
		if e == nil || e.Program == nil {
			return &RegistryError{Operation: "replace", Message: "entry must carry a compiled program"}
		}
		if _, dup := newEntries[e.Ref]; dup {
			return &RegistryError{
				PolicyID:  e.Ref.PolicyID,
				Version:   e.Ref.Version,
				Operation: "replace",
				Message:   "duplicate policy version",
			}
		}
		newEntries[e.Ref] = e
		newVersions[e.Ref.PolicyID] = append(newVersions[e.Ref.PolicyID], e.Ref.Version)
	}
	for _, vs := range newVersions {
		sort.Slice(vs, func(i, j int) bool { return CompareVersions(vs[i], vs[j]) < 0 })
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = newEntries
	r.versions = newVersions
	r.loadTime = time.Now()
	r.updateVersion()
	return nil
}

// Get retrieves an exact policy version.
func (r *PolicyRegistry) Get(ref ast.PolicyRef) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	return e, ok
}

// Latest returns the highest version of a policy.
func (r *PolicyRegistry) Latest(policyID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vs := r.versions[policyID]
	if len(vs) == 0 {
		return nil, false
	}
	return r.entries[ast.PolicyRef{PolicyID: policyID, Version: vs[len(vs)-1]}], true
}

// Lookup resolves a policy id and optional version. An empty version selects
// the latest one.
func (r *PolicyRegistry) Lookup(policyID, version string) (*Entry, error) {
	if version == "" {
		if e, ok := r.Latest(policyID); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policyID)
	}
	if e, ok := r.Get(ast.PolicyRef{PolicyID: policyID, Version: version}); ok {
		return e, nil
	}
	if !r.HasPolicy(policyID) {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, policyID)
	}
	return nil, fmt.Errorf("%w: %s@%s", ErrVersionNotFound, policyID, version)
}

// HasPolicy reports whether any version of policyID is loaded.
func (r *PolicyRegistry) HasPolicy(policyID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.versions[policyID]) > 0
}

// Versions returns the loaded versions of a policy in ascending order.
func (r *PolicyRegistry) Versions(policyID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.versions[policyID]...)
}

// GetAll returns every entry sorted by policy id, then ascending version.
func (r *PolicyRegistry) GetAll() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.versions))
	for id := range r.versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Entry, 0, len(r.entries))
	for _, id := range ids {
		for _, v := range r.versions[id] {
			out = append(out, r.entries[ast.PolicyRef{PolicyID: id, Version: v}])
		}
	}
	return out
}

// Count returns the number of loaded policy versions.
func (r *PolicyRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// GetVersion returns the registry fingerprint. It changes whenever the set of
// versions or the content of any of them changes.
func (r *PolicyRegistry) GetVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.version
}

// GetLoadTime returns the timestamp of the last Replace.
func (r *PolicyRegistry) GetLoadTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.loadTime
}

// updateVersion must be called with the write lock held.
func (r *PolicyRegistry) updateVersion() {
	refs := make([]ast.PolicyRef, 0, len(r.entries))
	for ref := range r.entries {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })

	h := sha256.New()
	for _, ref := range refs {
		h.Write([]byte(ref.String()))
		h.Write([]byte(r.entries[ref].Hash))
	}
	r.version = fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// CompareVersions orders policy versions. Semantic versions compare by
// precedence and sort after any version that is not semantic; the rest
// compare lexically.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}
