package indexer

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Handle is the type-erased surface of an indexer, for callers that
// cannot name T — the admin API, status collectors. *Indexer[T]
// implements it for every T.
type Handle interface {
	Name() string
	Status(ctx context.Context) (Status, error)
	Cleanup(ctx context.Context) error
	Reset(ctx context.Context) error
	// RollbackRaw rolls back to a target given in canonical encoding.
	RollbackRaw(ctx context.Context, encoded string) error
}

// Registry maps indexer names to their handles. One registry is built at
// startup and passed to whatever needs lookup; there is no process-global
// registration.
type Registry struct {
	indexers *xsync.MapOf[string, Handle]
}

func NewRegistry() *Registry {
	return &Registry{indexers: xsync.NewMapOf[string, Handle]()}
}

// Register adds an indexer. Duplicate names fail with
// MisconfigurationError: the name is the identity of all shared state.
func (r *Registry) Register(h Handle) error {
	if _, loaded := r.indexers.LoadOrStore(h.Name(), h); loaded {
		return &MisconfigurationError{Name: h.Name(), Reason: "an indexer with this name is already registered"}
	}
	return nil
}

// Get looks up an indexer by name.
func (r *Registry) Get(name string) (Handle, bool) {
	return r.indexers.Load(name)
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.indexers.Size())
	r.indexers.Range(func(name string, _ Handle) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Range calls fn for every registered indexer until fn returns false.
func (r *Registry) Range(fn func(h Handle) bool) {
	r.indexers.Range(func(_ string, h Handle) bool {
		return fn(h)
	})
}
