// Package indexer implements the per-name coordination engine: atomic
// interval claiming, concurrency admission and accounting, zombie
// detection, failure-retry queueing, epoch-versioned rollback, and the
// Consume façade tying them together.
//
// An Indexer is a value holding the caller's hooks and options; it keeps
// no background goroutines and makes no scheduling decisions. The caller
// drives Consume and Cleanup from whatever timer or message handler it
// already owns. State lives in two collaborators: a cursor store (the
// current position) and a shared coordinator (locks, counters, lists,
// TTL keys — canonically Redis).
package indexer

import (
	"context"

	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/store"
)

// Indexer coordinates dispatch of half-open intervals [start, ended)
// along the cursor domain of type T. T must round-trip through its
// canonical JSON encoding.
type Indexer[T any] struct {
	name  string
	opts  Options[T]
	hooks Hooks[T]
	coord coordinator.Coordinator
	store store.Store

	// Coordinator key names, derived once from the indexer name.
	lockKey   string
	liveKey   string
	failedKey string
	epochKey  string
}

// New builds an indexer. The coordinator may be nil for single-instance
// use, where the caller owns mutual exclusion: cursor operations keep
// working against the store, and every operation that needs shared state
// (Atomic, Consume, Cleanup, Rollback, Reset) fails with
// MisconfigurationError. A nil store defaults to the in-process one.
func New[T any](opts Options[T], hooks Hooks[T], coord coordinator.Coordinator, st store.Store) (*Indexer[T], error) {
	if opts.Name == "" {
		return nil, &MisconfigurationError{Reason: "name is required"}
	}
	if hooks.Step == nil {
		return nil, &MisconfigurationError{Name: opts.Name, Reason: "step hook is required"}
	}
	opts.withDefaults()

	if st == nil {
		st = store.NewMemory()
	}

	base := "indexer:" + opts.Name
	return &Indexer[T]{
		name:      opts.Name,
		opts:      opts,
		hooks:     hooks,
		coord:     coord,
		store:     st,
		lockKey:   base + ":current",
		liveKey:   base + ":concurrency",
		failedKey: base + ":failed",
		epochKey:  base + ":epoch",
	}, nil
}

// Name returns the indexer's unique name.
func (ix *Indexer[T]) Name() string {
	return ix.name
}

func (ix *Indexer[T]) shadowKey(encoded string) string {
	return ix.liveKey + ":shadow:" + encoded
}

// Current returns the stored cursor, or the resolved initial value when
// nothing has been written yet.
func (ix *Indexer[T]) Current(ctx context.Context) (T, error) {
	raw, ok, err := ix.store.Get(ctx, ix.name)
	if err != nil {
		var zero T
		return zero, err
	}
	if ok {
		return ix.decode(raw)
	}
	return ix.initial(ctx)
}

func (ix *Indexer[T]) initial(ctx context.Context) (T, error) {
	if ix.hooks.Initial != nil {
		return ix.hooks.Initial(ctx)
	}
	if ix.opts.Initial != nil {
		return *ix.opts.Initial, nil
	}
	var zero T
	return zero, ix.misconfigured("no initial cursor value and the store is empty")
}

// Next writes v as the new cursor, or step(current) when v is nil.
// Writes are last-writer-wins; callers in multi-instance mode should be
// claiming through Atomic instead.
func (ix *Indexer[T]) Next(ctx context.Context, v *T) error {
	var value T
	if v != nil {
		value = *v
	} else {
		var err error
		value, err = ix.Step(ctx, nil)
		if err != nil {
			return err
		}
	}

	encoded, err := ix.encode(value)
	if err != nil {
		return err
	}
	return ix.store.Set(ctx, ix.name, encoded)
}

// Step invokes the user step hook on v, or on the current cursor when v
// is nil.
func (ix *Indexer[T]) Step(ctx context.Context, v *T) (T, error) {
	var current T
	if v != nil {
		current = *v
	} else {
		var err error
		current, err = ix.Current(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
	}
	return ix.hooks.Step(ctx, current)
}

// Latest evaluates the terminal predicate against the current cursor.
// An absent predicate means never terminal.
func (ix *Indexer[T]) Latest(ctx context.Context) (bool, error) {
	if ix.hooks.Latest == nil {
		return false, nil
	}
	current, err := ix.Current(ctx)
	if err != nil {
		return false, err
	}
	return ix.hooks.Latest(ctx, current)
}

// Epoch reads the rollback epoch. An indexer that has never rolled back
// is at epoch 0.
func (ix *Indexer[T]) Epoch(ctx context.Context) (int64, error) {
	if ix.coord == nil {
		return 0, ix.misconfigured("epoch requires a coordinator")
	}
	return ix.coord.GetInt(ctx, ix.epochKey)
}

// Validate reports whether epoch is still current. Workers holding a
// stale epoch should discard their results: a rollback happened while
// they were running.
func (ix *Indexer[T]) Validate(ctx context.Context, epoch int64) (bool, error) {
	current, err := ix.Epoch(ctx)
	if err != nil {
		return false, err
	}
	return current == epoch, nil
}

// Reset deletes the cursor and every coordinator key for this indexer.
// Shadow keys are left to expire by TTL. The caller must ensure no
// instance is running concurrently.
func (ix *Indexer[T]) Reset(ctx context.Context) error {
	if ix.coord == nil {
		return ix.misconfigured("reset requires a coordinator")
	}
	if err := ix.store.Delete(ctx, ix.name); err != nil {
		return err
	}
	return ix.coord.Del(ctx, ix.lockKey, ix.liveKey, ix.failedKey, ix.epochKey)
}

// Status is a point-in-time snapshot for introspection surfaces.
type Status struct {
	Name    string `json:"name"`
	Cursor  string `json:"cursor"` // canonical encoding, empty when unset
	Epoch   int64  `json:"epoch"`
	Live    int64  `json:"live"`
	Retries int64  `json:"retries"`
}

// Status reports the stored cursor (without resolving the initial value)
// and, when a coordinator is present, the epoch and queue lengths.
func (ix *Indexer[T]) Status(ctx context.Context) (Status, error) {
	st := Status{Name: ix.name}

	raw, ok, err := ix.store.Get(ctx, ix.name)
	if err != nil {
		return st, err
	}
	if ok {
		st.Cursor = raw
	}

	if ix.coord == nil {
		return st, nil
	}

	if st.Epoch, err = ix.coord.GetInt(ctx, ix.epochKey); err != nil {
		return st, err
	}
	if st.Live, err = ix.coord.LLen(ctx, ix.liveKey); err != nil {
		return st, err
	}
	if st.Retries, err = ix.coord.LLen(ctx, ix.failedKey); err != nil {
		return st, err
	}
	return st, nil
}

// RollbackRaw decodes a canonical encoded target and rolls back to it.
// It exists for type-erased surfaces (the admin API) that cannot name T.
func (ix *Indexer[T]) RollbackRaw(ctx context.Context, encoded string) error {
	target, err := ix.decode(encoded)
	if err != nil {
		return err
	}
	return ix.Rollback(ctx, target)
}
