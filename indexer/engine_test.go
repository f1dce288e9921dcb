package indexer

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/store"
)

type testEnv struct {
	mr    *miniredis.Miniredis
	coord *coordinator.Redis
	store *store.Memory
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &testEnv{
		mr:    mr,
		coord: coordinator.NewRedis(client),
		store: store.NewMemory(),
	}
}

// counterIndexer builds an int64 indexer with step(c) = c + stride.
func (e *testEnv) counterIndexer(t *testing.T, opts Options[int64], stride int64) *Indexer[int64] {
	t.Helper()
	hooks := Hooks[int64]{
		Step: func(_ context.Context, c int64) (int64, error) {
			return c + stride, nil
		},
	}
	return e.indexer(t, opts, hooks)
}

func (e *testEnv) indexer(t *testing.T, opts Options[int64], hooks Hooks[int64]) *Indexer[int64] {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "test"
	}
	ix, err := New(opts, hooks, e.coord, e.store)
	if err != nil {
		t.Fatalf("failed to build indexer: %v", err)
	}
	return ix
}

func initialAt(v int64) *int64 {
	return &v
}
