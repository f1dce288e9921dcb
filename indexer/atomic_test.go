package indexer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpert/stride/coordinator"
)

func TestAtomicSequentialClaims(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 1)
	ctx := context.Background()

	want := []Claim[int64]{
		{Start: 0, Ended: 1, Epoch: 0},
		{Start: 1, Ended: 2, Epoch: 0},
		{Start: 2, Ended: 3, Epoch: 0},
	}
	for i, expected := range want {
		claim, err := ix.Atomic(ctx)
		require.NoError(t, err, "claim %d", i)
		assert.Equal(t, expected, claim, "claim %d", i)
	}

	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cursor)
}

func TestAtomicReachedLatest(t *testing.T) {
	env := newEnv(t)
	hooks := Hooks[int64]{
		Step: func(_ context.Context, c int64) (int64, error) { return c + 1, nil },
		Latest: func(_ context.Context, c int64) (bool, error) {
			return c >= 5, nil
		},
	}
	ix := env.indexer(t, Options[int64]{Initial: initialAt(5)}, hooks)
	ctx := context.Background()

	_, err := ix.Atomic(ctx)
	var latest *ReachedLatestError
	require.ErrorAs(t, err, &latest)
	assert.Equal(t, "5", latest.Value)

	// The terminal check fires before the pre-claim write.
	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cursor)
}

func TestAtomicConcurrentClaimsPartitionTheDomain(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{
		Initial: initialAt(0),
		// Plenty of headroom for 16 claimers contending on one lock.
		LockWait: 10 * time.Second,
	}, 1)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	starts := make(map[int64]int)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claim, err := ix.Atomic(ctx)
			assert.NoError(t, err)
			assert.Equal(t, claim.Start+1, claim.Ended)

			mu.Lock()
			starts[claim.Start]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	// The multiset of starts is exactly {0, 1, ..., n-1}: no interval
	// claimed twice, none skipped.
	require.Len(t, starts, n)
	for i := int64(0); i < n; i++ {
		assert.Equal(t, 1, starts[i], "start %d", i)
	}

	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), cursor)
}

func TestAtomicLockUnavailable(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{
		Initial:  initialAt(0),
		LockWait: 50 * time.Millisecond,
	}, 1)

	// Another holder owns the cursor lock and never lets go.
	require.NoError(t, env.mr.Set("indexer:test:current", "elsewhere"))

	_, err := ix.Atomic(context.Background())
	var lockErr *coordinator.LockUnavailableError
	require.ErrorAs(t, err, &lockErr)

	// Nothing was claimed.
	cursor, err := ix.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)
}

func TestAtomicWithoutCoordinator(t *testing.T) {
	ix, err := New(Options[int64]{Name: "solo", Initial: initialAt(0)}, Hooks[int64]{
		Step: func(_ context.Context, c int64) (int64, error) { return c + 1, nil },
	}, nil, nil)
	require.NoError(t, err)

	_, err = ix.Atomic(context.Background())
	var misconfig *MisconfigurationError
	require.ErrorAs(t, err, &misconfig)
}

func TestCurrentWithoutInitialFails(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{}, 1)

	_, err := ix.Current(context.Background())
	var misconfig *MisconfigurationError
	require.ErrorAs(t, err, &misconfig)
	assert.Contains(t, misconfig.Reason, "initial")
}

func TestInitialHookOverridesOption(t *testing.T) {
	env := newEnv(t)
	hooks := Hooks[int64]{
		Step:    func(_ context.Context, c int64) (int64, error) { return c + 1, nil },
		Initial: func(_ context.Context) (int64, error) { return 100, nil },
	}
	ix := env.indexer(t, Options[int64]{Initial: initialAt(0)}, hooks)

	cursor, err := ix.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), cursor)
}

func TestNextExplicitAndStepped(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 10)
	ctx := context.Background()

	// Explicit write wins unconditionally.
	v := int64(40)
	require.NoError(t, ix.Next(ctx, &v))
	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), cursor)

	// Without a value, next = step(current).
	require.NoError(t, ix.Next(ctx, nil))
	cursor, err = ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), cursor)
}

func TestLatestDefaultsToFalse(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 1)

	terminal, err := ix.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, terminal)
}
