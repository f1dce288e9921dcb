package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackResetsCursorAndBumpsEpoch(t *testing.T) {
	env := newEnv(t)

	type move struct{ from, to int64 }
	var observed []move
	hooks := Hooks[int64]{
		Step: func(_ context.Context, c int64) (int64, error) { return c + 1, nil },
		OnRollback: func(_ context.Context, from, to int64) error {
			observed = append(observed, move{from, to})
			return nil
		},
	}
	ix := env.indexer(t, Options[int64]{Initial: initialAt(10)}, hooks)
	ctx := context.Background()

	v := int64(10)
	require.NoError(t, ix.Next(ctx, &v))

	preEpoch, err := ix.Epoch(ctx)
	require.NoError(t, err)

	require.NoError(t, ix.Rollback(ctx, 5))

	assert.Equal(t, []move{{10, 5}}, observed, "hook sees (from, to) before the cursor moves")

	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cursor)

	ok, err := ix.Validate(ctx, preEpoch)
	require.NoError(t, err)
	assert.False(t, ok, "pre-rollback epochs are invalid")

	postEpoch, err := ix.Epoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, preEpoch+1, postEpoch)

	ok, err = ix.Validate(ctx, postEpoch)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRollbackWipesQueuesAndShadows(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 1)
	ctx := context.Background()

	// Dispatch state in all three places: live entries with shadows and
	// a queued retry.
	require.NoError(t, ix.occupy(ctx, "1"))
	require.NoError(t, ix.occupy(ctx, "2"))
	require.NoError(t, ix.fail(ctx, "3"))

	require.NoError(t, ix.Rollback(ctx, 0))

	live, err := env.coord.LLen(ctx, "indexer:test:concurrency")
	require.NoError(t, err)
	assert.Zero(t, live)

	retries, err := env.coord.LLen(ctx, "indexer:test:failed")
	require.NoError(t, err)
	assert.Zero(t, retries)

	for _, enc := range []string{"1", "2"} {
		ok, err := env.coord.Exists(ctx, "indexer:test:concurrency:shadow:"+enc)
		require.NoError(t, err)
		assert.False(t, ok, "shadow %s must be deleted", enc)
	}
}

func TestRollbackWipesRetriesEnqueuedAfterRelease(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 1)
	ctx := context.Background()

	// A task fails and is queued for retry after its slot is released...
	boom := errors.New("boom")
	err := ix.Consume(ctx, func(_ context.Context, _, _, _ int64) error { return boom })
	require.ErrorIs(t, err, boom)

	n, err := env.coord.LLen(ctx, "indexer:test:failed")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// ...then a rollback lands. The queued retry is stale and must go.
	require.NoError(t, ix.Rollback(ctx, 0))

	n, err = env.coord.LLen(ctx, "indexer:test:failed")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRollbackHookFailureAborts(t *testing.T) {
	env := newEnv(t)
	hookErr := errors.New("business cleanup failed")
	hooks := Hooks[int64]{
		Step:       func(_ context.Context, c int64) (int64, error) { return c + 1, nil },
		OnRollback: func(_ context.Context, _, _ int64) error { return hookErr },
	}
	ix := env.indexer(t, Options[int64]{Initial: initialAt(0)}, hooks)
	ctx := context.Background()

	v := int64(10)
	require.NoError(t, ix.Next(ctx, &v))
	require.NoError(t, ix.fail(ctx, "9"))

	err := ix.Rollback(ctx, 5)
	require.ErrorIs(t, err, hookErr)

	// Nothing moved: cursor, retry queue, and epoch are untouched.
	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cursor)

	n, err := env.coord.LLen(ctx, "indexer:test:failed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	epoch, err := ix.Epoch(ctx)
	require.NoError(t, err)
	assert.Zero(t, epoch)
}

func TestResetDeletesEverything(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 1)
	ctx := context.Background()

	_, err := ix.Atomic(ctx)
	require.NoError(t, err)
	require.NoError(t, ix.occupy(ctx, "0"))
	require.NoError(t, ix.fail(ctx, "5"))
	require.NoError(t, ix.Rollback(ctx, 3))

	require.NoError(t, ix.Reset(ctx))

	// The cursor resolves back to the initial value.
	cursor, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)

	epoch, err := ix.Epoch(ctx)
	require.NoError(t, err)
	assert.Zero(t, epoch)

	for _, key := range []string{
		"indexer:test:concurrency",
		"indexer:test:failed",
		"indexer:test:epoch",
		"indexer:test:current",
	} {
		ok, err := env.coord.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "key %s must be gone", key)
	}
}

func TestStatusSnapshot(t *testing.T) {
	env := newEnv(t)
	ix := env.counterIndexer(t, Options[int64]{Initial: initialAt(0)}, 1)
	ctx := context.Background()

	st, err := ix.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Name: "test"}, st, "fresh indexer reports an unset cursor")

	_, err = ix.Atomic(ctx)
	require.NoError(t, err)
	require.NoError(t, ix.occupy(ctx, "0"))
	require.NoError(t, ix.fail(ctx, "9"))

	st, err = ix.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Name: "test", Cursor: "1", Epoch: 0, Live: 1, Retries: 1}, st)
}
