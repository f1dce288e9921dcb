package indexer

import (
	"context"
	"fmt"

	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/telemetry"
	"github.com/rs/zerolog/log"
)

// Rollback moves the cursor back to target under the cursor lock: run
// the user hook, reset the cursor, wipe the live-task list with its
// shadows and the whole retry queue, and increment the epoch. In-flight
// callbacks are not cancelled; their stale epoch directs Consume to drop
// their failures and Validate to tell workers to discard results.
//
// A hook error aborts the rollback with nothing mutated.
func (ix *Indexer[T]) Rollback(ctx context.Context, target T) error {
	if ix.coord == nil {
		return ix.misconfigured("rollback requires a coordinator")
	}

	return ix.coord.WithLock(ctx, ix.lockKey, ix.opts.LockTTL, ix.opts.LockWait, func(ctx context.Context) error {
		from, err := ix.Current(ctx)
		if err != nil {
			return err
		}

		if ix.hooks.OnRollback != nil {
			if err := ix.hooks.OnRollback(ctx, from, target); err != nil {
				return fmt.Errorf("rollback hook for '%s': %w", ix.name, err)
			}
		}

		encoded, err := ix.encode(target)
		if err != nil {
			return err
		}
		if err := ix.store.Set(ctx, ix.name, encoded); err != nil {
			return err
		}

		// Wipe the dispatch state: every live entry's shadow, the live
		// list itself, and the retry queue. Anything enqueued before this
		// moment is stale regardless of which queue it sits in.
		live, err := ix.coord.LRange(ctx, ix.liveKey, 0, -1)
		if err != nil {
			return err
		}
		err = ix.coord.Pipelined(ctx, func(p coordinator.Pipe) error {
			for _, entry := range live {
				p.Del(ix.shadowKey(entry))
			}
			p.Del(ix.liveKey, ix.failedKey)
			return nil
		})
		if err != nil {
			return err
		}

		epoch, err := ix.coord.Incr(ctx, ix.epochKey)
		if err != nil {
			return err
		}

		telemetry.RollbacksTotal.With(ix.name).Inc()
		telemetry.LiveTasks.With(ix.name).Set(0)
		log.Info().
			Str("indexer", ix.name).
			Interface("from", from).
			Interface("to", target).
			Int64("epoch", epoch).
			Msg("Rolled back cursor")
		return nil
	})
}
