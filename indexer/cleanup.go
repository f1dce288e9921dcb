package indexer

import (
	"context"

	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/telemetry"
	"github.com/rs/zerolog/log"
)

// Cleanup scans the live-task list and migrates zombies — entries whose
// shadow expired — to the retry queue. Drive it from an external timer;
// the engine never runs it on its own.
//
// Safe to run concurrently from multiple instances: LREM and RPUSH work
// on exact-match entries, a duplicate LREM of an already-moved element is
// a no-op, and the worst case is one extra RPUSH of the same start, which
// retry-side idempotence absorbs.
func (ix *Indexer[T]) Cleanup(ctx context.Context) error {
	if ix.coord == nil {
		return ix.misconfigured("cleanup requires a coordinator")
	}

	entries, err := ix.coord.LRange(ctx, ix.liveKey, 0, -1)
	if err != nil {
		return err
	}

	for _, encoded := range entries {
		alive, err := ix.coord.Exists(ctx, ix.shadowKey(encoded))
		if err != nil {
			return err
		}
		if alive {
			continue
		}

		log.Warn().
			Str("indexer", ix.name).
			Str("start", encoded).
			Msg("Task shadow expired, moving to retry queue")

		err = ix.coord.Pipelined(ctx, func(p coordinator.Pipe) error {
			p.LRem(ix.liveKey, 1, encoded)
			p.RPush(ix.failedKey, encoded)
			p.Expire(ix.failedKey, ix.opts.RetryTimeout)
			return nil
		})
		if err != nil {
			return err
		}

		telemetry.ZombiesTotal.With(ix.name).Inc()
		telemetry.RetriesTotal.With(ix.name, "zombie").Inc()
		telemetry.LiveTasks.With(ix.name).Dec()
	}

	return nil
}
