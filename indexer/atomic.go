package indexer

import (
	"context"
	"time"

	"github.com/maxpert/stride/telemetry"
	"github.com/rs/zerolog/log"
)

// Claim is the result of an atomic cursor advance: the interval
// [Start, Ended) now belongs to the caller, and Epoch is the rollback
// epoch it was issued under.
type Claim[T any] struct {
	Start T
	Ended T
	Epoch int64
}

// Atomic claims the next interval under the cursor lock: read current,
// check the terminal predicate, compute ended, advance the cursor, read
// the epoch. The cursor is advanced before the caller does any work, so
// the lock region stays bounded to coordinator round trips and dispatch
// throughput is decoupled from callback latency. The claimed start
// survives only in the live-task list (after occupy) or the retry queue
// (after a failure); a caller that crashes between Atomic and occupy
// loses the interval.
//
// Fails with ReachedLatestError when the predicate is true (the cursor
// is not mutated) and LockUnavailableError when the lock cannot be
// acquired within its wait budget.
func (ix *Indexer[T]) Atomic(ctx context.Context) (Claim[T], error) {
	var claim Claim[T]
	if ix.coord == nil {
		return claim, ix.misconfigured("atomic requires a coordinator")
	}

	began := time.Now()
	err := ix.coord.WithLock(ctx, ix.lockKey, ix.opts.LockTTL, ix.opts.LockWait, func(ctx context.Context) error {
		start, err := ix.Current(ctx)
		if err != nil {
			return err
		}

		if ix.hooks.Latest != nil {
			terminal, err := ix.hooks.Latest(ctx, start)
			if err != nil {
				return err
			}
			if terminal {
				encoded, encErr := ix.encode(start)
				if encErr != nil {
					return encErr
				}
				return &ReachedLatestError{Value: encoded}
			}
		}

		ended, err := ix.hooks.Step(ctx, start)
		if err != nil {
			return err
		}

		encoded, err := ix.encode(ended)
		if err != nil {
			return err
		}
		if err := ix.store.Set(ctx, ix.name, encoded); err != nil {
			return err
		}

		epoch, err := ix.coord.GetInt(ctx, ix.epochKey)
		if err != nil {
			return err
		}

		claim = Claim[T]{Start: start, Ended: ended, Epoch: epoch}
		return nil
	})
	telemetry.ClaimDurationSeconds.With(ix.name).Observe(time.Since(began).Seconds())

	if err != nil {
		return claim, err
	}

	telemetry.ClaimsTotal.With(ix.name).Inc()
	log.Debug().
		Str("indexer", ix.name).
		Interface("start", claim.Start).
		Interface("ended", claim.Ended).
		Int64("epoch", claim.Epoch).
		Msg("Claimed interval")
	return claim, nil
}
