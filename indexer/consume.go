package indexer

import (
	"context"
	"errors"

	"github.com/maxpert/stride/telemetry"
	"github.com/rs/zerolog/log"
)

// Callback processes one claimed interval. The epoch is the value the
// claim was issued under; long-running callbacks should re-check it via
// Validate before committing results.
type Callback[T any] func(ctx context.Context, start, ended T, epoch int64) error

type consumeOptions struct {
	retry bool
}

// ConsumeOption adjusts a single Consume invocation.
type ConsumeOption func(*consumeOptions)

// WithoutRetry disables enqueueing the start for retry when the callback
// fails. The error still propagates.
func WithoutRetry() ConsumeOption {
	return func(o *consumeOptions) {
		o.retry = false
	}
}

// Consume runs one dispatch tick: admission against the concurrency cap,
// claim (retry queue first, then a fresh Atomic claim), occupy, invoke
// the callback, release.
//
// A full concurrency cap and a terminal cursor are both normal
// no-dispatch outcomes, not errors. Callback failures propagate after
// routing: enqueued for retry when the claim's epoch is still current,
// dropped with a log line when a rollback has invalidated it. The task
// slot is released on every exit path, including panics.
//
// Replays from the retry queue deliberately skip the terminal predicate
// — a failed start past the boundary is still retried — and carry the
// epoch current at replay time, not the one they originally ran under.
func (ix *Indexer[T]) Consume(ctx context.Context, cb Callback[T], opts ...ConsumeOption) error {
	if ix.coord == nil {
		return ix.misconfigured("consume requires a coordinator")
	}

	co := consumeOptions{retry: true}
	for _, opt := range opts {
		opt(&co)
	}

	admitted, err := ix.admit(ctx)
	if err != nil {
		return err
	}
	if !admitted {
		telemetry.ConsumeTotal.With(ix.name, "rejected").Inc()
		log.Debug().Str("indexer", ix.name).Msg("Concurrency cap reached, skipping dispatch")
		return nil
	}

	var start, ended T
	var epoch int64
	var encoded string

	retried, ok, err := ix.failed(ctx)
	if err != nil {
		return err
	}
	if ok {
		encoded = retried
		if start, err = ix.decode(retried); err != nil {
			return err
		}
		if ended, err = ix.hooks.Step(ctx, start); err != nil {
			return err
		}
		if epoch, err = ix.coord.GetInt(ctx, ix.epochKey); err != nil {
			return err
		}
		log.Debug().Str("indexer", ix.name).Str("start", encoded).Msg("Replaying failed start")
	} else {
		claim, err := ix.Atomic(ctx)
		if err != nil {
			var latest *ReachedLatestError
			if errors.As(err, &latest) {
				telemetry.ConsumeTotal.With(ix.name, "latest").Inc()
				return nil
			}
			return err
		}
		start, ended, epoch = claim.Start, claim.Ended, claim.Epoch
		if encoded, err = ix.encode(start); err != nil {
			return err
		}
	}

	if err := ix.occupy(ctx, encoded); err != nil {
		return err
	}
	defer ix.release(ctx, encoded)

	if cbErr := cb(ctx, start, ended, epoch); cbErr != nil {
		return ix.routeFailure(ctx, encoded, epoch, co.retry, cbErr)
	}

	telemetry.ConsumeTotal.With(ix.name, "success").Inc()
	return nil
}

// routeFailure decides what happens to a failed start. Epoch mismatch
// means a rollback already wiped this lineage: the failure is dropped,
// never re-enqueued. Bookkeeping errors on the way are logged so they
// cannot mask the callback's own error.
func (ix *Indexer[T]) routeFailure(ctx context.Context, encoded string, epoch int64, retry bool, cbErr error) error {
	current, err := ix.coord.GetInt(ctx, ix.epochKey)
	if err != nil {
		log.Warn().Err(err).Str("indexer", ix.name).Msg("Failed to read epoch while routing failure")
		current = epoch // Cannot prove a rollback happened, keep the task
	}

	switch {
	case current != epoch:
		telemetry.EpochMismatchesTotal.With(ix.name).Inc()
		telemetry.ConsumeTotal.With(ix.name, "dropped").Inc()
		log.Warn().
			Str("indexer", ix.name).
			Str("start", encoded).
			Int64("task_epoch", epoch).
			Int64("current_epoch", current).
			Msg("Epoch changed mid-callback, dropping failed task")

	case retry:
		if failErr := ix.fail(ctx, encoded); failErr != nil {
			log.Warn().
				Err(failErr).
				Str("indexer", ix.name).
				Str("start", encoded).
				Msg("Failed to enqueue retry")
		}
		telemetry.ConsumeTotal.With(ix.name, "failed").Inc()

	default:
		telemetry.ConsumeTotal.With(ix.name, "failed").Inc()
	}

	return cbErr
}
