package indexer

import (
	"context"

	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/telemetry"
	"github.com/rs/zerolog/log"
)

// admit reports whether a new dispatch fits under the concurrency cap.
// Admission rejection is backpressure, never an error.
func (ix *Indexer[T]) admit(ctx context.Context) (bool, error) {
	if ix.opts.Concurrency <= 0 {
		return true, nil
	}
	live, err := ix.coord.LLen(ctx, ix.liveKey)
	if err != nil {
		return false, err
	}
	return live < int64(ix.opts.Concurrency), nil
}

// occupy records a dispatched start: append it to the live-task list,
// write its shadow with the running TTL, and refresh the list's own
// sliding TTL so an orphaned list eventually disappears. One pipelined
// round trip.
func (ix *Indexer[T]) occupy(ctx context.Context, encoded string) error {
	err := ix.coord.Pipelined(ctx, func(p coordinator.Pipe) error {
		p.RPush(ix.liveKey, encoded)
		p.SetEx(ix.shadowKey(encoded), "1", ix.opts.RunningTimeout)
		p.Expire(ix.liveKey, ix.opts.ConcurrencyTimeout)
		return nil
	})
	if err != nil {
		return err
	}
	telemetry.LiveTasks.With(ix.name).Inc()
	return nil
}

// release removes one live-list occurrence of the start and deletes its
// shadow. Exactly one occurrence: removing more would let a concurrent
// occupy of the same value lose its slot. Release must never mask the
// callback's error or skew accounting, so failures are logged rather
// than returned, and the release pipeline runs even when ctx is already
// cancelled.
func (ix *Indexer[T]) release(ctx context.Context, encoded string) {
	err := ix.coord.Pipelined(context.WithoutCancel(ctx), func(p coordinator.Pipe) error {
		p.LRem(ix.liveKey, 1, encoded)
		p.Del(ix.shadowKey(encoded))
		return nil
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("indexer", ix.name).
			Str("start", encoded).
			Msg("Failed to release task slot, cleanup will reap it")
		return
	}
	telemetry.LiveTasks.With(ix.name).Dec()
}
