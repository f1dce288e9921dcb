package indexer

import (
	"context"

	"github.com/maxpert/stride/coordinator"
	"github.com/maxpert/stride/telemetry"
)

// fail enqueues a start for re-dispatch and refreshes the retry queue's
// key TTL. Entries outliving RetryTimeout are dropped silently when the
// whole key expires; workers tolerate at-most-once retry.
func (ix *Indexer[T]) fail(ctx context.Context, encoded string) error {
	err := ix.coord.Pipelined(ctx, func(p coordinator.Pipe) error {
		p.RPush(ix.failedKey, encoded)
		p.Expire(ix.failedKey, ix.opts.RetryTimeout)
		return nil
	})
	if err != nil {
		return err
	}
	telemetry.RetriesTotal.With(ix.name, "failure").Inc()
	return nil
}

// failed dequeues the oldest retryable start, FIFO. The second return is
// false when the queue is empty.
func (ix *Indexer[T]) failed(ctx context.Context) (string, bool, error) {
	return ix.coord.LPop(ctx, ix.failedKey)
}
