package coordinator

import (
	"context"
	"time"
)

// Coordinator is the capability set the indexing engine consumes from a
// shared coordination service: mutual exclusion, atomic counters, lists,
// and TTL-bounded keys. The canonical implementation is Redis, but any
// backend offering these primitives is compatible.
type Coordinator interface {
	// WithLock runs fn while holding the named mutex. The lock key is set
	// with the given ttl so a crashed holder cannot block the cluster;
	// acquisition is retried until wait is exhausted, then fails with
	// LockUnavailableError. The lock is released on every exit path
	// (success, error, panic); if release fails the TTL reclaims it.
	WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error

	// Incr atomically increments the counter at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// GetInt reads the counter at key. An absent key reads as 0.
	GetInt(ctx context.Context, key string) (int64, error)

	RPush(ctx context.Context, key string, values ...string) error
	// LPop removes and returns the head of the list. The second return is
	// false when the list is empty or absent.
	LPop(ctx context.Context, key string) (string, bool, error)
	// LRem removes up to count occurrences of value and returns how many
	// were removed.
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)

	// SetEx writes value at key with a TTL.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error

	// Pipelined batches the mutations queued on the Pipe into a single
	// transactional round trip.
	Pipelined(ctx context.Context, fn func(p Pipe) error) error
}

// Pipe queues mutations for a single pipelined round trip. Results are
// not observable; pipelines carry fire-and-forget bookkeeping writes.
type Pipe interface {
	RPush(key string, values ...string)
	SetEx(key, value string, ttl time.Duration)
	Expire(key string, ttl time.Duration)
	LRem(key string, count int64, value string)
	Del(keys ...string)
}
