package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// acquireLock attempts SET NX PX with a unique owner token, retrying until
// wait is exhausted. Returns the token on success so release can verify
// ownership.
func acquireLock(ctx context.Context, client redis.UniversalClient, key string, ttl, wait time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", wireErr("SETNX", key, err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", &LockUnavailableError{Key: key, Wait: wait}
		}

		select {
		case <-ctx.Done():
			return "", wireErr("SETNX", key, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}
