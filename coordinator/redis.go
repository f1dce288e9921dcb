package coordinator

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// lockRetryInterval is how often a blocked WithLock re-attempts acquisition.
const lockRetryInterval = 20 * time.Millisecond

// releaseScript deletes the lock key only when the stored token matches,
// so a holder whose lock expired and was re-acquired by someone else can
// never delete the new holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis implements Coordinator on top of a go-redis universal client
// (single node, sentinel, or cluster).
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. The caller owns the client lifecycle.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error {
	token, err := acquireLock(ctx, r.client, key, ttl, wait)
	if err != nil {
		return err
	}

	defer func() {
		released, err := releaseScript.Run(context.WithoutCancel(ctx), r.client, []string{key}, token).Int()
		if err != nil {
			log.Warn().Err(err).Str("lock", key).Msg("Failed to release lock, TTL will reclaim it")
		} else if released == 0 {
			log.Warn().Str("lock", key).Msg("Lock expired before release")
		}
	}()

	return fn(ctx)
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Incr(ctx, key).Result()
	return v, wireErr("INCR", key, err)
}

func (r *Redis) GetInt(ctx context.Context, key string) (int64, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, wireErr("GET", key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, wireErr("GET", key, err)
	}
	return v, nil
}

func (r *Redis) RPush(ctx context.Context, key string, values ...string) error {
	return wireErr("RPUSH", key, r.client.RPush(ctx, key, toAny(values)...).Err())
}

func (r *Redis) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wireErr("LPOP", key, err)
	}
	return v, true, nil
}

func (r *Redis) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	n, err := r.client.LRem(ctx, key, count, value).Result()
	return n, wireErr("LREM", key, err)
}

func (r *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vs, err := r.client.LRange(ctx, key, start, stop).Result()
	return vs, wireErr("LRANGE", key, err)
}

func (r *Redis) LLen(ctx context.Context, key string) (int64, error) {
	n, err := r.client.LLen(ctx, key).Result()
	return n, wireErr("LLEN", key, err)
}

func (r *Redis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return wireErr("SET", key, r.client.Set(ctx, key, value, ttl).Err())
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wireErr("EXISTS", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return wireErr("DEL", keys[0], r.client.Del(ctx, keys...).Err())
}

func (r *Redis) Pipelined(ctx context.Context, fn func(p Pipe) error) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisPipe{pipe: pipe, ctx: ctx})
	})
	return wireErr("PIPELINE", "", err)
}

type redisPipe struct {
	pipe redis.Pipeliner
	ctx  context.Context
}

func (p *redisPipe) RPush(key string, values ...string) {
	p.pipe.RPush(p.ctx, key, toAny(values)...)
}

func (p *redisPipe) SetEx(key, value string, ttl time.Duration) {
	p.pipe.Set(p.ctx, key, value, ttl)
}

func (p *redisPipe) Expire(key string, ttl time.Duration) {
	p.pipe.Expire(p.ctx, key, ttl)
}

func (p *redisPipe) LRem(key string, count int64, value string) {
	p.pipe.LRem(p.ctx, key, count, value)
}

func (p *redisPipe) Del(keys ...string) {
	p.pipe.Del(p.ctx, keys...)
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
