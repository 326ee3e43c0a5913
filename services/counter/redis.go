package counter

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrScript performs the atomic increment-with-TTL. The PEXPIRE only
// fires when the increment created the key, so concurrent creators
// converge on one window: whoever lands first sets the expiry, everyone
// else just increments.
var incrScript = goredis.NewScript(`
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if tonumber(v) == tonumber(ARGV[1]) then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return v
`)

// decrScript refunds units without resurrecting an expired key. A plain
// DECRBY on a missing key would recreate it with a negative value and no
// TTL, permanently skewing the next window.
var decrScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return redis.call("DECRBY", KEYS[1], ARGV[1])
end
return 0
`)

// RedisStore is the Redis-backed Store shared by every gateway replica.
type RedisStore struct {
	client    goredis.Cmdable
	keyPrefix string
	opTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default "gw:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// WithOpTimeout bounds every store round trip (default 2s). A timeout
// surfaces as an error so callers can apply their failure-mode policy.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.opTimeout = d }
}

// NewRedisStore creates a Store backed by the given Redis client.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func NewRedisStore(client goredis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: "gw:",
		opTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string {
	return s.keyPrefix + k
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// IncrBy atomically increments the counter, creating it with ttl on first
// write in the window.
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	v, err := incrScript.Run(ctx, s.client, []string{s.key(key)}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("counter: incrby %s: %w", key, err)
	}
	return v, nil
}

// DecrBy atomically decrements the counter if it still exists.
func (s *RedisStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	v, err := decrScript.Run(ctx, s.client, []string{s.key(key)}, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("counter: decrby %s: %w", key, err)
	}
	return v, nil
}

// Get returns the current counter value, zero when absent.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	v, err := s.client.Get(ctx, s.key(key)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter: get %s: %w", key, err)
	}
	return v, nil
}

// TTL returns the remaining lifetime of the counter.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	d, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("counter: ttl %s: %w", key, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
