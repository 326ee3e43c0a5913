// Package counter defines the shared counter store primitive the
// enforcement engine is built on: atomic increment-with-TTL and atomic
// decrement, addressed by a limit key. Any store providing these
// primitives is substitutable; the gateway ships a Redis implementation.
package counter

import (
	"context"
	"time"
)

// Store is the primitive contract for the distributed counter store.
// All methods must be safe for concurrent use from many processes; the
// enforcement engine relies on IncrBy being a single indivisible store
// operation, never a read followed by a write.
type Store interface {
	// IncrBy atomically adds delta to the counter at key and returns the
	// post-increment value. When the increment creates the key, the key's
	// TTL is set to ttl in the same atomic step.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// DecrBy atomically subtracts delta from the counter at key. If the
	// key no longer exists (window already expired) the call is a no-op,
	// so a refund can never resurrect a dead window.
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Get returns the current counter value, zero when the key is absent.
	Get(ctx context.Context, key string) (int64, error)

	// TTL returns the remaining lifetime of key. Zero means the key has
	// no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
