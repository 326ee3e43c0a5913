package counter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestIncrBy_CreatesWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	v, err := store.IncrBy(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	ttl := mr.TTL("gw:k")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestIncrBy_SecondWriteKeepsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.IncrBy(ctx, "k", 1, time.Minute)
	require.NoError(t, err)

	// Let half the window elapse, then increment again. The expiry must
	// not restart, or the window would slide instead of being fixed.
	mr.FastForward(30 * time.Second)

	v, err := store.IncrBy(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	assert.LessOrEqual(t, mr.TTL("gw:k"), 30*time.Second)
}

func TestIncrBy_Expiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.IncrBy(ctx, "k", 5, time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	// A fresh window starts from the delta again, with a fresh TTL.
	v, err := store.IncrBy(ctx, "k", 5, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)
}

func TestDecrBy_Refund(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.IncrBy(ctx, "k", 10, time.Minute)
	require.NoError(t, err)

	v, err := store.DecrBy(ctx, "k", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
}

func TestDecrBy_MissingKeyIsNotResurrected(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	v, err := store.DecrBy(ctx, "gone", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
	assert.False(t, mr.Exists("gw:gone"))
}

func TestGet_AbsentIsZero(t *testing.T) {
	store, _ := newTestStore(t)

	v, err := store.Get(context.Background(), "nothing")
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
}

func TestTTL_AbsentIsZero(t *testing.T) {
	store, _ := newTestStore(t)

	d, err := store.TTL(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
}

func TestKeyPrefix(t *testing.T) {
	store, mr := newTestStore(t, WithKeyPrefix("custom:"))

	_, err := store.IncrBy(context.Background(), "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("custom:k"))
	assert.False(t, mr.Exists("gw:k"))
}

func TestStoreErrorsSurface(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.IncrBy(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)

	_, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
}
