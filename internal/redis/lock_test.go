package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests; they need a reachable Redis.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client, err := NewRedisClient(context.Background(), addr, "", os.Getenv("TEST_REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestScheduleLock(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 5*time.Second)
	ctx := context.Background()
	practitioner := uuid.NewString()

	err := locker.WithScheduleLock(ctx, practitioner, "loc-1", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)

		inner := locker.WithScheduleLock(ctx, practitioner, "loc-1", func(context.Context) error {
			t.Fatal("nested acquire must fail")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// Other locations are independent.
		return locker.WithScheduleLock(ctx, practitioner, "loc-2", func(context.Context) error { return nil })
	})
	require.NoError(t, err)

	exists, err := client.Exists(ctx, scheduleLockKey(practitioner, "loc-1")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "lock is released")
}

func TestScheduleLockDeadlineWithinLease(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 2*time.Second)
	ctx := context.Background()
	practitioner := uuid.NewString()
	key := scheduleLockKey(practitioner, "loc-1")

	err := locker.WithScheduleLock(ctx, practitioner, "loc-1", func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		ttl, err := client.PTTL(ctx, key).Result()
		require.NoError(t, err)
		// PTTL is truncated to whole milliseconds.
		assert.LessOrEqual(t, time.Until(deadline), ttl+time.Millisecond)

		// Work that outlives the lease is cut off.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduleLockKeepsForeignToken(t *testing.T) {
	client := testClient(t)
	locker := NewRedisScheduleLocker(client, 5*time.Second)
	ctx := context.Background()
	practitioner := uuid.NewString()
	key := scheduleLockKey(practitioner, "loc-1")

	err := locker.WithScheduleLock(ctx, practitioner, "loc-1", func(ctx context.Context) error {
		// Simulate expiry and takeover by another holder.
		return client.Set(ctx, key, "someone-else", 5*time.Second).Err()
	})
	require.NoError(t, err)

	val, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
	_ = client.Del(ctx, key).Err()
}

func TestCache(t *testing.T) {
	client := testClient(t)
	cache := NewCache(client)
	ctx := context.Background()
	key := "test:cache:" + uuid.NewString()

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, key, []byte(`[]`), time.Minute))
	val, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), val)

	stored, err := cache.SetIfAbsent(ctx, key, []byte(`["stale"]`), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)
	val, _, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), val)

	require.NoError(t, cache.Delete(ctx, key))
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = cache.SetIfAbsent(ctx, key, []byte(`[]`), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	_ = cache.Delete(ctx, key)
}
