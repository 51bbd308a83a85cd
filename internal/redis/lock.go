package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
)

// Locker is used by the schedule service to guard critical sections per
// practitioner and location
type Locker interface {
	WithScheduleLock(ctx context.Context, practitionerID, locationID string, fn func(ctx context.Context) error) error
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScheduleLocker creates a locker that uses a per schedule Redis key
func NewRedisScheduleLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisScheduleLocker{
		client: client,
		ttl:    ttl,
	}
}

func scheduleLockKey(practitionerID, locationID string) string {
	return fmt.Sprintf("lock:schedule:%s:%s", practitionerID, locationID)
}

func (l *redisScheduleLocker) WithScheduleLock(ctx context.Context, practitionerID, locationID string, fn func(ctx context.Context) error) error {
	key := scheduleLockKey(practitionerID, locationID)
	token := uuid.NewString()
	// Taken before SETNX so fn's deadline always falls inside the key's lifetime.
	lease := time.Now().Add(l.ttl)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire schedule lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	leaseCtx, cancel := context.WithDeadline(ctx, lease)
	defer cancel()

	return fn(leaseCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}
