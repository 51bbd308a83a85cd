package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Cache is a byte cache with expiry. Get reports a miss with ok=false.
// SetIfAbsent reports whether the value was stored.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// CachedRepository is a read-through cache in front of another Repository.
// Saves go to the backing store first and then overwrite the cached entry.
// A Load only fills an empty entry, so a reader holding a snapshot older than
// a concurrent save cannot replace the newer value. Cache failures are logged
// and never fail the call.
type CachedRepository struct {
	next   Repository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedRepository(next Repository, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Uncached returns the backing store. Writers that hold the schedule lock
// read from it so a mutation never starts from a cached snapshot.
func (c *CachedRepository) Uncached() Repository {
	return c.next
}

func cacheKey(practitionerID, locationID string, date time.Time) string {
	return fmt.Sprintf("schedule:day:%s:%s:%s", practitionerID, locationID, FormatDate(DateOf(date)))
}

func (c *CachedRepository) Load(ctx context.Context, practitionerID, locationID string, date time.Time) (*Day, error) {
	key := cacheKey(practitionerID, locationID, date)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache read failed")
	}
	if ok {
		var sessions []*Session
		if err := json.Unmarshal(raw, &sessions); err == nil {
			return RestoreDay(practitionerID, locationID, date, sessions), nil
		}
		c.logger.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		c.drop(ctx, key)
	}

	day, err := c.next.Load(ctx, practitionerID, locationID, date)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(day.Sessions()); err == nil {
		if _, err := c.cache.SetIfAbsent(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache fill failed")
		}
	}
	return day, nil
}

func (c *CachedRepository) Save(ctx context.Context, practitionerID, locationID string, date time.Time, sessions []*Session) error {
	if err := c.next.Save(ctx, practitionerID, locationID, date, sessions); err != nil {
		return err
	}

	key := cacheKey(practitionerID, locationID, date)
	if sessions == nil {
		sessions = []*Session{}
	}
	raw, err := json.Marshal(sessions)
	if err == nil {
		err = c.cache.Set(ctx, key, raw, c.ttl)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache refresh failed")
		c.drop(ctx, key)
	}
	return nil
}

func (c *CachedRepository) drop(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("schedule cache invalidation failed")
	}
}
