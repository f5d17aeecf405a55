package flags

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "features:"

// DefaultTTL bounds how long an evaluation result is served without consulting
// the provider again.
const DefaultTTL = 30 * 24 * time.Hour

// Cache stores flag evaluation results per subject identity in Redis. It is
// never authoritative: any miss or corrupt entry recomputes from the provider.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates the flag cache. A non-positive TTL falls back to DefaultTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{redis: client, ttl: ttl}
}

func cacheKey(subject string) string {
	return cachePrefix + subject
}

// Has reports whether an entry exists for the subject.
func (c *Cache) Has(ctx context.Context, subject string) (bool, error) {
	n, err := c.redis.Exists(ctx, cacheKey(subject)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get loads the cached evaluation result. The boolean reports a usable hit.
func (c *Cache) Get(ctx context.Context, subject string) (map[string]Flag, bool) {
	data, err := c.redis.Get(ctx, cacheKey(subject)).Bytes()
	if err != nil {
		return nil, false
	}
	var flags map[string]Flag
	if err := json.Unmarshal(data, &flags); err != nil {
		_ = c.redis.Del(ctx, cacheKey(subject)).Err()
		return nil, false
	}
	return flags, true
}

// Set stores the evaluation result with the cache TTL.
func (c *Cache) Set(ctx context.Context, subject string, flags map[string]Flag) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, cacheKey(subject), data, c.ttl).Err()
}

// Reset unlinks every key under the feature namespace. The scan is best-effort
// and non-transactional: entries written while it runs may survive until their
// TTL, which is accepted.
func (c *Cache) Reset(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.redis.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.redis.Unlink(ctx, batch...).Err()
	}
	return nil
}
