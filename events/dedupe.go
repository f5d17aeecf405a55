package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper records processed message ids so redelivered messages can skip
// side effects that are not naturally idempotent. Keys expire so the set does
// not grow without bound; redelivery after expiry is covered by the downstream
// effect being an upsert.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(subscription, messageID string) string {
	return fmt.Sprintf("seen:%s:%s", subscription, messageID)
}

// Add records the message id if it was not seen before. It returns true when
// the id was newly added.
func (r *RedisDeduper) Add(ctx context.Context, subscription, messageID string) (bool, error) {
	return r.client.SetNX(ctx, r.key(subscription, messageID), 1, r.ttl).Result()
}

// Remove deletes a previously recorded id. It is used when downstream
// processing fails so the transport's redelivery can retry the message.
func (r *RedisDeduper) Remove(ctx context.Context, subscription, messageID string) error {
	return r.client.Del(ctx, r.key(subscription, messageID)).Err()
}
