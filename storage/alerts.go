package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/silvesterwali/daily-gateway/domain"
)

// AlertsCache holds per-user alert state in Redis. It is fed by the
// alerts-updated worker and read best-effort by the boot payload; a miss means
// default alert state, never an error surfaced to the caller.
type AlertsCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewAlertsCache creates the cache with the provided client and TTL.
func NewAlertsCache(client *redis.Client, ttl time.Duration) *AlertsCache {
	return &AlertsCache{redis: client, ttl: ttl}
}

func alertsKey(userID string) string {
	return "alerts:" + userID
}

// Get returns the cached alert state or the defaults when none is cached.
func (a *AlertsCache) Get(ctx context.Context, userID string) (domain.Alerts, error) {
	data, err := a.redis.Get(ctx, alertsKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.DefaultAlerts, nil
		}
		return domain.DefaultAlerts, err
	}
	var alerts domain.Alerts
	if err := json.Unmarshal(data, &alerts); err != nil {
		_ = a.redis.Del(ctx, alertsKey(userID)).Err()
		return domain.DefaultAlerts, nil
	}
	return alerts, nil
}

// Set overwrites the cached alert state for a user.
func (a *AlertsCache) Set(ctx context.Context, userID string, alerts domain.Alerts) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	return a.redis.Set(ctx, alertsKey(userID), data, a.ttl).Err()
}
