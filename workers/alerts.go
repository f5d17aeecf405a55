package workers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
)

// AlertsSetter writes per-user alert state into the cache.
type AlertsSetter interface {
	Set(ctx context.Context, userID string, alerts domain.Alerts) error
}

// NewAlertsUpdated mirrors alerts-updated events into the alerts cache so the
// boot payload can serve them without a downstream call. Overwriting the same
// state twice is harmless.
func NewAlertsUpdated(cache AlertsSetter) Worker {
	return Worker{
		Topic:        events.TopicAlertsUpdated,
		Subscription: "alerts-updated-redis",
		Handler: func(ctx context.Context, msg events.Message) error {
			var alerts domain.Alerts
			if err := msg.JSON(&alerts); err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"messageId": msg.ID,
				"userId":    alerts.UserID,
			}).Info("alerts data from bus")
			return cache.Set(ctx, alerts.UserID, alerts)
		},
	}
}
