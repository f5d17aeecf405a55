package workers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/events"
)

// FeatureResetter drops every cached flag evaluation.
type FeatureResetter interface {
	Reset(ctx context.Context) error
}

// NewClearFeaturesCache invalidates the feature namespace on features-reset.
// The bulk delete is idempotent, so redelivery needs no dedupe.
func NewClearFeaturesCache(cache FeatureResetter) Worker {
	return Worker{
		Topic:        events.TopicFeaturesReset,
		Subscription: "clear-features-cache",
		Handler: func(ctx context.Context, msg events.Message) error {
			log.Info("clearing features cache")
			return cache.Reset(ctx)
		},
	}
}
