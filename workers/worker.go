// Package workers holds the push-delivery consumers. Each worker owns one
// subscription on one topic and performs a single idempotent side effect; the
// dispatcher maps a returned error to a retry response, so handlers must stay
// safe under redelivery.
package workers

import (
	"context"

	"github.com/silvesterwali/daily-gateway/events"
)

// Worker binds a subscription on a topic to its handler.
type Worker struct {
	Topic        string
	Subscription string
	Handler      func(ctx context.Context, msg events.Message) error
}

// Deduper guards side effects that are not naturally idempotent against
// at-least-once redelivery.
type Deduper interface {
	Add(ctx context.Context, subscription, messageID string) (bool, error)
	Remove(ctx context.Context, subscription, messageID string) error
}

// Deps carries everything the worker set needs.
type Deps struct {
	Changes       ChangeHandler
	Contests      ContestStore
	FeaturesCache FeatureResetter
	AlertsCache   AlertsSetter
	Mailing       MailingList
	Notifier      Notifier
	Eligible      EligibleNotifier
	Deduper       Deduper

	// Mailing list identifiers; the marketing list is joined only when the
	// profile opted in.
	DefaultListID   string
	MarketingListID string
}

// All returns every registered worker. Every topic in events.Topics() has at
// least one subscription here; constructing the set must not touch the deps,
// so the delivery pump can build the routing table from empty ones.
func All(deps Deps) []Worker {
	return []Worker{
		NewCDC(deps.Changes),
		NewReferralContest(deps.Contests, deps.Deduper),
		NewClearFeaturesCache(deps.FeaturesCache),
		NewAlertsUpdated(deps.AlertsCache),
		NewMailingList(deps.Mailing, deps.DefaultListID, deps.MarketingListID),
		NewUserDeletedMailing(deps.Mailing, []string{deps.DefaultListID, deps.MarketingListID}),
		NewNewUserNotification(deps.Notifier),
		NewEligibleParticipantNotification(deps.Eligible),
	}
}

// BySubscription indexes workers for dispatcher lookup.
func BySubscription(ws []Worker) map[string]Worker {
	m := make(map[string]Worker, len(ws))
	for _, w := range ws {
		m[w.Subscription] = w
	}
	return m
}

// SubscriptionsByTopic lists the subscriptions fed by each topic, used by the
// delivery pump to fan a queue message out to its endpoints.
func SubscriptionsByTopic(ws []Worker) map[string][]string {
	m := make(map[string][]string)
	for _, w := range ws {
		m[w.Topic] = append(m[w.Topic], w.Subscription)
	}
	return m
}
