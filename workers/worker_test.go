package workers

import (
	"testing"

	"github.com/silvesterwali/daily-gateway/events"
)

// The delivery pump builds its routing table from a worker set constructed
// with empty deps; construction must never touch them.
func TestAllConstructsWithEmptyDeps(t *testing.T) {
	ws := All(Deps{})
	if len(ws) == 0 {
		t.Fatal("expected a non-empty worker set")
	}
	for _, w := range ws {
		if w.Topic == "" || w.Subscription == "" {
			t.Fatalf("worker %+v missing topic or subscription", w)
		}
		if w.Handler == nil {
			t.Fatalf("worker %s has no handler", w.Subscription)
		}
	}
}

func TestEveryTopicHasASubscription(t *testing.T) {
	routes := SubscriptionsByTopic(All(Deps{}))
	for _, topic := range events.Topics() {
		if len(routes[topic]) == 0 {
			t.Fatalf("topic %s has no subscription", topic)
		}
	}
}

func TestSubscriptionsAreUnique(t *testing.T) {
	ws := All(Deps{})
	if got := len(BySubscription(ws)); got != len(ws) {
		t.Fatalf("subscription index holds %d of %d workers, names collide", got, len(ws))
	}
}
