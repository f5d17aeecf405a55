package workers

import (
	"context"

	"github.com/silvesterwali/daily-gateway/events"
)

// ChangeHandler normalizes a raw change-stream message into domain events.
type ChangeHandler interface {
	Handle(ctx context.Context, msg events.Message) error
}

// NewCDC feeds the change stream into the normalizer. The subscription rides
// the only ordered topic; envelopes for one row arrive in commit order.
// The handler closes over changes instead of binding the method value so the
// worker set can be constructed with empty deps when only the routing table
// is needed.
func NewCDC(changes ChangeHandler) Worker {
	return Worker{
		Topic:        events.TopicGatewayChanges,
		Subscription: "gateway-cdc",
		Handler: func(ctx context.Context, msg events.Message) error {
			return changes.Handle(ctx, msg)
		},
	}
}
