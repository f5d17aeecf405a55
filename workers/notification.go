package workers

import (
	"context"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
)

// Notifier announces a new registration to the team channel.
type Notifier interface {
	NotifyNewUser(ctx context.Context, user domain.User) error
}

// NewNewUserNotification posts a note for every registration. Duplicate
// messages at worst repeat the announcement, which is tolerated.
func NewNewUserNotification(notifier Notifier) Worker {
	return Worker{
		Topic:        events.TopicUserRegistered,
		Subscription: "user-registered-slack",
		Handler: func(ctx context.Context, msg events.Message) error {
			var user domain.User
			if err := msg.JSON(&user); err != nil {
				return err
			}
			return notifier.NotifyNewUser(ctx, user)
		},
	}
}
