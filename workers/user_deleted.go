package workers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
)

// NewUserDeletedMailing removes a deleted account's contact from the mailing
// lists. The payload is the row image from before the delete. Removing an
// absent contact is a no-op on the provider side, so redelivery is safe.
func NewUserDeletedMailing(client MailingList, listIDs []string) Worker {
	return Worker{
		Topic:        events.TopicUserDeleted,
		Subscription: "user-deleted-mailing",
		Handler: func(ctx context.Context, msg events.Message) error {
			var user domain.User
			if err := msg.JSON(&user); err != nil {
				return err
			}
			if user.Email == "" {
				return nil
			}
			contactID, err := client.ContactIDByEmail(ctx, user.Email)
			if err != nil {
				return err
			}
			if contactID == "" {
				return nil
			}
			log.WithFields(log.Fields{
				"messageId": msg.ID,
				"userId":    user.ID,
			}).Info("removing deleted user from mailing lists")
			for _, listID := range listIDs {
				if listID == "" {
					continue
				}
				if err := client.RemoveFromList(ctx, listID, contactID); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
