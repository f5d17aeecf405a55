package workers

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/mailing"
)

// MailingList is the downstream contact-list provider.
type MailingList interface {
	ContactIDByEmail(ctx context.Context, email string) (string, error)
	RemoveFromList(ctx context.Context, listID, contactID string) error
	UpdateContact(ctx context.Context, profile domain.User, oldEmail string, listIDs []string) error
}

// NewMailingList syncs profile edits to the contact lists. The provider-side
// upsert keyed by email makes redelivery safe without dedupe.
func NewMailingList(client MailingList, defaultListID, marketingListID string) Worker {
	return Worker{
		Topic:        events.TopicUserUpdated,
		Subscription: "user-updated-mailing",
		Handler: func(ctx context.Context, msg events.Message) error {
			var data domain.UserUpdated
			if err := msg.JSON(&data); err != nil {
				return err
			}
			if data.NewProfile.Email == "" {
				log.WithFields(log.Fields{
					"messageId": msg.ID,
					"userId":    data.User.ID,
				}).Warn("no email in user-updated message")
				return nil
			}

			lists := []string{defaultListID}
			if !data.NewProfile.AcceptedMarketing {
				contactID, err := client.ContactIDByEmail(ctx, data.User.Email)
				if err != nil {
					return err
				}
				if contactID != "" {
					if err := client.RemoveFromList(ctx, marketingListID, contactID); err != nil {
						return err
					}
				}
			} else {
				lists = append(lists, marketingListID)
			}

			if err := client.UpdateContact(ctx, data.NewProfile, data.User.Email, lists); err != nil {
				if errors.Is(err, mailing.ErrFieldTooLong) {
					// Provider-side field limit; not worth a redelivery loop.
					log.WithError(err).WithFields(log.Fields{
						"messageId": msg.ID,
						"userId":    data.User.ID,
					}).Warn("skipped updating user in mailing list")
					return nil
				}
				return err
			}
			return nil
		},
	}
}
