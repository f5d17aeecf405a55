package workers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
)

// EligibleNotifier announces a contest milestone to the team channel.
type EligibleNotifier interface {
	NotifyEligibleParticipant(ctx context.Context, p domain.Participant) error
}

// NewEligibleParticipantNotification announces every eligibility flip. The
// flip happens at most once per participant, so redelivery at worst repeats
// the announcement.
func NewEligibleParticipantNotification(notifier EligibleNotifier) Worker {
	return Worker{
		Topic:        events.TopicNewEligibleParticipant,
		Subscription: "new-eligible-participant-slack",
		Handler: func(ctx context.Context, msg events.Message) error {
			var p domain.Participant
			if err := msg.JSON(&p); err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"messageId": msg.ID,
				"userId":    p.UserID,
				"contestId": p.ContestID,
			}).Info("participant became eligible")
			return notifier.NotifyEligibleParticipant(ctx, p)
		},
	}
}
