package workers

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/storage"
)

// ContestStore is the slice of storage the referral contest worker needs.
type ContestStore interface {
	GetFirstVisitAndReferral(ctx context.Context, trackingID string) (*domain.VisitSummary, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetOngoingContest(ctx context.Context) (*domain.Contest, error)
	IncrementParticipantCount(ctx context.Context, contestID, userID string) error
	GetParticipant(ctx context.Context, contestID, userID string) (*domain.Participant, error)
	SetParticipantEligible(ctx context.Context, contestID, userID string) error
}

// NewReferralContest credits the referrer when a referred user registers.
// The raw increment is not idempotent, so deliveries are deduped by message id
// before touching the count. The eligibility flip is a guarded database write;
// the new-eligible-participant event comes out of change capture, never from
// here.
func NewReferralContest(store ContestStore, deduper Deduper) Worker {
	const subscription = "user-registered-referral-contest"
	return Worker{
		Topic:        events.TopicUserRegistered,
		Subscription: subscription,
		Handler: func(ctx context.Context, msg events.Message) error {
			var newUser domain.User
			if err := msg.JSON(&newUser); err != nil {
				return err
			}

			added, err := deduper.Add(ctx, subscription, msg.ID)
			if err != nil {
				return err
			}
			if !added {
				log.WithField("messageId", msg.ID).Debug("skipping already processed registration")
				return nil
			}

			if err := creditReferrer(ctx, store, newUser.ID); err != nil {
				if rerr := deduper.Remove(ctx, subscription, msg.ID); rerr != nil {
					log.WithError(rerr).WithField("messageId", msg.ID).Error("dedupe rollback failed")
				}
				return err
			}
			return nil
		},
	}
}

func creditReferrer(ctx context.Context, store ContestStore, newUserID string) error {
	visit, err := store.GetFirstVisitAndReferral(ctx, newUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if visit.Referral == "" {
		return nil
	}

	referrer, err := store.GetUserByID(ctx, visit.Referral)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	contest, err := store.GetOngoingContest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	log.WithFields(log.Fields{
		"userId":    referrer.ID,
		"contestId": contest.ID,
	}).Info("increasing referral count for contest")

	if err := store.IncrementParticipantCount(ctx, contest.ID, referrer.ID); err != nil {
		return err
	}
	participant, err := store.GetParticipant(ctx, contest.ID, referrer.ID)
	if err != nil {
		return err
	}
	if participant.Referrals >= domain.ReferralThreshold && !participant.Eligible {
		return store.SetParticipantEligible(ctx, contest.ID, referrer.ID)
	}
	return nil
}
