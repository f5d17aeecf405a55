package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/silvesterwali/daily-gateway/domain"
)

// GetOngoingContest returns the referral contest running right now, or
// ErrNotFound when none is scheduled.
func (s *Store) GetOngoingContest(ctx context.Context) (*domain.Contest, error) {
	const q = `
SELECT id, "startAt", "endAt"
FROM referral_contests
WHERE "startAt" <= now() AND "endAt" > now()
ORDER BY "startAt" DESC
LIMIT 1`
	var c domain.Contest
	err := s.db.QueryRowContext(ctx, q).Scan(&c.ID, &c.StartAt, &c.EndAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// IncrementParticipantCount adds one referral to the participant, creating the
// row on first referral. The increment is a single row-level atomic statement
// so concurrent referrals never lose a count.
func (s *Store) IncrementParticipantCount(ctx context.Context, contestID, userID string) error {
	const q = `
INSERT INTO referral_participants ("contestId", "userId", referrals, eligible)
VALUES ($1, $2, 1, false)
ON CONFLICT ("contestId", "userId") DO UPDATE
SET referrals = referral_participants.referrals + 1`
	_, err := s.db.ExecContext(ctx, q, contestID, userID)
	return err
}

// GetParticipant reads the participant row for a contest.
func (s *Store) GetParticipant(ctx context.Context, contestID, userID string) (*domain.Participant, error) {
	const q = `
SELECT "contestId", "userId", referrals, eligible
FROM referral_participants
WHERE "contestId" = $1 AND "userId" = $2`
	var p domain.Participant
	err := s.db.QueryRowContext(ctx, q, contestID, userID).Scan(&p.ContestID, &p.UserID, &p.Referrals, &p.Eligible)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetParticipantEligible flips the participant to eligible. The WHERE guard
// makes the flip happen at most once; the resulting row change re-enters the
// pipeline through change capture, which publishes new-eligible-participant.
func (s *Store) SetParticipantEligible(ctx context.Context, contestID, userID string) error {
	const q = `
UPDATE referral_participants
SET eligible = true
WHERE "contestId" = $1 AND "userId" = $2 AND eligible = false`
	_, err := s.db.ExecContext(ctx, q, contestID, userID)
	return err
}
