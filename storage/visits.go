package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/silvesterwali/daily-gateway/domain"
)

// GetFirstVisitAndReferral returns the earliest recorded visit for a tracking
// identity across all apps, with the referral captured at that time.
func (s *Store) GetFirstVisitAndReferral(ctx context.Context, trackingID string) (*domain.VisitSummary, error) {
	const q = `
SELECT "firstVisit", COALESCE(referral, '')
FROM visits
WHERE "userId" = $1
ORDER BY "firstVisit" ASC
LIMIT 1`
	var v domain.VisitSummary
	err := s.db.QueryRowContext(ctx, q, trackingID).Scan(&v.FirstVisit, &v.Referral)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// UpsertVisit records a visit for (tracking identity, app). The first insert
// fixes firstVisit and referral permanently; later calls only move lastVisit
// forward.
func (s *Store) UpsertVisit(ctx context.Context, trackingID, app string, now time.Time, referral, ip string) error {
	const q = `
INSERT INTO visits ("userId", app, "firstVisit", "lastVisit", referral, ip)
VALUES ($1, $2, $3, $3, NULLIF($4, ''), NULLIF($5, ''))
ON CONFLICT ("userId", app) DO UPDATE
SET "lastVisit" = GREATEST(visits."lastVisit", EXCLUDED."lastVisit"),
	ip = COALESCE(EXCLUDED.ip, visits.ip)`
	_, err := s.db.ExecContext(ctx, q, trackingID, app, now.UTC(), referral, ip)
	return err
}
