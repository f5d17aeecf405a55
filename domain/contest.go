package domain

import "time"

// ReferralThreshold is the number of referrals that makes a participant
// eligible for the ongoing contest.
const ReferralThreshold = 5

// Contest is a time-bounded referral contest.
type Contest struct {
	ID      string    `json:"id"`
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// Participant tracks a single user's referral count within one contest.
// Eligible flips to true exactly once, when Referrals first reaches
// ReferralThreshold, and never reverts.
type Participant struct {
	ContestID string `json:"contestId"`
	UserID    string `json:"userId"`
	Referrals int    `json:"referrals"`
	Eligible  bool   `json:"eligible"`
}
