package domain

import "time"

// Visit tracks when a tracking identity was seen on a given app.
// FirstVisit and Referral are fixed at the first insert; LastVisit only moves
// forward.
type Visit struct {
	TrackingID string    `json:"trackingId"`
	App        string    `json:"app"`
	FirstVisit time.Time `json:"firstVisit"`
	LastVisit  time.Time `json:"lastVisit"`
	Referral   string    `json:"referral,omitempty"`
}

// VisitSummary is the earliest recorded visit and referral for a tracking
// identity across all apps.
type VisitSummary struct {
	FirstVisit time.Time
	Referral   string
}
