package domain

// UserUpdated is the payload of a user-updated event: the row image before the
// change plus the re-read profile after it.
type UserUpdated struct {
	User       User `json:"user"`
	NewProfile User `json:"newProfile"`
}

// Alerts is the per-user alert state fanned out on alerts-updated events and
// cached for the boot payload.
type Alerts struct {
	UserID    string `json:"userId,omitempty"`
	Filter    bool   `json:"filter"`
	Rank      bool   `json:"rank"`
	Changelog bool   `json:"changelog"`
}

// DefaultAlerts is returned when no alert state was ever cached for a user.
var DefaultAlerts = Alerts{Filter: true, Rank: true}
