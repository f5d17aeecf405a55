package domain

import "time"

// User is the public profile row as served by the gateway.
type User struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Image             string     `json:"image,omitempty"`
	Username          string     `json:"username,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	Company           string     `json:"company,omitempty"`
	Title             string     `json:"title,omitempty"`
	Twitter           string     `json:"twitter,omitempty"`
	Github            string     `json:"github,omitempty"`
	Hashnode          string     `json:"hashnode,omitempty"`
	Portfolio         string     `json:"portfolio,omitempty"`
	Premium           bool       `json:"premium,omitempty"`
	Reputation        int        `json:"reputation"`
	AcceptedMarketing bool       `json:"acceptedMarketing"`
	InfoConfirmed     bool       `json:"infoConfirmed"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
}

// PublicProfile strips fields that must not leak to other users.
func (u User) PublicProfile() User {
	return User{
		ID:         u.ID,
		Name:       u.Name,
		Image:      u.Image,
		Username:   u.Username,
		Bio:        u.Bio,
		Twitter:    u.Twitter,
		Github:     u.Github,
		Hashnode:   u.Hashnode,
		Portfolio:  u.Portfolio,
		Premium:    u.Premium,
		Reputation: u.Reputation,
		CreatedAt:  u.CreatedAt,
	}
}

// RefreshToken is a long-lived credential stored server side.
type RefreshToken struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}
