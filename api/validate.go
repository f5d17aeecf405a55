package api

import (
	"regexp"
	"strings"

	"github.com/silvesterwali/daily-gateway/domain"
)

var (
	handleRegex     = regexp.MustCompile(`^\w{1,15}$`)
	repoHandleRegex = regexp.MustCompile(`^[\w-]{1,39}$`)
)

// profileUpdate is the PUT /users/me body. AcceptedMarketing is a pointer so
// an omitted field keeps the opt-in default instead of silently opting out.
type profileUpdate struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Username          string `json:"username"`
	Bio               string `json:"bio"`
	Company           string `json:"company"`
	Title             string `json:"title"`
	Twitter           string `json:"twitter"`
	Github            string `json:"github"`
	Hashnode          string `json:"hashnode"`
	Portfolio         string `json:"portfolio"`
	AcceptedMarketing *bool  `json:"acceptedMarketing"`
}

func (p profileUpdate) toUser() domain.User {
	accepted := true
	if p.AcceptedMarketing != nil {
		accepted = *p.AcceptedMarketing
	}
	return domain.User{
		Name:              p.Name,
		Email:             p.Email,
		Username:          p.Username,
		Bio:               p.Bio,
		Company:           p.Company,
		Title:             p.Title,
		Twitter:           p.Twitter,
		Github:            p.Github,
		Hashnode:          p.Hashnode,
		Portfolio:         p.Portfolio,
		AcceptedMarketing: accepted,
	}
}

// normalizeProfile trims whitespace and strips the leading @ people paste into
// social handles.
func normalizeProfile(u *domain.User) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	u.Username = strings.TrimPrefix(strings.TrimSpace(u.Username), "@")
	u.Twitter = strings.TrimPrefix(strings.TrimSpace(u.Twitter), "@")
	u.Github = strings.TrimPrefix(strings.TrimSpace(u.Github), "@")
	u.Hashnode = strings.TrimPrefix(strings.TrimSpace(u.Hashnode), "@")
	u.Bio = strings.TrimSpace(u.Bio)
	u.Company = strings.TrimSpace(u.Company)
	u.Title = strings.TrimSpace(u.Title)
}

func validateProfile(u *domain.User) *ValidationError {
	if u.Name == "" || len(u.Name) > 50 {
		return &ValidationError{Field: "name", Reason: "name is required and must be at most 50 characters"}
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return &ValidationError{Field: "email", Reason: "a valid email is required"}
	}
	if u.Username != "" && !handleRegex.MatchString(u.Username) {
		return &ValidationError{Field: "username", Reason: "must be 1-15 word characters"}
	}
	if u.Twitter != "" && !handleRegex.MatchString(u.Twitter) {
		return &ValidationError{Field: "twitter", Reason: "must be 1-15 word characters"}
	}
	if u.Github != "" && !repoHandleRegex.MatchString(u.Github) {
		return &ValidationError{Field: "github", Reason: "must be 1-39 word characters or dashes"}
	}
	if u.Hashnode != "" && !repoHandleRegex.MatchString(u.Hashnode) {
		return &ValidationError{Field: "hashnode", Reason: "must be 1-39 word characters or dashes"}
	}
	if len(u.Bio) > 160 {
		return &ValidationError{Field: "bio", Reason: "must be at most 160 characters"}
	}
	if len(u.Company) > 50 {
		return &ValidationError{Field: "company", Reason: "must be at most 50 characters"}
	}
	if len(u.Title) > 50 {
		return &ValidationError{Field: "title", Reason: "must be at most 50 characters"}
	}
	return nil
}

// mergeProfile applies an update on top of the stored user. Identity and
// server-owned fields never move; confirming the profile is one way.
func mergeProfile(current, update domain.User) domain.User {
	merged := update
	merged.ID = current.ID
	merged.Image = current.Image
	merged.Premium = current.Premium
	merged.Reputation = current.Reputation
	merged.CreatedAt = current.CreatedAt
	merged.InfoConfirmed = true
	return merged
}
