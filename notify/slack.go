// Package notify posts operational announcements to a Slack-compatible
// incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/silvesterwali/daily-gateway/domain"
)

// SlackWebhook posts messages to one incoming webhook URL.
type SlackWebhook struct {
	http       *http.Client
	webhookURL string
}

// NewSlackWebhook creates a webhook notifier.
func NewSlackWebhook(webhookURL string) *SlackWebhook {
	return &SlackWebhook{
		http:       &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

// NotifyNewUser announces a registration.
func (s *SlackWebhook) NotifyNewUser(ctx context.Context, user domain.User) error {
	name := user.Name
	if name == "" {
		name = user.ID
	}
	return s.post(ctx, fmt.Sprintf("New user joined: %s", name))
}

// NotifyEligibleParticipant announces a referral contest milestone.
func (s *SlackWebhook) NotifyEligibleParticipant(ctx context.Context, p domain.Participant) error {
	return s.post(ctx, fmt.Sprintf("User %s reached %d referrals and is now eligible in contest %s", p.UserID, p.Referrals, p.ContestID))
}

func (s *SlackWebhook) post(ctx context.Context, text string) error {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
