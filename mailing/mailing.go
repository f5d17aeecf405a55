// Package mailing is a thin client for the contact-list provider. Contacts
// are upserted by email, which keeps worker redelivery safe.
package mailing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/silvesterwali/daily-gateway/domain"
)

// ErrFieldTooLong reports a provider-side length limit on a profile field.
// Retrying cannot fix it, so callers usually log and move on.
var ErrFieldTooLong = errors.New("field length exceeds provider limit")

// Client talks to the list provider's REST API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// New creates a mailing client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// ContactIDByEmail resolves the provider contact id, or "" when unknown.
func (c *Client) ContactIDByEmail(ctx context.Context, email string) (string, error) {
	u := fmt.Sprintf("%s/contacts/search?email=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("contact search returned %d", resp.StatusCode)
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.ID, nil
}

// RemoveFromList detaches a contact from a list. Removing an absent contact
// succeeds.
func (c *Client) RemoveFromList(ctx context.Context, listID, contactID string) error {
	u := fmt.Sprintf("%s/lists/%s/contacts/%s", c.baseURL, listID, contactID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remove from list returned %d", resp.StatusCode)
	}
	return nil
}

type contactUpsert struct {
	Email    string   `json:"email"`
	OldEmail string   `json:"oldEmail,omitempty"`
	Name     string   `json:"name,omitempty"`
	Company  string   `json:"company,omitempty"`
	Title    string   `json:"title,omitempty"`
	ListIDs  []string `json:"listIds"`
}

// UpdateContact upserts the contact under its (possibly changed) email and
// sets list membership.
func (c *Client) UpdateContact(ctx context.Context, profile domain.User, oldEmail string, listIDs []string) error {
	payload := contactUpsert{
		Email:    profile.Email,
		Name:     profile.Name,
		Company:  profile.Company,
		Title:    profile.Title,
		ListIDs:  listIDs,
	}
	if oldEmail != profile.Email {
		payload.OldEmail = oldEmail
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/contacts", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(string(body), "length should be less than") {
			return ErrFieldTooLong
		}
		return fmt.Errorf("contact update rejected: %s", body)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("contact update returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.http.Do(req)
}
