// Package flags evaluates feature flags through an external provider with a
// Redis cache-aside layer in front of it.
package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Flag is a single evaluated feature flag for a subject.
type Flag struct {
	Enabled bool   `json:"enabled"`
	Value   string `json:"value,omitempty"`
}

// Client evaluates flags for a subject identity, checking the cache first and
// falling back to the provider on miss.
type Client struct {
	http    *http.Client
	baseURL string
	envKey  string
	cache   *Cache
}

// NewClient creates a flag client. cache may be nil, which disables caching.
func NewClient(baseURL, envKey string, cache *Cache) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		envKey:  envKey,
		cache:   cache,
	}
}

// GetFlagsForUser returns the evaluated flag set for the subject.
func (c *Client) GetFlagsForUser(ctx context.Context, subject string) (map[string]Flag, error) {
	if c.cache != nil {
		if flags, ok := c.cache.Get(ctx, subject); ok {
			return flags, nil
		}
	}

	flags, err := c.fetch(ctx, subject)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		// Cache write failures degrade to re-evaluation on the next request.
		_ = c.cache.Set(ctx, subject, flags)
	}
	return flags, nil
}

func (c *Client) fetch(ctx context.Context, subject string) (map[string]Flag, error) {
	u := fmt.Sprintf("%s/api/v1/flags?identity=%s", c.baseURL, url.QueryEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Environment-Key", c.envKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flag provider returned %d", resp.StatusCode)
	}

	var flags map[string]Flag
	if err := json.NewDecoder(resp.Body).Decode(&flags); err != nil {
		return nil, err
	}
	return flags, nil
}
