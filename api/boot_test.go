package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/silvesterwali/daily-gateway/domain"
)

type bootBody struct {
	User struct {
		ID         string     `json:"id"`
		Name       string     `json:"name"`
		Email      string     `json:"email"`
		FirstVisit *time.Time `json:"firstVisit"`
		Referrer   string     `json:"referrer"`
	} `json:"user"`
	Visit struct {
		SessionID string `json:"sessionId"`
		VisitID   string `json:"visitId"`
	} `json:"visit"`
	Flags map[string]struct {
		Enabled bool `json:"enabled"`
	} `json:"flags"`
	Alerts      domain.Alerts `json:"alerts"`
	AccessToken *AccessToken  `json:"accessToken"`
}

func decodeBoot(t *testing.T, rec *httptest.ResponseRecorder) bootBody {
	t.Helper()
	var body bootBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode boot body: %v", err)
	}
	return body
}

func bootRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/boot", nil)
	req.Host = "api.daily.dev"
	return req
}

func TestBootAnonymousMintsIdentity(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()

	rec := env.do(bootRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBoot(t, rec)
	if body.User.ID == "" {
		t.Fatal("expected a generated tracking id")
	}
	if body.User.FirstVisit == nil {
		t.Fatal("expected a fresh first visit")
	}
	if body.Visit.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if !body.Flags["signup"].Enabled {
		t.Fatal("expected flags in the payload")
	}
	if !body.Alerts.Filter || !body.Alerts.Rank {
		t.Fatalf("alerts = %+v, want defaults", body.Alerts)
	}

	tracking := responseCookie(rec, "da2")
	if tracking == nil || tracking.Value != body.User.ID {
		t.Fatal("tracking cookie should carry the resolved identity")
	}
	if responseCookie(rec, "das") == nil {
		t.Fatal("session cookie should be set")
	}
}

func TestBootKeepsExistingTrackingCookie(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da2", Value: "t-1"})
	rec := env.do(req)

	body := decodeBoot(t, rec)
	if body.User.ID != "t-1" {
		t.Fatalf("user id = %q, want t-1", body.User.ID)
	}
	if c := responseCookie(rec, "da2"); c != nil {
		t.Fatalf("tracking cookie rewritten to %q without an identity change", c.Value)
	}
}

func TestBootReferralAttribution(t *testing.T) {
	env := newTestEnv(nil)
	env.store.addUser(domain.User{ID: "u-ref", Username: "referrer"})

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da2", Value: "t-1"})
	req.AddCookie(&http.Cookie{Name: "da4", Value: "referrer"})
	req.Header.Set("app", "web")
	rec := env.do(req)

	body := decodeBoot(t, rec)
	if body.User.Referrer != "u-ref" {
		t.Fatalf("referrer = %q, want u-ref", body.User.Referrer)
	}
	first := body.User.FirstVisit
	if first == nil {
		t.Fatal("expected a fresh first visit")
	}

	// The visit write is detached; drain the pool before asserting.
	env.visits.Close()
	if len(env.store.upserts) != 1 {
		t.Fatalf("visit upserts = %d, want 1", len(env.store.upserts))
	}
	if got := env.store.upserts[0]; got.trackingID != "t-1" || got.app != "web" || got.referral != "u-ref" {
		t.Fatalf("unexpected visit record %+v", got)
	}

	// A later boot reports the original attribution unchanged.
	req2 := bootRequest()
	req2.AddCookie(&http.Cookie{Name: "da2", Value: "t-1"})
	rec2 := env.do(req2)
	body2 := decodeBoot(t, rec2)
	if body2.User.Referrer != "u-ref" {
		t.Fatalf("second boot referrer = %q, want u-ref", body2.User.Referrer)
	}
	if !body2.User.FirstVisit.Equal(env.store.visits["t-1"].FirstVisit) {
		t.Fatal("first visit must stay fixed at first observation")
	}
}

func TestBootIgnoresSelfReferral(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()
	env.store.addUser(domain.User{ID: "t-1", Username: "self"})

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da2", Value: "t-1"})
	req.AddCookie(&http.Cookie{Name: "da4", Value: "self"})
	rec := env.do(req)

	if body := decodeBoot(t, rec); body.User.Referrer != "" {
		t.Fatalf("referrer = %q, want empty for self referral", body.User.Referrer)
	}
}

func TestBootUnknownRefreshTokenForbidden(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da5", Value: "nope"})
	rec := env.do(req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestBootRefreshTokenIssuesAccessToken(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()

	created := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	env.store.addUser(domain.User{ID: "u-1", Name: "Ada", Email: "ada@acme.org", Premium: true, CreatedAt: &created})
	env.store.refresh["rt-1"] = "u-1"
	env.store.roles["u-1"] = []string{"moderator"}

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da5", Value: "rt-1"})
	rec := env.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBoot(t, rec)
	if body.User.ID != "u-1" {
		t.Fatalf("user id = %q, want u-1", body.User.ID)
	}
	if body.AccessToken == nil || body.AccessToken.Token == "" {
		t.Fatal("expected a freshly issued access token")
	}

	auth := responseCookie(rec, "da3")
	if auth == nil || auth.Value != body.AccessToken.Token {
		t.Fatal("auth cookie should carry the issued token")
	}
	tracking := responseCookie(rec, "da2")
	if tracking == nil || tracking.Value != "u-1" {
		t.Fatal("tracking cookie should adopt the authenticated id")
	}

	sub, err := env.auth.UserIDFromBearer([]byte(body.AccessToken.Token))
	if err != nil || sub != "u-1" {
		t.Fatalf("issued token validates to (%q, %v), want u-1", sub, err)
	}
}

func TestBootAuthenticatedResolvesReferralCookie(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()

	created := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	env.store.addUser(domain.User{ID: "u-1", Name: "Ada", Email: "ada@acme.org", CreatedAt: &created})
	env.store.addUser(domain.User{ID: "u-ref", Username: "referrer"})
	env.store.refresh["rt-1"] = "u-1"

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da5", Value: "rt-1"})
	req.AddCookie(&http.Cookie{Name: "da4", Value: "referrer"})
	rec := env.do(req)

	body := decodeBoot(t, rec)
	if body.User.Referrer != "u-ref" {
		t.Fatalf("referrer = %q, want u-ref despite authentication", body.User.Referrer)
	}
	if body.User.FirstVisit == nil || !body.User.FirstVisit.Equal(created) {
		t.Fatalf("first visit = %v, want account creation %v", body.User.FirstVisit, created)
	}
}

func TestBootFirstVisitNotAfterAccountCreation(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()

	created := time.Now().Add(-30 * 24 * time.Hour).UTC().Truncate(time.Second)
	env.store.addUser(domain.User{ID: "u-1", Name: "Ada", Email: "ada@acme.org", CreatedAt: &created})
	env.store.refresh["rt-1"] = "u-1"
	env.store.visits["u-1"] = domain.VisitSummary{FirstVisit: time.Now().Add(-time.Hour)}

	req := bootRequest()
	req.AddCookie(&http.Cookie{Name: "da5", Value: "rt-1"})
	rec := env.do(req)

	body := decodeBoot(t, rec)
	if body.User.FirstVisit == nil || !body.User.FirstVisit.Equal(created) {
		t.Fatalf("first visit = %v, want account creation %v", body.User.FirstVisit, created)
	}
}

func TestBootSurvivesFlagProviderFailure(t *testing.T) {
	env := newTestEnv(nil)
	defer env.visits.Close()
	env.flags.err = errTest
	env.flags.flags = nil

	rec := env.do(bootRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite flag failure", rec.Code)
	}
	if body := decodeBoot(t, rec); len(body.Flags) != 0 {
		t.Fatal("expected empty flags when the provider fails")
	}
}

func TestBootSkipsVisitForUnknownApp(t *testing.T) {
	env := newTestEnv(nil)

	req := bootRequest()
	req.Header.Set("app", "toaster")
	env.do(req)

	env.visits.Close()
	if len(env.store.upserts) != 0 {
		t.Fatalf("visit upserts = %d, want 0 for unknown app", len(env.store.upserts))
	}
}
