package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/flags"
	"github.com/silvesterwali/daily-gateway/storage"
)

const appHeader = "app"

// Client apps that count as visits.
var visitApps = map[string]bool{
	"extension": true,
	"web":       true,
}

type bootVisit struct {
	SessionID string `json:"sessionId"`
	VisitID   string `json:"visitId"`
}

type bootUser struct {
	domain.User
	Providers  []string   `json:"providers,omitempty"`
	Roles      []string   `json:"roles,omitempty"`
	FirstVisit *time.Time `json:"firstVisit,omitempty"`
	Referrer   string     `json:"referrer,omitempty"`
}

type anonymousUser struct {
	ID         string     `json:"id"`
	FirstVisit *time.Time `json:"firstVisit,omitempty"`
	Referrer   string     `json:"referrer,omitempty"`
}

type bootResponse struct {
	User        any                   `json:"user"`
	Visit       bootVisit             `json:"visit"`
	Flags       map[string]flags.Flag `json:"flags"`
	Alerts      domain.Alerts         `json:"alerts"`
	AccessToken *AccessToken          `json:"accessToken,omitempty"`
}

// getBoot assembles the client's startup state: identity, visit attribution,
// feature flags and alert state. Flags and alerts are best effort; a provider
// or cache failure degrades the payload instead of failing the boot.
func (h *handlers) getBoot(c echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	userID := userIDFromContext(c)
	var issued *AccessToken

	if userID == "" {
		resolved, token, err := h.reconcileRefreshToken(c)
		if errors.Is(err, errForbidden) {
			return c.NoContent(http.StatusForbidden)
		}
		if err != nil {
			return err
		}
		userID = resolved
		issued = token
	}

	trackingID := trackingIDFromContext(c)
	sessionID := ensureSessionID(c)

	var user *domain.User
	if userID != "" {
		u, err := h.store.GetUserByID(ctx, userID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			// Token references a user that no longer exists.
			clearIdentityCookies(c)
			userID = ""
			issued = nil
		} else {
			user = u
		}
	}

	firstVisit, referrer := h.visitAttribution(c, trackingID, user)
	h.recordVisit(c, trackingID)

	resp := bootResponse{
		Visit:  bootVisit{SessionID: sessionID, VisitID: trackingID},
		Alerts: domain.DefaultAlerts,
	}
	if user != nil {
		roles, err := h.store.GetUserRoles(ctx, user.ID)
		if err != nil {
			h.logger.WithField("userId", user.ID).WithError(err).Warn("failed to load roles")
		}
		var providers []string
		if provider, err := h.store.GetUserProvider(ctx, user.ID); err == nil && provider != "" {
			providers = []string{provider}
		}
		resp.User = bootUser{User: *user, Providers: providers, Roles: roles, FirstVisit: firstVisit, Referrer: referrer}
		if alerts, err := h.alerts.Get(ctx, user.ID); err == nil {
			resp.Alerts = alerts
		}
		resp.AccessToken = issued
	} else {
		resp.User = anonymousUser{ID: trackingID, FirstVisit: firstVisit, Referrer: referrer}
	}

	subject := trackingID
	if userID != "" {
		subject = userID
	}
	if f, err := h.flags.GetFlagsForUser(ctx, subject); err != nil {
		h.logger.WithField("subject", subject).WithError(err).Warn("failed to evaluate flags")
	} else {
		resp.Flags = f
	}

	body, err := sonic.Marshal(resp)
	if err != nil {
		return err
	}
	h.bootRequestMetrics(c, start, userID != "")
	return c.JSONBlob(http.StatusOK, body)
}

// reconcileRefreshToken upgrades a refresh credential into a fresh access
// token. A refresh cookie pointing at an unknown token is forbidden outright;
// the client must re-authenticate.
func (h *handlers) reconcileRefreshToken(c echo.Context) (string, *AccessToken, error) {
	refresh := cookieValue(c, refreshCookieKey)
	if refresh == "" {
		return "", nil, nil
	}

	ctx := c.Request().Context()
	rt, err := h.store.GetRefreshToken(ctx, refresh)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, errForbidden
		}
		return "", nil, err
	}

	user, err := h.store.GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, errForbidden
		}
		return "", nil, err
	}
	roles, err := h.store.GetUserRoles(ctx, user.ID)
	if err != nil {
		h.logger.WithField("userId", user.ID).WithError(err).Warn("failed to load roles")
	}

	token, err := h.auth.IssueAccessToken(user.ID, user.Premium, roles)
	if err != nil {
		return "", nil, err
	}
	setAuthCookie(c, token.Token)

	// The authenticated id supersedes whatever the tracking cookie held.
	c.Set(ctxUserID, user.ID)
	if trackingIDFromContext(c) != user.ID {
		setTrackingCookie(c, user.ID)
		c.Set(ctxTrackingID, user.ID)
	}
	return user.ID, &token, nil
}

// visitAttribution reports the first-seen time and referrer for the tracking
// identity. Both are fixed at first observation; an authenticated account that
// predates the recorded visit pulls the first-seen time back to its creation.
func (h *handlers) visitAttribution(c echo.Context, trackingID string, user *domain.User) (*time.Time, string) {
	ctx := c.Request().Context()

	summary, err := h.store.GetFirstVisitAndReferral(ctx, trackingID)
	if err == nil {
		first := summary.FirstVisit
		if user != nil && user.CreatedAt != nil && user.CreatedAt.Before(first) {
			first = *user.CreatedAt
		}
		return &first, summary.Referral
	}
	if !errors.Is(err, storage.ErrNotFound) {
		h.logger.WithField("trackingId", trackingID).WithError(err).Warn("failed to load visit")
		return nil, ""
	}

	// No prior visit: the referral cookie decides attribution, whether or
	// not the request is authenticated.
	referrer := h.resolveReferralCookie(c, trackingID)
	if user != nil && user.CreatedAt != nil {
		return user.CreatedAt, referrer
	}
	now := time.Now()
	return &now, referrer
}

func (h *handlers) resolveReferralCookie(c echo.Context, trackingID string) string {
	ref := cookieValue(c, referralCookieKey)
	if ref == "" || ref == trackingID {
		return ""
	}
	referredBy, err := h.store.GetUserByIDOrHandle(c.Request().Context(), ref)
	if err != nil || referredBy.ID == trackingID {
		return ""
	}
	return referredBy.ID
}

// recordVisit hands the visit write to the background pool. The boot response
// never waits on it.
func (h *handlers) recordVisit(c echo.Context, trackingID string) {
	app := c.Request().Header.Get(appHeader)
	if !visitApps[app] {
		return
	}
	h.visits.TrySend(trackingID, app, cookieValue(c, referralCookieKey), c.RealIP(), time.Now())
}

func (h *handlers) bootRequestMetrics(c echo.Context, start time.Time, authenticated bool) {
	h.logger.WithFields(log.Fields{
		"method":        c.Request().Method,
		"path":          c.Path(),
		"status":        http.StatusOK,
		"durationMs":    time.Since(start).Milliseconds(),
		"authenticated": authenticated,
		"app":           c.Request().Header.Get(appHeader),
	}).Info("boot served")
}
