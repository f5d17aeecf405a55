package api

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Echo context keys for the identities resolved per request.
const (
	ctxUserID     = "gateway.userId"
	ctxTrackingID = "gateway.trackingId"
	ctxSessionID  = "gateway.sessionId"
)

// TrackingMiddleware resolves the request's tracking identity: the
// authenticated user id when a valid access token is present, otherwise the
// tracking cookie, otherwise a freshly generated id. The cookie is rewritten
// whenever the resolved identity differs from what the client sent. Bots get
// no identity at all.
func TrackingMiddleware(auth *Auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isBot(c.Request().UserAgent()) {
				return next(c)
			}

			if userID, err := auth.UserIDFromRequest(c); err == nil {
				c.Set(ctxUserID, userID)
			}

			trackingID := cookieValue(c, trackingCookieKey)
			resolved := trackingID
			if userID, ok := c.Get(ctxUserID).(string); ok {
				resolved = userID
			} else if resolved == "" {
				resolved = uuid.NewString()
			}
			if resolved != trackingID {
				setTrackingCookie(c, resolved)
			}
			c.Set(ctxTrackingID, resolved)
			c.Set(ctxSessionID, cookieValue(c, sessionCookieKey))

			return next(c)
		}
	}
}

func isBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	return strings.Contains(ua, "bot") || strings.Contains(ua, "crawler") || strings.Contains(ua, "spider")
}

func userIDFromContext(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

func trackingIDFromContext(c echo.Context) string {
	id, _ := c.Get(ctxTrackingID).(string)
	return id
}

// ensureSessionID refreshes the short-lived session cookie, minting a new id
// when the browser sent none. The session id buckets consecutive requests and
// is never used for attribution.
func ensureSessionID(c echo.Context) string {
	sessionID, _ := c.Get(ctxSessionID).(string)
	if sessionID == "" {
		sessionID = uuid.NewString()
		c.Set(ctxSessionID, sessionID)
	}
	setSessionCookie(c, sessionID)
	return sessionID
}
