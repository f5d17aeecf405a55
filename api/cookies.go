package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Client-side token names. All cookies are scoped to the registrable parent
// domain so subdomains share identity.
const (
	trackingCookieKey = "da2"
	sessionCookieKey  = "das"
	authCookieKey     = "da3"
	referralCookieKey = "da4"
	refreshCookieKey  = "da5"
)

const (
	trackingCookieTTL = 10 * 365 * 24 * time.Hour
	sessionCookieTTL  = 30 * time.Minute
)

// parentDomain reduces a request host to its registrable parent domain.
func parentDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	parts := strings.Split(host, ".")
	for len(parts) > 2 {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

func setCookie(c echo.Context, name, value string, maxAge time.Duration, httpOnly bool) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   parentDomain(c.Request().Host),
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	c.SetCookie(cookie)
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setTrackingCookie(c echo.Context, id string) {
	setCookie(c, trackingCookieKey, id, trackingCookieTTL, false)
}

func setSessionCookie(c echo.Context, id string) {
	setCookie(c, sessionCookieKey, id, sessionCookieTTL, false)
}

func setAuthCookie(c echo.Context, token string) {
	setCookie(c, authCookieKey, token, accessTokenTTL, true)
}

// clearIdentityCookies drops every client-side token on logout.
func clearIdentityCookies(c echo.Context) {
	setCookie(c, trackingCookieKey, "", 0, false)
	setCookie(c, authCookieKey, "", 0, true)
	setCookie(c, refreshCookieKey, "", 0, true)
	setCookie(c, referralCookieKey, "", 0, true)
}
