package api

import (
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const accessTokenTTL = 15 * time.Minute

// Auth issues the gateway's short-lived access tokens and validates incoming
// ones. Two validation modes exist: RS256 against an identity provider's JWKS,
// or HS256 against the shared secret the gateway itself signs with.
type Auth struct {
	JWKS     *keyfunc.JWKS
	Audience string
	Issuer   string
	Secret   []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// AccessToken is a freshly issued short-lived credential.
type AccessToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewAuth creates an Auth instance. When secret is non-empty the gateway both
// signs and validates HS256 tokens; otherwise validation goes through the
// provided JWKS.
func NewAuth(jwks *keyfunc.JWKS, secret []byte, audience, issuer string) *Auth {
	a := &Auth{
		JWKS:        jwks,
		Audience:    audience,
		Issuer:      issuer,
		Secret:      secret,
		keyCacheTTL: 15 * time.Minute,
	}
	if len(secret) > 0 {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	} else {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	}
	return a
}

// IssueAccessToken signs a token carrying the user identity, premium state and
// roles.
func (a *Auth) IssueAccessToken(userID string, premium bool, roles []string) (AccessToken, error) {
	if len(a.Secret) == 0 {
		return AccessToken{}, errors.New("token signing requires a shared secret")
	}
	now := time.Now()
	expiresAt := now.Add(accessTokenTTL)
	claims := jwt.MapClaims{
		"sub":     userID,
		"premium": premium,
		"roles":   roles,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}
	if a.Issuer != "" {
		claims["iss"] = a.Issuer
	}
	if a.Audience != "" {
		claims["aud"] = a.Audience
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, ExpiresAt: expiresAt}, nil
}

// UserIDFromRequest extracts the authenticated user id from the Authorization
// header or, failing that, the auth cookie. An absent credential is an error;
// callers decide whether that means anonymous or forbidden.
func (a *Auth) UserIDFromRequest(c echo.Context) (string, error) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		token, err := bearerTokenFromString(h)
		if err != nil {
			return "", err
		}
		return a.UserIDFromBearer(token)
	}
	cookie, err := c.Cookie(authCookieKey)
	if err != nil || cookie.Value == "" {
		return "", errMissingAuthorization
	}
	return a.UserIDFromBearer(readOnlyBytes(cookie.Value))
}

// UserIDFromBearer validates a raw token and returns its subject.
func (a *Auth) UserIDFromBearer(token []byte) (string, error) {
	if len(token) == 0 {
		return "", errBadAuthorization
	}

	tokenStr := readOnlyString(token)
	var parsedToken *jwt.Token
	var err error
	if len(a.Secret) > 0 {
		parsedToken, err = a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return a.Secret, nil
		})
	} else {
		parsedToken, err = a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return a.keyForToken(t)
		})
	}
	if err != nil {
		return "", err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", errors.New("token not valid yet")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return "", errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
