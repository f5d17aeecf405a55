// Package api is the gateway's HTTP boundary: identity and session
// reconciliation, the boot payload, profile routes and the push dispatcher.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/events"
	"github.com/silvesterwali/daily-gateway/flags"
	"github.com/silvesterwali/daily-gateway/workers"
)

// Storage abstracts the relational store for handlers.
type Storage interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByIDOrHandle(ctx context.Context, ref string) (*domain.User, error)
	UpdateUser(ctx context.Context, id string, u domain.User) error
	IsDuplicateEmail(ctx context.Context, userID, email string) (bool, error)
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	GetFirstVisitAndReferral(ctx context.Context, trackingID string) (*domain.VisitSummary, error)
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
	GetUserProvider(ctx context.Context, userID string) (string, error)
	Ping(ctx context.Context) error
}

// FlagsClient evaluates feature flags for a subject identity.
type FlagsClient interface {
	GetFlagsForUser(ctx context.Context, subject string) (map[string]flags.Flag, error)
}

// AlertsGetter reads cached per-user alert state.
type AlertsGetter interface {
	Get(ctx context.Context, userID string) (domain.Alerts, error)
}

// Deps carries everything Register wires into the routes.
type Deps struct {
	Store         Storage
	Auth          *Auth
	Bus           events.Publisher
	Flags         FlagsClient
	Alerts        AlertsGetter
	Visits        *VisitSender
	Workers       []workers.Worker
	Logger        *log.Logger
	FlagsResetKey string
}

type handlers struct {
	store         Storage
	auth          *Auth
	bus           events.Publisher
	flags         FlagsClient
	alerts        AlertsGetter
	visits        *VisitSender
	logger        *log.Logger
	flagsResetKey string
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, deps Deps) {
	h := &handlers{
		store:         deps.Store,
		auth:          deps.Auth,
		bus:           deps.Bus,
		flags:         deps.Flags,
		alerts:        deps.Alerts,
		visits:        deps.Visits,
		logger:        deps.Logger,
		flagsResetKey: deps.FlagsResetKey,
	}

	tracked := TrackingMiddleware(deps.Auth)

	e.GET("/boot", h.getBoot, tracked)
	e.GET("/users/me", h.getMe, tracked)
	e.PUT("/users/me", h.putMe, tracked)
	e.GET("/users/me/info", h.getMeInfo, tracked)
	e.GET("/users/me/roles", h.getMeRoles, tracked)
	e.POST("/users/logout", h.postLogout, tracked)
	e.GET("/users/:id", h.getUserByID)
	e.POST("/features/reset", h.postFeaturesReset)
	e.GET("/healthz", h.healthz)

	RegisterPush(e, deps.Workers, deps.Logger)
}

func (h *handlers) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
