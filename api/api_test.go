package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/flags"
	"github.com/silvesterwali/daily-gateway/storage"
	"github.com/silvesterwali/daily-gateway/workers"
)

var errTest = errors.New("boom")

type visitRecord struct {
	trackingID string
	app        string
	referral   string
	ip         string
}

type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	handles   map[string]string
	refresh   map[string]string
	visits    map[string]domain.VisitSummary
	roles     map[string][]string
	dupEmail  bool
	updated   []domain.User
	upserts   []visitRecord
	upsertErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]*domain.User{},
		handles: map[string]string{},
		refresh: map[string]string{},
		visits:  map[string]domain.VisitSummary{},
		roles:   map[string][]string{},
	}
}

func (f *fakeStore) addUser(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := u
	f.users[u.ID] = &copied
	if u.Username != "" {
		f.handles[u.Username] = u.ID
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetUserByIDOrHandle(ctx context.Context, ref string) (*domain.User, error) {
	f.mu.Lock()
	id, ok := f.handles[ref]
	f.mu.Unlock()
	if ok {
		return f.GetUserByID(ctx, id)
	}
	return f.GetUserByID(ctx, ref)
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	u.ID = id
	copied := u
	f.users[id] = &copied
	f.updated = append(f.updated, u)
	return nil
}

func (f *fakeStore) IsDuplicateEmail(context.Context, string, string) (bool, error) {
	return f.dupEmail, nil
}

func (f *fakeStore) GetRefreshToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.RefreshToken{Token: token, UserID: userID}, nil
}

func (f *fakeStore) GetFirstVisitAndReferral(_ context.Context, trackingID string) (*domain.VisitSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[trackingID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (f *fakeStore) UpsertVisit(_ context.Context, trackingID, app string, now time.Time, referral, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, visitRecord{trackingID: trackingID, app: app, referral: referral, ip: ip})
	if _, ok := f.visits[trackingID]; !ok {
		f.visits[trackingID] = domain.VisitSummary{FirstVisit: now, Referral: referral}
	}
	return nil
}

func (f *fakeStore) GetUserRoles(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[userID], nil
}

func (f *fakeStore) GetUserProvider(context.Context, string) (string, error) {
	return "github", nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeFlags struct {
	calls int
	flags map[string]flags.Flag
	err   error
}

func (f *fakeFlags) GetFlagsForUser(context.Context, string) (map[string]flags.Flag, error) {
	f.calls++
	return f.flags, f.err
}

type fakeAlerts struct {
	alerts map[string]domain.Alerts
}

func (f *fakeAlerts) Get(_ context.Context, userID string) (domain.Alerts, error) {
	if a, ok := f.alerts[userID]; ok {
		return a, nil
	}
	return domain.DefaultAlerts, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	topic       string
	orderingKey string
}

func (f *fakeBus) Publish(_ context.Context, topic string, _ any, orderingKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedEvent{topic: topic, orderingKey: orderingKey})
	return nil
}

type testEnv struct {
	echo   *echo.Echo
	store  *fakeStore
	bus    *fakeBus
	flags  *fakeFlags
	auth   *Auth
	visits *VisitSender
}

func newTestEnv(ws []workers.Worker) *testEnv {
	logger := log.New()
	logger.SetOutput(io.Discard)

	store := newFakeStore()
	bus := &fakeBus{}
	flagsClient := &fakeFlags{flags: map[string]flags.Flag{"signup": {Enabled: true}}}
	auth := NewAuth(nil, []byte("test-secret"), "gateway-test", "gateway-test")
	visits := NewVisitSender(store, logger, 1, 8)

	e := echo.New()
	Register(e, Deps{
		Store:         store,
		Auth:          auth,
		Bus:           bus,
		Flags:         flagsClient,
		Alerts:        &fakeAlerts{alerts: map[string]domain.Alerts{}},
		Visits:        visits,
		Workers:       ws,
		Logger:        logger,
		FlagsResetKey: "reset-key",
	})

	return &testEnv{echo: e, store: store, bus: bus, flags: flagsClient, auth: auth, visits: visits}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

// responseCookie returns the last Set-Cookie for name; a handler may override
// what the middleware wrote earlier in the same response.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}
