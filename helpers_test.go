package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gitea.kood.tech/petrkubec/vibetribe/backend/cache/memory"
	"gitea.kood.tech/petrkubec/vibetribe/backend/events"
	"gitea.kood.tech/petrkubec/vibetribe/backend/match"
	"gitea.kood.tech/petrkubec/vibetribe/backend/store"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-testing")

var testOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signToken(t *testing.T, userID any) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func loc(lat, lon float64) *match.Location { return &match.Location{Lat: lat, Lon: lon} }

// scenarioProfiles is the worked example: only "a" survives the default
// scenario filters for "me".
func scenarioProfiles() []match.Profile {
	return []match.Profile{
		{UserID: "me", Name: "Me", Tags: []string{"Chill", "Creative"}, Age: 28, Location: loc(40.0, -73.0)},
		{UserID: "a", Name: "Alex", Tags: []string{"Chill"}, Age: 30, Location: loc(40.3, -73.1)},
		{UserID: "b", Name: "Blake", Tags: []string{"Energetic"}, Age: 25, Location: loc(40.0, -73.0)},
		{UserID: "c", Name: "Casey", Tags: []string{"Creative"}, Age: 45},
		{UserID: "d", Name: "Dana", Tags: []string{"Chill"}, Age: 22, IsDeactivated: true},
	}
}

type appOption func(*App)

func withStore(s match.ProfileStore) appOption {
	return func(a *App) {
		a.store = s
		a.matcher = match.NewEngine(s, match.WithLogger(a.log))
	}
}

func withMatchCache() appOption {
	return func(a *App) {
		cached := match.NewCachedMatcher(a.matcher, memory.New(64, time.Minute), a.namespace, a.log)
		a.matcher = cached
		a.cache = cached
	}
}

func withPublisher(p events.Publisher) appOption {
	return func(a *App) { a.events = p }
}

// newTestApp builds an App over an in-memory store seeded with profiles.
func newTestApp(t *testing.T, profiles []match.Profile, opts ...appOption) *App {
	t.Helper()
	log := discardLogger()
	mem := store.NewMemory(profiles...)
	app := &App{
		namespace: "test",
		jwtSecret: testSecret,
		defaults:  match.DefaultFilters(),
		store:     mem,
		matcher:   match.NewEngine(mem, match.WithLogger(log)),
		hub:       newHub(),
		metrics:   NewMetrics(),
		log:       log,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// do sends one request through the full router as userID ("" for anonymous).
func do(t *testing.T, app *App, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	newRouter(app, testOrigins).ServeHTTP(w, req)
	return w
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// brokenStore fails every call as an unreachable database would.
type brokenStore struct{}

func (brokenStore) FindProfilesByAnyTag(context.Context, []string) ([]match.Profile, error) {
	return nil, errConnRefused
}
func (brokenStore) GetProfile(context.Context, string) (*match.Profile, error) {
	return nil, errConnRefused
}
func (brokenStore) GetProfiles(context.Context, []string) ([]match.Profile, error) {
	return nil, errConnRefused
}
func (brokenStore) SaveProfile(context.Context, string, match.ProfileUpdate) (*match.Profile, error) {
	return nil, errConnRefused
}
func (brokenStore) SaveFilters(context.Context, string, match.Filters) error { return errConnRefused }
func (brokenStore) LoadFilters(context.Context, string) (*match.Filters, error) {
	return nil, errConnRefused
}

// fakePublisher records published events.
type fakePublisher struct {
	enabled   bool
	err       error
	published []events.ProfileEvent
}

func (p *fakePublisher) PublishProfileEvent(_ context.Context, ev events.ProfileEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ev)
	return nil
}
func (p *fakePublisher) Enabled() bool { return p.enabled }
func (p *fakePublisher) Close() error  { return nil }

// countingInvalidator counts Invalidate calls.
type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}
