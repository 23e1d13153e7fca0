package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/janisto/storytime-api/internal/permission"
	"github.com/janisto/storytime-api/internal/platform/auth"
	applog "github.com/janisto/storytime-api/internal/platform/logging"
	appmiddleware "github.com/janisto/storytime-api/internal/platform/middleware"
	"github.com/janisto/storytime-api/internal/platform/respond"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
	"github.com/janisto/storytime-api/internal/reminder"
	"github.com/janisto/storytime-api/internal/service/lifecycle"
	profilesvc "github.com/janisto/storytime-api/internal/service/profile"
)

func newTestRouter() chi.Router {
	clock := timeutil.FixedClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	profiles := profilesvc.NewMockStore()
	gate := permission.NewGate(permission.NewMockSource())
	lc := lifecycle.NewService(profiles, gate, reminder.NewScheduler(reminder.NewMockStore(), clock), clock)

	router := chi.NewRouter()
	router.Use(
		appmiddleware.RequestID(),
		chimiddleware.RealIP,
		applog.RequestLogger(),
		respond.Recoverer(),
	)
	api := humachi.New(router, huma.DefaultConfig("RoutesTest", "test"))
	Register(api, Dependencies{
		Verifier:  &auth.MockVerifier{User: auth.TestUser()},
		Profiles:  profiles,
		Lifecycle: lc,
		Gate:      gate,
		Clock:     clock,
	})
	return router
}

func TestRegisterRoutesHealthIsPublic(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "routes-health")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRegisterRoutesRequireAuth(t *testing.T) {
	router := newTestRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/profile"},
		{http.MethodGet, "/profile/auto-update"},
		{http.MethodGet, "/reminders/story-time"},
		{http.MethodGet, "/notifications/permission"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			req := httptest.NewRequest(p.method, p.path, nil)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", resp.Code)
			}
		})
	}
}

func TestRegisterRoutesAuthenticated(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/notifications/permission", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"not_determined"`) {
		t.Errorf("expected not_determined status, got %s", resp.Body.String())
	}
}
