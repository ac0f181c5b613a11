package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garotm/RunOn/internal/auth"
	"github.com/garotm/RunOn/internal/handlers"
	"github.com/garotm/RunOn/internal/metrics"
	"github.com/garotm/RunOn/internal/models"
	"github.com/garotm/RunOn/internal/storage"
)

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, string) []models.Event {
	return []models.Event{}
}

type stubPublisher struct{}

func (stubPublisher) Publish(context.Context, string, interface{}) error { return nil }

func newTestRouter(t *testing.T, limit int) (http.Handler, *auth.SessionManager, *metrics.Metrics) {
	t.Helper()
	store := storage.NewMemoryStorage()
	sessions := auth.NewSessionManager("test-secret", time.Hour)
	m := metrics.New()

	h := handlers.NewHandler(handlers.Options{
		Search:    stubSearcher{},
		Sessions:  sessions,
		Users:     store,
		Ledger:    store,
		Publisher: stubPublisher{},
		Checks:    map[string]handlers.HealthChecker{"storage": store},
	})
	return setupRouter(h, sessions, auth.NewRateLimiter(limit, time.Minute), m), sessions, m
}

func TestRouter_Routes(t *testing.T) {
	router, sessions, _ := newTestRouter(t, 100)
	token, _ := sessions.Issue("ghost", "ghost@example.com", "Ghost")

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"api health", http.MethodGet, "/api/health", "", http.StatusOK},
		{"discover", http.MethodGet, "/events/discover?query=5k", "", http.StatusOK},
		{"discover without query", http.MethodGet, "/events/discover", "", http.StatusBadRequest},
		{"profile without session", http.MethodGet, "/user/profile", "", http.StatusUnauthorized},
		{"profile with bad session", http.MethodGet, "/user/profile", "Bearer nope", http.StatusUnauthorized},
		{"profile of unknown user", http.MethodGet, "/user/profile", "Bearer " + token, http.StatusNotFound},
		{"export without session", http.MethodGet, "/calendar/export.ics", "", http.StatusUnauthorized},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	router, _, _ := newTestRouter(t, 2)

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/discover?query=5k", nil))
		if w.Code != want {
			t.Fatalf("request %d status = %d, want %d", i+1, w.Code, want)
		}
	}

	// health checks are not throttled
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _, _ := newTestRouter(t, 100)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/discover?query=5k", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `runon_http_requests_total{method="GET",route="/events/discover",status="200"} 1`) {
		t.Errorf("request not recorded:\n%s", body)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":500`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
