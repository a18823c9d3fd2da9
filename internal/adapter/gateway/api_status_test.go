package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"floatshelf/internal/domain"
)

func apiTestDeps(t *testing.T) HandlerDeps {
	t.Helper()
	deps := newHandlerDeps(t)

	// Pre-create a shelf and some buttons.
	ctx := context.Background()
	deps.Shelves.CreateShelf(ctx, "Tools")
	addTestButton(t, deps, "Tools", "Freeze")
	addTestButton(t, deps, "Tools", "Mirror")
	addTestButton(t, deps, "Default", "Reset")

	return deps
}

func TestStatusHandler_Success(t *testing.T) {
	deps := apiTestDeps(t)
	metrics := &Metrics{}
	metrics.RunsTotal.Store(42)
	metrics.RunFailuresTotal.Store(3)

	handler := statusHandler(deps, time.Now().Add(-60*time.Second), metrics, []string{"js", "lua"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.App.Name != "floatshelf" {
		t.Errorf("App.Name = %q", resp.App.Name)
	}
	if resp.App.Version != "1.0.0-beta" {
		t.Errorf("App.Version = %q", resp.App.Version)
	}
	if resp.App.UptimeSeconds < 59 {
		t.Errorf("UptimeSeconds = %d, want >= 59", resp.App.UptimeSeconds)
	}
	if resp.Shelves.Count != 2 {
		t.Errorf("Shelves.Count = %d, want 2", resp.Shelves.Count)
	}
	if resp.Shelves.Buttons != 3 {
		t.Errorf("Shelves.Buttons = %d, want 3", resp.Shelves.Buttons)
	}
	if resp.Shelves.Default != "Default" {
		t.Errorf("Shelves.Default = %q", resp.Shelves.Default)
	}
	if resp.Shelves.Current != "Tools" {
		t.Errorf("Shelves.Current = %q, want Tools", resp.Shelves.Current)
	}
	if resp.Window.Open {
		t.Error("Window.Open = true, want false")
	}
	if resp.Runs.Total != 42 {
		t.Errorf("Runs.Total = %d, want 42", resp.Runs.Total)
	}
	if resp.Runs.Failed != 3 {
		t.Errorf("Runs.Failed = %d, want 3", resp.Runs.Failed)
	}
	if len(resp.Runners) != 2 {
		t.Errorf("Runners = %v, want 2 entries", resp.Runners)
	}
}

func TestStatusHandler_MethodNotAllowed(t *testing.T) {
	deps := apiTestDeps(t)
	handler := statusHandler(deps, time.Now(), &Metrics{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestMetricsHandler_PrometheusFormat(t *testing.T) {
	deps := apiTestDeps(t)
	metrics := &Metrics{}
	metrics.RunsTotal.Store(10)
	metrics.RunFailuresTotal.Store(2)
	metrics.EventsTotal.Store(25)

	handler := metricsHandler(deps, time.Now().Add(-120*time.Second), metrics)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	ct := w.Header().Get("Content-Type")
	if ct != "text/plain; version=0.0.4; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"floatshelf_shelves 2",
		"floatshelf_buttons 3",
		"floatshelf_button_runs_total 10",
		"floatshelf_button_run_failures_total 2",
		"floatshelf_events_total 25",
		"floatshelf_window_open 0",
		"floatshelf_window_columns 1",
		"go_goroutines",
		"go_memstats_alloc_bytes",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %q", metric)
		}
	}
}

func TestMetricsHandler_MethodNotAllowed(t *testing.T) {
	deps := apiTestDeps(t)
	handler := metricsHandler(deps, time.Now(), &Metrics{})

	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestRESTAuthMiddleware(t *testing.T) {
	deps := apiTestDeps(t)
	auth := &staticAuth{token: "test-token"}

	srv := NewServer(deps.Bus, auth, ":0", deps.Logger)
	RegisterRESTHandlers(srv, deps, []string{"js"})

	if len(srv.httpRoutes) != 2 {
		t.Fatalf("expected 2 HTTP routes, got %d", len(srv.httpRoutes))
	}

	// Test auth rejection (no token).
	for _, route := range srv.httpRoutes {
		req := httptest.NewRequest(http.MethodGet, route.pattern, nil)
		w := httptest.NewRecorder()
		route.handler(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("route %s without token: status = %d, want 401", route.pattern, w.Code)
		}
	}

	// Test auth success with Bearer header.
	for _, route := range srv.httpRoutes {
		req := httptest.NewRequest(http.MethodGet, route.pattern, nil)
		req.Header.Set("Authorization", "Bearer test-token")
		w := httptest.NewRecorder()
		route.handler(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("route %s with valid token: status = %d, want 200", route.pattern, w.Code)
		}
	}

	// Test auth success with query param.
	for _, route := range srv.httpRoutes {
		req := httptest.NewRequest(http.MethodGet, route.pattern+"?token=test-token", nil)
		w := httptest.NewRecorder()
		route.handler(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("route %s with query token: status = %d, want 200", route.pattern, w.Code)
		}
	}
}

func TestRunMetricsFromBus(t *testing.T) {
	deps := apiTestDeps(t)
	auth := &staticAuth{token: "test-token"}

	srv := NewServer(deps.Bus, auth, ":0", deps.Logger)
	metrics := RegisterRESTHandlers(srv, deps, nil)

	okPayload, _ := json.Marshal(map[string]any{"ok": true})
	failPayload, _ := json.Marshal(map[string]any{"ok": false})
	deps.Bus.Publish(context.Background(), domain.Event{Type: domain.EventButtonRun, Payload: okPayload})
	deps.Bus.Publish(context.Background(), domain.Event{Type: domain.EventButtonRun, Payload: failPayload})

	if got := metrics.RunsTotal.Load(); got != 2 {
		t.Errorf("RunsTotal = %d, want 2", got)
	}
	if got := metrics.RunFailuresTotal.Load(); got != 1 {
		t.Errorf("RunFailuresTotal = %d, want 1", got)
	}
}

type staticAuth struct {
	token string
}

func (a *staticAuth) Authenticate(token string) (*ClientInfo, error) {
	if token == a.token {
		return &ClientInfo{Name: "test"}, nil
	}
	return nil, domain.ErrGatewayAuthFailed
}
