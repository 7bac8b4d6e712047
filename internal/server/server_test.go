// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/tasks"
)

type fakeSource struct {
	stats   tasks.Stats
	entries []batch.Entry
	status  string
}

func (f *fakeSource) Snapshot() tasks.Stats  { return f.stats }
func (f *fakeSource) Entries() []batch.Entry { return f.entries }
func (f *fakeSource) Status() string         { return f.status }

func newTestServer() (*Server, *fakeSource, *prom.Registry) {
	src := &fakeSource{
		stats: tasks.Stats{RunID: "run-1", State: tasks.StateRunning, Parallelism: 2, Executing: 1, Pending: 3},
		entries: []batch.Entry{
			{ID: "a", Path: "/jobs/a.sh", Status: batch.StatusDone, ExitCode: 0},
			{ID: "b", Path: "/jobs/b.sh", Args: "-v", Status: batch.StatusFailed, ExitCode: -1, Reason: "LaunchError: boom"},
		},
		status: "Running: 1/2, Queue: 3",
	}
	reg := prom.NewRegistry()
	return New("127.0.0.1:0", src, reg, nil), src, reg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, s.Handler(), "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || !resp.Running {
		t.Errorf("health = %+v", resp)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestHandleStatus(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, s.Handler(), "/status")

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Run != "run-1" || resp.State != "Running" || resp.Pending != 3 || resp.Executing != 1 {
		t.Errorf("status = %+v", resp)
	}
	if resp.Message != "Running: 1/2, Queue: 3" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestHandleEntries(t *testing.T) {
	s, _, _ := newTestServer()
	rec := get(t, s.Handler(), "/entries")

	var resp []EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp))
	}
	if resp[1].Status != "failed" || resp[1].Reason != "LaunchError: boom" || resp[1].Args != "-v" {
		t.Errorf("entry = %+v", resp[1])
	}
}

func TestHandleMetrics(t *testing.T) {
	s, _, reg := newTestServer()
	c := prom.NewCounter(prom.CounterOpts{Name: "batchrun_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := get(t, s.Handler(), "/metrics")
	if !strings.Contains(rec.Body.String(), "batchrun_test_total 1") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", rec.Code)
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestRecoveryMiddleware(t *testing.T) {
	s, _, _ := newTestServer()
	h := RecoveryMiddleware(s.log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := get(t, h, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	get(t, h, "/")
	if strings.Join(order, ",") != "a,b,handler" {
		t.Errorf("order = %v", order)
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestServe_ListensAndShutsDown(t *testing.T) {
	s, _, _ := newTestServer()
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("body = %s", body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
