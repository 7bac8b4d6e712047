// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/tasks"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 2 * time.Second

// Source is the batch being served. *session.Session implements it.
type Source interface {
	Snapshot() tasks.Stats
	Entries() []batch.Entry
	Status() string
}

// ============================================================================
// RESPONSES
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Run           string    `json:"run,omitempty"`
	State         string    `json:"state"`
	Parallelism   int       `json:"parallelism"`
	Workers       int       `json:"workers"`
	Executing     int       `json:"executing"`
	Pending       int       `json:"pending"`
	Started       int       `json:"started"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	NotRun        int       `json:"not_run"`
	StopRequested bool      `json:"stop_requested"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	Message       string    `json:"message"`
}

// EntryResponse is one element of GET /entries.
type EntryResponse struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Args     string `json:"args,omitempty"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason,omitempty"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the read-only status endpoint.
type Server struct {
	addr     string
	source   Source
	gatherer prom.Gatherer
	log      logging.Logger

	router *http.ServeMux
	server *http.Server
	ln     net.Listener
}

// New creates a server for source. A nil gatherer serves the default registry.
func New(addr string, source Source, gatherer prom.Gatherer, log logging.Logger) *Server {
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		addr:     addr,
		source:   source,
		gatherer: gatherer,
		log:      log,
		router:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /entries", s.handleEntries)
	s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed handler with its middleware.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.log),
	)(s.router)
}

// Listen binds the address. Serve must be called afterwards.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Serve answers requests until ctx is done, then shuts down gracefully.
// It calls Listen when the caller has not.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.server.Serve(s.ln)
	}()
	s.log.Info("status server listening", logging.F("addr", "http://"+s.Addr()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.source.Snapshot()
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Running: st.State.Active()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.source.Snapshot()
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Run:           st.RunID,
		State:         st.State.String(),
		Parallelism:   st.Parallelism,
		Workers:       st.Workers,
		Executing:     st.Executing,
		Pending:       st.Pending,
		Started:       st.Started,
		Succeeded:     st.Succeeded,
		Failed:        st.Failed,
		NotRun:        st.NotRun,
		StopRequested: st.StopRequested,
		StartedAt:     st.StartedAt,
		FinishedAt:    st.FinishedAt,
		Message:       s.source.Status(),
	})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.source.Entries()
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:       string(e.ID),
			Path:     e.Path,
			Args:     e.Args,
			Status:   e.Status.String(),
			ExitCode: e.ExitCode,
			Reason:   e.Reason,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response failed", logging.F("error", err))
	}
}
