// Package server provides the webhook receiver that starts release runs
// when a matching tag is pushed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/trigger"
	"github.com/jonathan/boot-release/internal/types"
)

// shutdownTimeout bounds how long Start waits for in-flight requests and
// the in-flight run after a stop signal
const shutdownTimeout = 30 * time.Second

// Runner executes one release run. *pipeline.Controller satisfies it.
type Runner interface {
	RunWithID(ctx context.Context, runID uuid.UUID, event types.TriggerEvent) (*types.RunSummary, error)
}

// History looks up runs that are no longer held in memory. *db.DB satisfies it.
type History interface {
	GetRunSummary(ctx context.Context, runID uuid.UUID) (*types.RunSummary, error)
}

// Config holds server configuration
type Config struct {
	Addr          string
	WebhookSecret string // Empty disables signature checks
	Workdir       string // Checkout the builds run in
	Matcher       *trigger.Matcher
	Runner        Runner
	History       History // Optional
	Logger        *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        Config
	runs       *registry
	log        logging.ContextLogger
	now        func() time.Time

	// runCtx is cancelled when shutdown gives up waiting for the active run
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("server requires a runner")
	}
	if cfg.Matcher == nil {
		m, err := trigger.NewMatcher(trigger.DefaultPattern, false)
		if err != nil {
			return nil, err
		}
		cfg.Matcher = m
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	s := &Server{
		cfg:  cfg,
		runs: newRegistry(),
		log:  logging.NewContextLogger(cfg.Logger, "server"),
		now:  time.Now,
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /hooks/push", s.handlePush)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams stay open for the whole run
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Progress records a controller progress event against the run it belongs
// to. Wire it as pipeline.RunOptions.OnProgress.
func (s *Server) Progress(event pipeline.ProgressEvent) {
	s.runs.progress(event)
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("Server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests, then waits for the active run until
// ctx expires, after which the run is cancelled
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Cancelling in-flight release run")
		s.cancelRun()
		<-done
	}
	s.cancelRun()

	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("Server stopped")
	return nil
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start).String(),
		}).Debug("Request completed")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "idle"
	if s.runs.busy() {
		status = "running"
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "pipeline": status})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Warn("Error encoding JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
