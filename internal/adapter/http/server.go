package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Runner starts a batch in the background. It returns false when a batch is
// already running. A nil window asks for the next regular update.
type Runner interface {
	Trigger(ctx context.Context, w *domain.Window, message string) bool
}

// Server exposes health, readiness, metrics and batch trigger endpoints.
type Server struct {
	httpServer *http.Server
	runCtx     context.Context
	runner     Runner
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /runs routes. Batches started through POST /runs run under runCtx,
// not the request context, so cancelling runCtx stops them.
func NewServer(runCtx context.Context, addr string, ready ReadinessChecker, runner Runner, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runCtx: runCtx,
		runner: runner,
		logger: logger,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(ready))
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/runs", s.handleRun)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// runRequest is the optional body of POST /runs. Start and end must be given
// together; without them the next regular window is used.
type runRequest struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Message string `json:"message"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	var window *domain.Window
	switch {
	case req.Start == "" && req.End == "":
	case req.Start == "" || req.End == "":
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "start and end must be given together"})
		return
	default:
		parsed, err := domain.ParseWindow(req.Start, req.End)
		if err != nil {
			writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		window = &parsed
	}

	if !s.runner.Trigger(s.runCtx, window, req.Message) {
		writeJSON(w, r, http.StatusConflict, map[string]string{"status": "busy"})
		return
	}
	s.logger.Info("batch triggered", "request_id", middleware.GetReqID(r.Context()), "explicit_window", window != nil)
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
