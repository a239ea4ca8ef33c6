package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/dedupe"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/enrich"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/forward"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/hub"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/ratelimit"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/store"
)

// Server is the KumbhWatch HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional fields (nil-safe): Dedupe, Forwarder, RateLimiter.
type ServerConfig struct {
	// Required dependencies.
	Store    store.Store
	Hub      *hub.Hub
	Enricher *enrich.Service
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Dedupe      *dedupe.Policy
	Forwarder   *forward.Forwarder
	RateLimiter ratelimit.Limiter

	// HTTP server settings.
	ListenAddr          string
	ReadTimeout         time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		Hub:                 cfg.Hub,
		Enricher:            cfg.Enricher,
		Dedupe:              cfg.Dedupe,
		Forwarder:           cfg.Forwarder,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Ingestion. Intake routes sit behind the producer rate limiter;
	// operator and dashboard routes do not.
	limit := func(fn http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(cfg.RateLimiter, cfg.Logger, fn)
	}
	mux.Handle("POST /webhook/voice-call", limit(h.HandleVoiceCallWebhook))
	mux.Handle("POST /webhook/generic", limit(h.HandleGenericWebhook))
	mux.HandleFunc("POST /test_emergency", h.HandleTestEmergency)

	// Record reads and lifecycle.
	mux.HandleFunc("GET /emergencies", h.HandleListEmergencies)
	mux.HandleFunc("GET /emergencies/{id}", h.HandleGetEmergency)
	mux.HandleFunc("PUT /emergencies/{id}/status", h.HandleUpdateStatus)
	mux.HandleFunc("POST /emergencies/{id}/resolve", h.HandleResolve)
	mux.HandleFunc("POST /volunteers/{id}/assign", h.HandleAssignVolunteer)

	// Operator broadcast.
	mux.HandleFunc("POST /broadcast/announcement", h.HandleAnnouncement)

	// Observability.
	mux.HandleFunc("GET /dashboard/summary", h.HandleDashboardSummary)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /status", h.HandleStatus)

	// Persistent connections.
	mux.HandleFunc("GET /ws", h.HandleWebSocket)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: handler,
			// No write timeout: /ws connections outlive any sensible
			// request deadline, and the hub enforces its own per-frame
			// write deadlines.
			ReadHeaderTimeout: cfg.ReadTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
