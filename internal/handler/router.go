// Package handler provides the HTTP API of the notebook server.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/notebook-server/internal/auth"
	"github.com/prn-tf/notebook-server/internal/service"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// MetricsCollector instruments requests and serves the scrape endpoint.
type MetricsCollector interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Router wires handlers, middleware and the auth layer.
type Router struct {
	authHandler     *AuthHandler
	notebookHandler *NotebookHandler
	sourceHandler   *SourceHandler
	noteHandler     *NoteHandler
	authenticator   *auth.Authenticator
	health          HealthChecker
	metrics         MetricsCollector
	metricsPath     string
	maxBodySize     int64
	logger          zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Services      *service.Services
	Authenticator *auth.Authenticator

	// Health is optional.
	Health HealthChecker

	// Metrics is optional. MetricsPath defaults to /metrics.
	Metrics     MetricsCollector
	MetricsPath string

	// MaxBodySize limits request bodies. Zero means no limit.
	MaxBodySize int64

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Router{
		authHandler:     NewAuthHandler(config.Services.Auth),
		notebookHandler: NewNotebookHandler(config.Services.Notebook, config.Services.Source),
		sourceHandler:   NewSourceHandler(config.Services.Source),
		noteHandler:     NewNoteHandler(config.Services.Note),
		authenticator:   config.Authenticator,
		health:          config.Health,
		metrics:         config.Metrics,
		metricsPath:     metricsPath,
		maxBodySize:     config.MaxBodySize,
		logger:          config.Logger,
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(rt.logger))
	r.Use(hlog.RequestIDHandler("request_id", RequestIDHeader))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	if rt.maxBodySize > 0 {
		r.Use(middleware.RequestSize(rt.maxBodySize))
	}

	r.Get("/health", rt.handleHealth)
	if rt.metrics != nil {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rt.authenticator.Middleware)

		rt.authHandler.RegisterRoutes(r)
		rt.notebookHandler.RegisterRoutes(r)
		rt.sourceHandler.RegisterRoutes(r)
		rt.noteHandler.RegisterRoutes(r)
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	event := hlog.FromRequest(r).Info()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		if err := rt.health.Health(r.Context()); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
