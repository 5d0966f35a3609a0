// Package web provides the HTTP server and handlers for the pressure results page.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/HOUCINE710/csv-fille-Processed/internal/config"
	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/history"
	"github.com/HOUCINE710/csv-fille-Processed/internal/web/middleware"
)

// RunLister reads the run history shown on /api/runs.
type RunLister interface {
	ListRuns(ctx context.Context, opts history.ListOptions) ([]history.Run, error)
}

// Server is the HTTP server for the pressure results page.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	router   *chi.Mux
	server   *http.Server
	limiter  *middleware.RateLimiter
	metrics  http.Handler
	runs     RunLister
	validate *validator.Validate
}

// Option customises a Server.
type Option func(*Server)

// WithMetrics mounts h on the configured metrics path.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHistory enables /api/runs.
func WithHistory(l RunLister) Option {
	return func(s *Server) { s.runs = l }
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, service *core.Service, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		service:  service,
		router:   chi.NewRouter(),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.withSession)

		// Pages
		r.Get("/", s.handleIndex)
		r.Post("/process", s.handleProcess)
		r.Get("/export", s.handleExport)
		r.Get("/export.xlsx", s.handleExportXLSX)
		r.Post("/reset", s.handleReset)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// The visitor's own table, keyed by the session cookie
		r.With(s.withSession).Get("/rows", s.handleRows)

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

			r.Post("/classify", s.handleClassify)
			r.Get("/runs", s.handleRuns)
		})
	})
}

// Start begins listening for HTTP requests. The rate limiter's cleanup loop
// runs until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			if enableCSP {
				// The page carries its styles inline and loads nothing else.
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}
