package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/drill/internal/config"
	"github.com/me/drill/internal/practice"
	"github.com/me/drill/internal/ratelimit"
	"github.com/me/drill/internal/ui"
)

// Server is the drill REST API server. It also mounts the HTML practice app.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	practice  *practice.Service
	keys      *KeyConfig
	limiter   *ratelimit.Limiter
	ui        *ui.UI
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithKeyConfig enables API key authentication on /api/v1 routes.
func WithKeyConfig(keys *KeyConfig) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

// WithRateLimiter replaces the code check rate limiter built from config.
func WithRateLimiter(rl *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.Config, svc *practice.Service, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		practice:  svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(cfg.CheckRate, cfg.CheckBurst)
	}

	s.ui = ui.New(svc, logger, ui.Config{
		Secure:  cfg.SecureCookies,
		Limiter: s.limiter,
	})

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// UI routes (HTML)
	s.ui.RegisterRoutes(r)

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(apiAuthMiddleware(s.keys, s.logger))

			// Records
			r.Get("/categories", s.handleListCategories)
			r.Route("/records", func(r chi.Router) {
				r.Get("/", s.handleListRecords)
				r.Get("/{id}", s.handleGetRecord)
			})

			// Sessions
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateSession)
				r.Route("/{sid}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Delete("/", s.handleDeleteSession)
					r.Post("/next", s.handleNext)
					r.Post("/rate", s.handleRate)
					r.Post("/check", s.handleCheck)
				})
			})

			// Learners
			r.Route("/learners/{learner}", func(r chi.Router) {
				r.Get("/stats", s.handleStats)
				r.Get("/due", s.handleDue)
				r.Get("/progress", s.handleExportProgress)
				r.Post("/progress", s.handleImportProgress)
			})
		})
	})
}
