package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"trendscope/internal/cache"
	"trendscope/internal/logger"
)

// Options configures the HTTP server.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RequestTimeout bounds each handler, generation included.
	RequestTimeout time.Duration

	CORSOrigins []string // Empty disables CORS handling

	RelayEnabled bool
	RelayBaseURL string        // Search API base the relay forwards to
	RelayTimeout time.Duration // Upstream timeout of relayed requests

	MaxInFlight int // Zero disables throttling
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     Options
	log        *slog.Logger
	sessions   *SessionManager
	cache      cache.Service
	relay      *Relay
	startedAt  time.Time
}

// New creates a new HTTP server instance
func New(sessions *SessionManager, svc cache.Service, cfg Options) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		log:       logger.Get(),
		sessions:  sessions,
		cache:     svc,
		startedAt: time.Now(),
	}
	if cfg.RelayEnabled {
		s.relay = NewRelay(cfg.RelayBaseURL, cfg.RelayTimeout)
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	s.router.Use(securityHeaders)

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", APIKeyHeader},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}

	if s.config.MaxInFlight > 0 {
		s.router.Use(middleware.Throttle(s.config.MaxInFlight))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)
		r.Use(s.sessions.Middleware)

		r.Get("/state", s.handleState)
		r.Post("/search", s.handleSearch)
		r.Post("/tab", s.handleSwitchTab)
		r.Put("/filter", s.handleSetFilter)
		r.Put("/credential", s.handleSetCredential)

		r.Post("/summary", s.handleSummary)
		r.Post("/query", s.handleQuery)
		r.Post("/post", s.handlePost)

		r.Get("/clusters/info", s.handleClusterInfo)

		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", s.handleListBookmarks)
			r.Post("/", s.handleAddBookmark)
			r.Delete("/{index}", s.handleRemoveBookmark)
		})

		r.Get("/export", s.handleExport)
	})

	if s.relay != nil {
		s.router.Handle("/relay", s.relay)
		s.router.Handle("/relay/*", s.relay)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
		"relay", s.relay != nil,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
