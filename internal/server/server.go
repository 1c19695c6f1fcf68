package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookecho/internal/history"
	"github.com/mattjoyce/hookecho/internal/verify"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Config holds HTTP server configuration.
type Config struct {
	Listen      string
	MaxBodySize int64
	Verify      VerifyConfig
}

// VerifyConfig names the captured entry headers the verify endpoint reads
// and sets the replay tolerance.
type VerifyConfig struct {
	SignatureHeader string
	IDHeader        string
	TimestampHeader string
	Tolerance       time.Duration
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
)

// Server represents the webhook receiver HTTP server.
type Server struct {
	config    Config
	store     *history.History
	logger    *slog.Logger
	server    *http.Server
	templates *template.Template
	startedAt time.Time
}

// New creates a new server instance around an injected history store.
func New(config Config, store *history.History, logger *slog.Logger) *Server {
	// Apply defaults
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Verify.SignatureHeader == "" {
		config.Verify.SignatureHeader = "Webhook-Signature"
	}
	if config.Verify.IDHeader == "" {
		config.Verify.IDHeader = "Webhook-Id"
	}
	if config.Verify.TimestampHeader == "" {
		config.Verify.TimestampHeader = "Webhook-Timestamp"
	}
	if config.Verify.Tolerance == 0 {
		config.Verify.Tolerance = verify.DefaultTolerance
	}

	return &Server{
		config:    config,
		store:     store,
		logger:    logger,
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		startedAt: time.Now(),
	}
}

// Handler returns the configured router, for embedding in tests or another
// server.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("server starting", "listen", s.config.Listen, "capacity", s.store.Capacity())

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", s.handleIngest)

	r.Get("/", s.handleIndex)
	r.Get("/webhooks/{entryID}", s.handleDetail)

	r.Get("/api/webhooks", s.handleAPIList)
	r.Get("/api/webhooks/{entryID}", s.handleAPIGet)
	r.Post("/api/webhooks/{entryID}/verify", s.handleVerify)

	r.Get("/health", s.handleHealth)
	r.Get("/favicon.ico", s.handleFavicon)

	staticRoot, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))))

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads and secrets).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}
