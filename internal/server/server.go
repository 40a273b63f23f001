package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dygy/gape-select/internal/config"
	"github.com/dygy/gape-select/internal/pipeline"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Config holds server configuration
type Config struct {
	Port int
	// ConfigPath is watched for preset changes; empty disables reloading
	ConfigPath string
}

// Server is the HTTP form boundary in front of the orchestrator
type Server struct {
	config      Config
	router      *chi.Mux
	templates   *template.Template
	logger      *slog.Logger
	pipeline    *pipeline.Orchestrator
	submissions *SubmissionLog
}

// New creates a new server
func New(cfg Config, o *pipeline.Orchestrator, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		templates:   tmpl,
		logger:      logger,
		pipeline:    o,
		submissions: NewSubmissionLog(),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Pages
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	// API
	r.Get("/effects", s.handleEffects)
	r.Post("/encode", s.handleEncode)
	r.Post("/submit", s.handleSubmit)
	r.Post("/clear", s.handleClear)
	r.Get("/submissions", s.handleSubmissions)
	r.Get("/submissions/{id}", s.handleSubmission)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down and clears the display
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.config.ConfigPath != "" {
		go s.watchConfig(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.Int("port", s.config.Port))
		fmt.Printf("\n  Effect selector running at: http://localhost:%d\n\n", s.config.Port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.Any("error", err))
	}
	if err := s.pipeline.Close(shutdownCtx); err != nil {
		s.logger.Error("clear on shutdown failed", slog.Any("error", err))
	}
	return <-errCh
}

func (s *Server) watchConfig(ctx context.Context) {
	err := config.Watch(ctx, s.config.ConfigPath, s.logger, func(cfg *config.Config) {
		catalog, err := cfg.Catalog()
		if err != nil {
			s.logger.Warn("presets not reloaded", slog.Any("error", err))
			return
		}
		s.pipeline.SetCatalog(catalog)
	})
	if err != nil {
		s.logger.Warn("config watch stopped", slog.Any("error", err))
	}
}
