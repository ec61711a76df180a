// Package server exposes the word-cloud pipeline over HTTP.
//
// # Endpoints
//
//	GET  /               upload form
//	POST /generate       multipart upload; responds with image/png
//	GET  /results/{id}   a previously generated image
//	GET  /runs           recent run records
//	GET  /runs/{id}      one run record (options, stats, error)
//	GET  /health         liveness and backend status
//
// Uploads never touch the filesystem: mask, text and font bytes stay in
// memory for the duration of the request. Generated images are kept in the
// runner's cache under their result ID, and every request leaves a run
// record in the store.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/maskcloud/pkg/pipeline"
	"github.com/matzehuels/maskcloud/pkg/store"
)

// Defaults for Config fields left at zero.
const (
	DefaultAddr        = ":8080"
	DefaultMaxUploadMB = 16
	DefaultTimeout     = 2 * time.Minute
)

// Config configures the server.
type Config struct {
	Addr string

	// MaxUploadMB caps the size of a multipart request body.
	MaxUploadMB int

	// Timeout bounds the handling of one request.
	Timeout time.Duration

	// Defaults are the pipeline options requests start from. Form fields
	// override them.
	Defaults pipeline.Options
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Server handles HTTP requests.
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	store  store.Store
	logger *log.Logger
	router chi.Router
}

// New creates a server. A nil store keeps runs in memory.
func New(cfg Config, runner *pipeline.Runner, st store.Store, logger *log.Logger) *Server {
	cfg.setDefaults()
	if st == nil {
		st = store.NewMemoryStore(0)
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:    cfg,
		runner: runner,
		store:  st,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Timeout))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/generate", s.handleGenerate)
	r.Get("/results/{id}", s.handleResult)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleRuns)
		r.Get("/{id}", s.handleRun)
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
