package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe/internal/config"
	"github.com/snarg/scribe/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions contains all dependencies for the HTTP server.
type ServerOptions struct {
	Config    *config.Config
	Pipeline  Runner
	Scratch   Scratch
	Tool      ToolChecker
	WebFiles  fs.FS // embedded web/ directory; nil disables the form page
	Version   string
	StartTime time.Time
	Log       zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)

	// Prometheus metrics, no auth
	r.Handle("/metrics", promhttp.Handler())

	// Health endpoint, no auth
	health := NewHealthHandler(opts.Scratch, opts.Tool, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)

	// Authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		NewTranscriptionsHandler(opts.Pipeline, opts.Scratch, cfg.MaxUploadBytes(), cfg.UploadExtensions, opts.Log).Routes(r)
	})

	if opts.WebFiles != nil {
		r.Get("/", IndexHandler(opts.WebFiles))
		r.Handle("/*", http.FileServer(http.FS(opts.WebFiles)))
	}

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
