package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/config"
	"github.com/snarg/anomia-engine/internal/metrics"
	"github.com/snarg/anomia-engine/internal/store"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions holds everything the router serves.
type ServerOptions struct {
	Verifier Verifier
	Words    WordSource
	Store    store.Store
	Health   HealthDeps
	// Metrics serves /metrics when non-nil.
	Metrics   http.Handler
	Version   string
	StartTime time.Time
}

func NewServer(cfg *config.Config, opts ServerOptions, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, opts, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg *config.Config, opts ServerOptions, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	if cfg.MetricsEnabled {
		r.Use(metrics.InstrumentHandler)
	}

	r.Get("/", Root)

	health := NewHealthHandler(opts.Health, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		NewWordsHandler(opts.Words).Routes(r)
		NewUploadHandler(opts.Verifier, cfg.MaxUploadBytes(), log).Routes(r)
		NewSessionsHandler(opts.Store, log).Routes(r)
		NewProgressHandler(opts.Store, log).Routes(r)
	})

	return r
}

// Root handles GET /.
func Root(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Anomia Rehabilitation API",
		"status":  "running",
	})
}

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
