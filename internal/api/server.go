// Package api provides the HTTP admin surface for the pipeline: starting
// runs, browsing run history, reviewing unmapped categories, and managing
// mapping rules.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
	"github.com/shelfwise/shelfwise-pipeline/internal/ratelimit"
	"github.com/shelfwise/shelfwise-pipeline/internal/store"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

// Config carries the server identity and the paths the health check probes.
type Config struct {
	Name     string
	Version  string
	InputDir string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	processor *pipeline.Processor
	engine    *mapping.Engine
	store     *store.Store
	index     *taxonomy.Index
	cfg       Config

	router  *chi.Mux
	api     huma.API
	limiter *ratelimit.KeyedRateLimiter
	runs    *runGate
	logger  *slog.Logger
}

// NewServer creates the HTTP server with all routes configured. The limiter
// gates mutating requests; pass nil to disable rate limiting.
func NewServer(processor *pipeline.Processor, engine *mapping.Engine, st *store.Store, index *taxonomy.Index, limiter *ratelimit.KeyedRateLimiter, cfg Config, logger *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "Shelfwise Admin API"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		processor: processor,
		engine:    engine,
		store:     st,
		index:     index,
		cfg:       cfg,
		router:    chi.NewRouter(),
		limiter:   limiter,
		runs:      newRunGate(),
		logger:    logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig(cfg.Name, cfg.Version)
	RegisterErrorHandler()
	s.api = humachi.New(s.router, humaConfig)

	s.registerHealthRoutes()
	s.registerRunRoutes()
	s.registerUnmappedRoutes()
	s.registerRuleRoutes()
	s.registerTaxonomyRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.limitMutations)
}
