package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/peacock/internal/api/handler"
	mw "github.com/edvin/peacock/internal/api/middleware"
	"github.com/edvin/peacock/internal/core"
)

// Pinger reports database reachability for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	db             Pinger
	temporalClient temporalclient.Client
}

func NewServer(logger zerolog.Logger, coreDB *pgxpool.Pool, temporalClient temporalclient.Client) *Server {
	return newServer(logger, core.NewServices(coreDB, temporalClient, logger), coreDB, temporalClient)
}

func newServer(logger zerolog.Logger, services *core.Services, db Pinger, temporalClient temporalclient.Client) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		db:             db,
		temporalClient: temporalClient,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Tracing)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.CallbackURL)

		// Provisions
		provision := handler.NewProvision(s.services.Provision)
		r.Get("/provisions", provision.List)
		r.Post("/provisions", provision.Create)
		r.Get("/provisions/{id}", provision.Get)
		r.Delete("/provisions/{id}", provision.Delete)
		r.Post("/provisions/{id}/start", provision.Start)
		r.Post("/provisions/{id}/actions", provision.Action)
		r.Post("/provisions/{id}/evaluate", provision.Evaluate)
		r.Get("/provisions/{id}/tokens", provision.Tokens)
		r.Get("/provisions/{id}/logs", provision.Logs)

		// Child instances
		instance := handler.NewInstance(s.services.Instance)
		r.Get("/instances", instance.List)
		r.Post("/instances", instance.Create)
		r.Get("/instances/{id}", instance.Get)
		r.Post("/instances/{id}/transitions", instance.Transition)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.db.Ping(ctx); err != nil {
		checks["core_db"] = err.Error()
		healthy = false
	} else {
		checks["core_db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
