package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/handler"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/openapi"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
	"github.com/deploykit/manager/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int // requests per minute per client IP and per user; 0 disables
	Version         string
	Page            query.ParseOptions
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8100,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		Page: query.ParseOptions{
			DefaultSize: query.DefaultPageSize,
			MaxSize:     query.DefaultPageSize,
		},
	}
}

// ConfigFromYAML builds a server Config from the loaded manager.yaml.
func ConfigFromYAML(y *config.YAMLConfig) Config {
	cfg := DefaultConfig()
	if y.Server.Host != "" {
		cfg.Host = y.Server.Host
	}
	if y.Server.Port > 0 {
		cfg.Port = y.Server.Port
	}
	cfg.ShutdownTimeout = y.Server.ShutdownTimeoutDuration()
	if len(y.Server.CORS.Origins) > 0 {
		cfg.CORSOrigins = y.Server.CORS.Origins
	}
	cfg.RateLimit = y.Server.RateLimit
	cfg.Page = query.ParseOptions{
		DefaultSize: y.API.DefaultPageSize,
		MaxSize:     y.API.MaxPageSize,
	}
	return cfg
}

// Server is the top-level HTTP server of the manager. It owns the Chi
// router, the resource store, the security service and the list engine.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	sec        *security.Service
	engine     *query.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, store *config.Store, sec *security.Service, engine *query.Engine, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		sec:    sec,
		engine: engine,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", security.HeaderAuthorization, security.HeaderToken, "X-Requested-With"},
		ExposedHeaders: []string{
			handler.HeaderTotalCount, handler.HeaderOffset, handler.HeaderSize, "X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI document (no auth required) ---
	policy := s.engine.Policy()
	spec := handler.NewOpenAPIHandler(openapi.Options{
		Version:         s.cfg.Version,
		SecurityEnabled: s.sec.Enabled(),
		Versions:        policy.Versions(),
	}).ServeSpec
	if s.cfg.RateLimit > 0 {
		r.With(middleware.RateLimit(s.cfg.RateLimit)).Get("/openapi.json", spec)
	} else {
		r.Get("/openapi.json", spec)
	}

	// --- Versioned API ---
	r.Route("/api/{"+middleware.VersionParam+"}", func(r chi.Router) {
		r.Use(middleware.Version(policy))
		s.mountAPI(r)
	})

	// --- Unprefixed routes keep the legacy semantics ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.FixedVersion(query.VersionLegacy))
		s.mountAPI(r)
	})

	s.router = r
}

// mountAPI registers the authenticated endpoints on r. Each route checks its
// own action so roles can be granted per collection.
func (s *Server) mountAPI(r chi.Router) {
	resources := handler.NewResourceHandler(s.store, s.engine, s.cfg.Page, s.logger)
	system := handler.NewSystemHandler(s.store, s.sec, s.engine.Policy(), s.logger)

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(s.cfg.RateLimit))
		}
		r.Use(middleware.Authenticate(s.sec, s.logger))
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimitByUser(s.cfg.RateLimit))
		}

		r.With(middleware.Authorize(s.sec, security.ActionIssueToken)).Get("/tokens", system.IssueToken)
		r.With(middleware.Authorize(s.sec, security.ActionStatus)).Get("/status", system.Status)

		for _, info := range model.Kinds() {
			r.With(middleware.Authorize(s.sec, security.ListAction(info.Collection))).
				Get("/"+info.Collection, resources.List(info))
			r.With(middleware.Authorize(s.sec, security.GetAction(info.Collection))).
				Get("/"+info.Collection+"/{id}", resources.Get(info))
		}
	})
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the resource store is
// reachable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"store": "ok"}

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			"addr", addr,
			"security", s.sec.Enabled(),
			"api_versions", s.engine.Policy().Versions(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
