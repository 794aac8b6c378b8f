// Package server wires the chi router, middleware stack, and handlers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wardenhq/warden/internal/handler"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/server/middleware"
	"github.com/wardenhq/warden/internal/service"
	"github.com/wardenhq/warden/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RequestRate     int // coarse per-IP requests/minute guard
	CookieSecure    bool

	// Security gate: storage-backed throttle over the trailing window.
	GateMaxAttempts int
	AttemptWindow   time.Duration

	// Process-local rate limiter budgets.
	LoginRatePoints  int
	LoginRateWindow  time.Duration
	GlobalRatePoints int
	GlobalRateWindow time.Duration
}

// DefaultConfig returns a Config with the documented production defaults.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8080,
		ShutdownTimeout:  30 * time.Second,
		CORSOrigins:      []string{"*"},
		RequestRate:      300,
		CookieSecure:     true,
		GateMaxAttempts:  10,
		AttemptWindow:    15 * time.Minute,
		LoginRatePoints:  5,
		LoginRateWindow:  15 * time.Minute,
		GlobalRatePoints: 100,
		GlobalRateWindow: time.Hour,
	}
}

// Server is the top-level HTTP server for warden. It owns the chi router, the
// store, the auth service, and the process-local rate limiters.
type Server struct {
	cfg           Config
	router        chi.Router
	store         *store.Store
	authSvc       *service.AuthService
	detector      *security.Detector
	loginLimiter  *security.RateLimiter
	globalLimiter *security.RateLimiter
	httpServer    *http.Server
	logger        *slog.Logger
}

// New creates a Server, wires up all routes and middleware, and returns it
// ready to listen. The rate limiters are scoped to this instance so tests can
// construct isolated servers.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, detector *security.Detector, logger *slog.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		store:         st,
		authSvc:       authSvc,
		detector:      detector,
		loginLimiter:  security.NewRateLimiter(cfg.LoginRatePoints, cfg.LoginRateWindow),
		globalLimiter: security.NewRateLimiter(cfg.GlobalRatePoints, cfg.GlobalRateWindow),
		logger:        logger,
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
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.RequestRate > 0 {
		r.Use(middleware.RequestGuard(s.cfg.RequestRate))
	}

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.globalLimiter))

		authHandler := handler.NewAuthHandler(s.authSvc, s.logger, s.cfg.CookieSecure)
		gate := middleware.NewGate(s.store, s.detector, s.logger, s.cfg.GateMaxAttempts, s.cfg.AttemptWindow)

		r.Route("/auth", func(r chi.Router) {
			r.With(gate.Handler, middleware.RateLimit(s.loginLimiter)).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// Everything past this point requires a valid session.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))

			secHandler := handler.NewSecurityHandler(s.store)
			r.Get("/security/bans", secHandler.ListBans)
			r.Get("/security/attempts", secHandler.ListAttempts)

			dashHandler := handler.NewDashboardHandler(s.store)
			r.Get("/dashboard/stats", dashHandler.Stats)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store is reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded","error":"store unreachable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before releasing the rate limiters.
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
		s.logger.Info("server starting", "addr", addr)
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

	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close releases the process-local rate limiters.
func (s *Server) Close() {
	s.loginLimiter.Close()
	s.globalLimiter.Close()
}

// Router returns the underlying chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
