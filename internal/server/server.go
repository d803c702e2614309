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

	"github.com/faucetdb/memberapi/internal/handler"
	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/openapi"
	"github.com/faucetdb/memberapi/internal/server/middleware"
	"github.com/faucetdb/memberapi/internal/service"
	"github.com/faucetdb/memberapi/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// RateLimit is the per-IP request budget per minute; 0 disables it.
	RateLimit int
	// LoginAttempts caps password attempts per IP and username per minute
	// on the authenticated routes. Bearer requests are not counted; 0
	// disables the limit.
	LoginAttempts int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		LoginAttempts:   30,
	}
}

// Server is the top-level HTTP server. It owns the chi router and the
// services the handlers call into.
type Server struct {
	cfg        Config
	router     chi.Router
	identity   *service.IdentityService
	auth       *service.AuthService
	version    string
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, identity *service.IdentityService, auth *service.AuthService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		identity: identity,
		auth:     auth,
		version:  version,
		logger:   logger,
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
	if s.cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/", http.StatusFound)
	})
	r.Get("/healthz", s.handleHealthz)

	adminHandler := handler.NewAdminHandler(s.identity, s.auth, s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Get("/", adminHandler.Home)
		r.Get("/openapi.json", s.handleOpenAPI)

		r.Group(func(r chi.Router) {
			if s.cfg.LoginAttempts > 0 {
				r.Use(middleware.RateLimitLogin(s.cfg.LoginAttempts))
			}
			r.Use(middleware.RequireAdmin(s.auth, s.logger))

			r.Post("/session", adminHandler.CreateSession)

			r.Get("/admin", adminHandler.ListAdmins)
			r.Post("/admin", adminHandler.CreateAdmin)
			r.Get("/admin/{id}", adminHandler.GetAdmin)
			r.Patch("/admin/{id}", adminHandler.UpdateAdmin)
			r.Delete("/admin/{id}", adminHandler.DeleteAdmin)
		})
	})

	s.router = r
}

// handleHealthz reports liveness. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleOpenAPI serves the API description built from the live admins
// table. When the table cannot be described the built-in column list is
// used instead.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	columns := model.AdminColumns()
	ts, err := s.identity.Store().Tables().Describe(r.Context(), store.AdminTable)
	if err != nil {
		s.logger.Warn("describe admin table failed, using built-in columns", "error", err)
	} else {
		columns = ts.Columns
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc := openapi.Generate(scheme+"://"+r.Host, s.version, columns)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in background goroutine
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
