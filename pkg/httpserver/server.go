// Package httpserver exposes the operational surface: Prometheus metrics,
// health probes and JSON views over the open-orders registry and the
// per-account ledgers.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/msandoval/tradeterm/internal/history"
	"github.com/msandoval/tradeterm/internal/orders"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for metrics, health checks and account
// state.
type Server struct {
	server *http.Server
	logger *zap.Logger
	health *health
}

// Config holds server configuration.
type Config struct {
	Port      string
	Logger    *zap.Logger
	Registry  *orders.Registry
	Trades    *history.Store
	EquityLog *history.EquityLog
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	h := newHealth()

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", h.liveness)
	r.Get("/ready", h.readiness)

	api := newAPIHandler(cfg.Registry, cfg.Trades, cfg.EquityLog, cfg.Logger)
	if cfg.Registry != nil {
		r.Get("/api/orders/pending", api.pendingOrders)
	}
	if cfg.Trades != nil {
		r.Get("/api/trades", api.trades)
	}
	if cfg.EquityLog != nil {
		r.Get("/api/equity", api.equity)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		logger: cfg.Logger,
		health: h,
	}
}

// SetReady marks the application ready to serve traffic.
func (s *Server) SetReady(ready bool) {
	s.health.setReady(ready)
}

// Start starts the HTTP server. Blocking; returns when the server stops.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
