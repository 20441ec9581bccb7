// Package server assembles the gophcache REST backend: collection
// handlers, health and metrics endpoints behind the middleware chain.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/gophcache/internal/server/handlers"
	"github.com/iudanet/gophcache/internal/server/middleware"
	"github.com/iudanet/gophcache/internal/server/storage"
)

// APIPrefix is the path every collection route lives under
const APIPrefix = "/api/v1"

const (
	defaultRateWindow      = time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

// Storage is what the server needs from a backend storage
type Storage interface {
	storage.EntityStorage
	handlers.Pinger
}

// Config настройки HTTP сервера
type Config struct {
	Addr    string
	Version string

	// JWT включает проверку токенов на маршрутах коллекций. nil - без авторизации.
	JWT *handlers.JWTConfig

	// RateLimit запросов на IP за RateWindow. 0 - без ограничения.
	RateLimit  int
	RateWindow time.Duration

	ShutdownTimeout time.Duration
}

// Server HTTP сервер gophcache
type Server struct {
	logger   *slog.Logger
	http     *http.Server
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
	handler  http.Handler
	timeout  time.Duration
}

// Option настраивает Server
type Option func(*serverOptions)

type serverOptions struct {
	entityOpts []handlers.EntityOption
}

// WithEntityOptions passes options through to the collection handler
func WithEntityOptions(opts ...handlers.EntityOption) Option {
	return func(o *serverOptions) {
		o.entityOpts = append(o.entityOpts, opts...)
	}
}

// New builds the router and the middleware chain
func New(cfg Config, s Storage, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := middleware.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var wrap func(http.Handler) http.Handler
	if cfg.JWT != nil {
		wrap = middleware.AuthMiddleware(logger, *cfg.JWT)
	}

	mux := http.NewServeMux()
	health := handlers.NewHealthHandler(logger, cfg.Version, s)
	mux.HandleFunc("GET "+APIPrefix+"/health", health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handlers.NewEntityHandler(logger, s, o.entityOpts...).Register(mux, APIPrefix, wrap)

	// ratelimit -> metrics -> logging -> gzip -> recovery -> mux
	var handler http.Handler = mux
	handler = middleware.RecoveryMiddleware(logger)(handler)
	handler = gzhttp.GzipHandler(handler)
	handler = middleware.LoggingWithSkip(logger, []string{APIPrefix + "/health", "/metrics"})(handler)
	handler = httpMetrics.Middleware(handler)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = defaultRateWindow
		}
		limiter = middleware.NewRateLimiter(cfg.RateLimit, window, logger)
		handler = limiter.Middleware(handler)
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &Server{
		logger:   logger,
		limiter:  limiter,
		registry: registry,
		handler:  handler,
		timeout:  timeout,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the registry exposed on /metrics
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Run serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.stopLimiter()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", slog.String("addr", ln.Addr().String()))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) stopLimiter() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
