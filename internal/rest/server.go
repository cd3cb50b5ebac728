// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-envelope/pkg/crypto/rand"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/health"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
	"github.com/jeremyhahn/go-envelope/pkg/ratelimit"
	"github.com/jeremyhahn/go-envelope/pkg/verifier"
)

// Server represents the REST API server.
type Server struct {
	server      *http.Server
	handlers    *HandlerContext
	health      *health.Checker
	limiter     *ratelimit.Limiter
	metricsPath string
	tlsConfig   *tls.Config
	logger      logger.Logger
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the listen address (default ":8080")
	Addr string

	// Verifier signs and verifies messages. Defaults to the encryptor's
	// verifier when nil.
	Verifier *verifier.Verifier

	// Encryptor enables the encrypt and decrypt endpoints (optional)
	Encryptor *encryptor.Encryptor

	// Version is reported by GET /health
	Version string

	// TLSConfig enables HTTPS (optional)
	TLSConfig *tls.Config

	// RateLimiter throttles the API routes (optional)
	RateLimiter *ratelimit.Limiter

	// Health overrides the default self-test checker (optional)
	Health *health.Checker

	// MetricsPath serves Prometheus metrics when non-empty
	MetricsPath string

	// MaxBodyBytes caps request bodies (default 1 MiB)
	MaxBodyBytes int64

	Logger logger.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	v := cfg.Verifier
	if v == nil && cfg.Encryptor != nil {
		v = cfg.Encryptor.Verifier()
	}
	if v == nil {
		return nil, fmt.Errorf("a verifier or encryptor is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogAdapter(&logger.SlogConfig{Level: logger.LevelInfo})
	}

	checker := cfg.Health
	if checker == nil {
		checker = defaultHealth(v, cfg.Encryptor)
	}

	s := &Server{
		handlers: &HandlerContext{
			verifier:      v,
			encryptor:     cfg.Encryptor,
			healthChecker: checker,
			version:       cfg.Version,
			started:       time.Now(),
			maxBodyBytes:  cfg.MaxBodyBytes,
			logger:        log,
		},
		health:      checker,
		limiter:     cfg.RateLimiter,
		metricsPath: cfg.MetricsPath,
		tlsConfig:   cfg.TLSConfig,
		logger:      log,
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.setupRouter(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		TLSConfig:         cfg.TLSConfig,
	}
	return s, nil
}

// defaultHealth registers self-tests that round trip a value through
// every configured component. The encryptor check runs unmetered so
// readiness polling never spends the usage limit or grows the IV set.
func defaultHealth(v *verifier.Verifier, e *encryptor.Encryptor) *health.Checker {
	checker := health.NewChecker()
	checker.RegisterCheck("verifier", health.RoundTripCheck("verifier", v.Generate, v.Verify))
	if e != nil {
		u := e.Unmetered()
		checker.RegisterCheck("encryptor", health.RoundTripCheck("encryptor", u.EncryptAndSign, u.DecryptAndVerify))
	}
	checker.RegisterCheck("random", health.RandomCheck(rand.Default()))
	return checker
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)
	r.Get("/health/live", s.handlers.LivenessHandler)
	r.Get("/health/ready", s.handlers.ReadinessHandler)
	r.Get("/health/startup", s.handlers.StartupHandler)

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, metrics.Handler())
	}

	r.Route("/api/v1/messages", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, s.logger))
		}

		r.Post("/generate", s.handlers.GenerateHandler)
		r.Post("/verify", s.handlers.VerifyHandler)
		if s.handlers.encryptor != nil {
			r.Post("/encrypt", s.handlers.EncryptHandler)
			r.Post("/decrypt", s.handlers.DecryptHandler)
		}
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Health returns the checker backing the probe endpoints.
func (s *Server) Health() *health.Checker {
	return s.health
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.logger.Info("Starting envelope server",
		logger.String("addr", ln.Addr().String()),
		logger.String("scheme", scheme))

	s.health.MarkStarted()
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	s.health.MarkStopping()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logger.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.logger.Info("Server stopped")
	return nil
}
