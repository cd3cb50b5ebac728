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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-envelope/internal/config"
	"github.com/jeremyhahn/go-envelope/internal/rest"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
	"github.com/jeremyhahn/go-envelope/pkg/ratelimit"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/envelope/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("envelope server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("ENVELOPE_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	log.Info("Configuration loaded",
		logger.String("config", *configPath),
		logger.String("version", version),
		logger.String("digest", cfg.Envelope.Digest),
		logger.String("cipher", cfg.Envelope.Cipher))

	if err := run(cfg, log); err != nil {
		log.Error("Server error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Server stopped successfully")
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret, err := cfg.Envelope.DecodedSecret()
	if err != nil {
		return err
	}
	opts, err := cfg.Envelope.EncryptorOptions(log)
	if err != nil {
		return err
	}
	e, err := encryptor.New(secret, opts...)
	if err != nil {
		return err
	}

	limiter, err := ratelimit.New(cfg.Server.RateLimit)
	if err != nil {
		return err
	}
	tlsConfig, err := cfg.Server.TLS.Load()
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		collector := metrics.StartResourceCollector(ctx, 30*time.Second)
		defer collector.Stop()
	} else {
		metrics.Disable()
	}

	server, err := rest.NewServer(&rest.Config{
		Addr:         cfg.Server.Address(),
		Encryptor:    e,
		Version:      version,
		TLSConfig:    tlsConfig,
		RateLimiter:  limiter,
		MetricsPath:  metricsPath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}
