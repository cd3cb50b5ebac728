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

package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-envelope/internal/config"
	"github.com/jeremyhahn/go-envelope/internal/rest"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
	"github.com/jeremyhahn/go-envelope/pkg/ratelimit"
	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the envelope REST server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Server.Address())
			if err != nil {
				return err
			}
			return a.serve(ctx, cmd, cfg, ln)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

// serve runs the server on ln until ctx is cancelled.
func (a *app) serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, ln net.Listener) error {
	log := a.logger(cfg, cmd.ErrOrStderr())

	e, err := a.newEncryptor(cmd, cfg)
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
		Version:      Version,
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
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Error(err))
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
