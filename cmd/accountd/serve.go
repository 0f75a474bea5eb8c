// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/driftbox/accountd/internal/auth"
	"github.com/driftbox/accountd/internal/auth/postgres"
	"github.com/driftbox/accountd/internal/config"
	"github.com/driftbox/accountd/internal/httpapi"
	"github.com/driftbox/accountd/internal/logging"
	"github.com/driftbox/accountd/internal/observability"
	"github.com/driftbox/accountd/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API server along with the observability endpoints
for metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("server-addr", "", "API listen address")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
	cmd.Flags().Duration("token-ttl", 0, "session token lifetime")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", "", "log format (json or text)")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("accountd", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	accounts := postgres.NewAccountRepository(pool)
	hasher := auth.NewBcryptHasher()

	tokens, err := auth.NewTokenAuthority([]byte(cfg.Token.Secret), cfg.Token.TTL)
	if err != nil {
		return err
	}

	svc, err := auth.NewServiceWithLogger(accounts, hasher, tokens, logger)
	if err != nil {
		return err
	}

	// Observability server is optional; readiness follows database health.
	var metrics *observability.Metrics
	var obsErrCh <-chan error
	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return err
		}
		metrics = obsServer.Metrics()
	}

	router := httpapi.NewRouter(svc, tokens, accounts, metrics, logger)
	apiServer := httpapi.NewServer(cfg.Server.Addr, router)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-apiErrCh:
		if serveErr != nil {
			return oops.Code("API_SERVER_FAILED").Wrap(serveErr)
		}
	case obsErr := <-obsErrCh:
		if obsErr != nil {
			return oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(obsErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		return err
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
