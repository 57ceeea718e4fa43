// Copyright 2025 OpenPad Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openpad-io/openpad/amm"
	"github.com/openpad-io/openpad/asset"
	"github.com/openpad-io/openpad/database"
	"github.com/openpad-io/openpad/event"
	"github.com/openpad-io/openpad/factory"
	"github.com/openpad-io/openpad/internal/config"
	"github.com/openpad-io/openpad/lockup"
	"github.com/openpad-io/openpad/vesting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveRun(cmd *cobra.Command, _ []string) {
	logger := commonRun()
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Error(fmt.Sprintf("failed to load config: %s", err))
		os.Exit(1)
	}
	if err := runServe(cfg, logger); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	promRegistry := prometheus.NewRegistry()
	db, err := database.New(&database.Config{
		DataDir:      cfg.DatabasePath,
		Logger:       logger,
		PromRegistry: promRegistry,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	eventBus := event.NewEventBus(promRegistry, logger)
	defer eventBus.Stop()
	claimWindow := time.Duration(0)
	if cfg.ClaimWindow != "" {
		claimWindow, err = time.ParseDuration(cfg.ClaimWindow)
		if err != nil {
			return fmt.Errorf("invalid claim window: %w", err)
		}
	}
	f := factory.New(factory.Config{
		Logger:       logger,
		PromRegistry: promRegistry,
		EventBus:     eventBus,
		Database:     db,
		Router: amm.NewPoolRouter(amm.PoolRouterConfig{
			Logger: logger,
		}),
		Locker: lockup.NewVault(lockup.VaultConfig{
			Logger: logger,
		}),
		Vesting: vesting.NewLedger(vesting.LedgerConfig{
			Logger: logger,
		}),
		NativeAsset:  asset.NewBook(cfg.NativeSymbol, cfg.NativeDecimals),
		FeeRecipient: asset.Address(cfg.FeeRecipient),
		HouseFeeBps:  cfg.HouseFeeBps,
		ClaimWindow:  claimWindow,
	})
	sales, err := db.ListSales()
	if err != nil {
		return fmt.Errorf("listing persisted sales: %w", err)
	}
	logger.Info(
		fmt.Sprintf("factory ready, %d persisted sale(s)", len(sales)),
		"component", programName,
		"deployed", len(f.List()),
	)
	// Metrics listener
	metricsMux := http.NewServeMux()
	metricsMux.Handle(
		"/metrics",
		promhttp.HandlerFor(
			promRegistry,
			promhttp.HandlerOpts{},
		),
	)
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(
			fmt.Sprintf("serving prometheus metrics on %s", metricsSrv.Addr),
			"component", programName,
		)
		if err := metricsSrv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("metrics listener: %w", err)
	case sig := <-sigCh:
		logger.Info(
			fmt.Sprintf("received signal %s, shutting down", sig),
			"component", programName,
		)
	}
	shutdownTimeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return metricsSrv.Shutdown(ctx)
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the presale service",
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args)
		},
	}
}
