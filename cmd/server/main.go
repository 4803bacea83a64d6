/**
 * Copyright 2025-present pAION Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paion-ledger-go/internal/common"
	"paion-ledger-go/internal/config"
	"paion-ledger-go/internal/governance"
	"paion-ledger-go/internal/httpapi"
	"paion-ledger-go/internal/ledger"
	"paion-ledger-go/internal/power"
	"paion-ledger-go/internal/sweeper"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting pAION ledger server")

	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	tiers, err := power.LoadTiersConfig(cfg.Governance.TiersFile)
	if err != nil {
		zap.L().Fatal("Failed to load tier policy", zap.Error(err))
	}
	powerProvider := power.NewTierProvider(power.NewStaticTierSource(tiers.Holders), tiers.Powers())

	ledgerService := ledger.NewService(dbService)
	governanceService := governance.NewService(dbService, powerProvider, governance.Config{
		ProposalThreshold: cfg.Governance.ProposalThreshold,
		DefaultDuration:   time.Duration(cfg.Governance.DefaultDurationDays) * 24 * time.Hour,
	})

	proposalSweeper := sweeper.New(governanceService, cfg.Sweeper.Interval)
	proposalSweeper.Start(ctx)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: httpapi.NewServer(ledgerService, governanceService).Handler(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
		case <-groupCtx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		proposalSweeper.Stop()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		zap.L().Fatal("Server exited with error", zap.Error(err))
	}
	zap.L().Info("Server stopped gracefully")
}
