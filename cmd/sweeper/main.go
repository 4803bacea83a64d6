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
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paion-ledger-go/internal/common"
	"paion-ledger-go/internal/config"
	"paion-ledger-go/internal/governance"
	"paion-ledger-go/internal/power"
	"paion-ledger-go/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep and exit instead of polling")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	governanceService := governance.NewService(dbService, powerProvider, governance.Config{
		ProposalThreshold: cfg.Governance.ProposalThreshold,
		DefaultDuration:   time.Duration(cfg.Governance.DefaultDurationDays) * 24 * time.Hour,
	})

	if *once {
		closed, err := governanceService.CloseExpiredProposals(ctx)
		if err != nil {
			zap.L().Fatal("Sweep failed", zap.Error(err))
		}
		zap.L().Info("Sweep completed", zap.Int("closed", len(closed)))
		return
	}

	proposalSweeper := sweeper.New(governanceService, cfg.Sweeper.Interval)
	proposalSweeper.Start(ctx)

	zap.L().Info("Proposal sweeper running", zap.Duration("interval", cfg.Sweeper.Interval))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping sweeper...")
	proposalSweeper.Stop()
}
