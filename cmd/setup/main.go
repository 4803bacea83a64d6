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

	"paion-ledger-go/internal/common"
	"paion-ledger-go/internal/config"
	"paion-ledger-go/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// seedAccounts are demo wallets credited when SEED_ACCOUNTS=true.
var seedAccounts = []struct {
	address string
	amount  int64
}{
	{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", 1000},
	{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2", 500},
	{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa3", 250},
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Initializing database schema", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if !cfg.Database.SeedAccounts {
		logger.Info("Schema ready; skipping account seeding (SEED_ACCOUNTS=false)")
		return
	}

	ledgerService := ledger.NewService(dbService)
	for _, seed := range seedAccounts {
		balance, err := ledgerService.Credit(ctx, seed.address, decimal.NewFromInt(seed.amount), ledger.EntryRequest{
			Description: "seed grant",
			SourceType:  "seed",
		})
		if err != nil {
			logger.Error("Failed to seed account",
				zap.String("address", seed.address), zap.Error(err))
			continue
		}
		logger.Info("Seeded account",
			zap.String("address", seed.address),
			zap.String("balance", balance.Balance.String()))
	}

	logger.Info("Setup completed")
}
