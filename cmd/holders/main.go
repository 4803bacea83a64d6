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
	"fmt"

	"paion-ledger-go/internal/common"
	"paion-ledger-go/internal/config"
	"paion-ledger-go/internal/models"

	"go.uber.org/zap"
)

func formatAddress(address string) string {
	if len(address) > 12 {
		return address[:8] + "..." + address[len(address)-4:]
	}
	return address
}

func printHolder(balance models.Balance, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-16s: %18s spendable, %18s locked (earned %s, spent %s, updated %s)\n",
		symbol,
		formatAddress(balance.Address),
		balance.Balance.String(),
		balance.LockedAmount.String(),
		balance.TotalEarned.String(),
		balance.TotalSpent.String(),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	addressFlag := flag.String("address", "", "Show a single wallet address (optional)")
	flag.Parse()

	logger.Info("Starting holder report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	common.PrintHeader("pAION HOLDER REPORT", common.DefaultWidth)

	if *addressFlag != "" {
		balance, err := dbService.GetBalance(ctx, *addressFlag)
		if err != nil {
			logger.Fatal("Failed to get balance", zap.String("address", *addressFlag), zap.Error(err))
		}
		printHolder(*balance, true)
		common.PrintFooter("SUMMARY: 1 address queried", common.DefaultWidth)
		return
	}

	balances, err := dbService.ListBalances(ctx)
	if err != nil {
		logger.Fatal("Failed to list balances", zap.Error(err))
	}

	for i, balance := range balances {
		printHolder(balance, i == len(balances)-1)
	}

	stats, err := dbService.GetStatistics(ctx)
	if err != nil {
		logger.Fatal("Failed to compute statistics", zap.Error(err))
	}

	summary := fmt.Sprintf("SUMMARY: %d holders, supply %s, circulating %s, avg %s",
		stats.TotalHolders, stats.TotalSupply.String(),
		stats.CirculatingSupply.String(), stats.AverageBalance.String())
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Holder report completed",
		zap.Int("accounts", len(balances)),
		zap.Int64("holders", stats.TotalHolders))
}
