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

// Package ledger implements the pAION token ledger: balance reads, earn and
// spend, locking, and atomic transfers. All validation happens before any
// store access; balance sufficiency is enforced atomically by the store.
package ledger

import (
	"context"
	"fmt"
	"time"

	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Service orchestrates ledger operations over a transactional store.
type Service struct {
	store store.LedgerStore
	now   func() time.Time
}

func NewService(ledgerStore store.LedgerStore) *Service {
	return &Service{
		store: ledgerStore,
		now:   time.Now,
	}
}

// WithClock overrides the service clock. Used by tests to pin time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EntryRequest carries the caller-supplied fields of a credit or debit.
type EntryRequest struct {
	Description string
	SourceType  string
	SourceId    string
	Metadata    map[string]any
}

// GetBalance returns the current balance record for an address. Addresses
// with no activity yield a zero-valued record.
func (s *Service) GetBalance(ctx context.Context, address string) (*models.Balance, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	return s.store.GetBalance(ctx, address)
}

// Credit increases the spendable balance and the lifetime earned counter.
func (s *Service) Credit(ctx context.Context, address string, amount decimal.Decimal, req EntryRequest) (*models.Balance, error) {
	if err := validateMutation(address, amount); err != nil {
		return nil, err
	}
	return s.store.ApplyEntry(ctx, store.EntryParams{
		Address:     address,
		Type:        models.TxTypeEarned,
		Amount:      amount,
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceId:    req.SourceId,
		Metadata:    req.Metadata,
	})
}

// Debit decreases the spendable balance and increases the lifetime spent
// counter. Fails with ErrInsufficientBalance when the spendable balance
// cannot cover the amount; the check and the write are one atomic unit.
func (s *Service) Debit(ctx context.Context, address string, amount decimal.Decimal, req EntryRequest) (*models.Balance, error) {
	if err := validateMutation(address, amount); err != nil {
		return nil, err
	}
	return s.store.ApplyEntry(ctx, store.EntryParams{
		Address:     address,
		Type:        models.TxTypeSpent,
		Amount:      amount,
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceId:    req.SourceId,
		Metadata:    req.Metadata,
	})
}

// Transfer atomically moves amount from one address to another. The debit and
// credit commit together or not at all.
func (s *Service) Transfer(ctx context.Context, fromAddress, toAddress string, amount decimal.Decimal, description string, metadata map[string]any) (*store.TransferResult, error) {
	if err := validateMutation(fromAddress, amount); err != nil {
		return nil, err
	}
	if toAddress == "" || toAddress == fromAddress {
		return nil, store.ErrInvalidRecipient
	}
	return s.store.Transfer(ctx, store.TransferParams{
		FromAddress: fromAddress,
		ToAddress:   toAddress,
		Amount:      amount,
		Description: description,
		Metadata:    metadata,
	})
}

// Lock moves amount from the spendable balance into the locked pool. The
// unlock date is advisory caller metadata; nothing here schedules the unlock.
func (s *Service) Lock(ctx context.Context, address string, amount decimal.Decimal, description string, unlockDate time.Time, metadata map[string]any) (*models.Balance, error) {
	if err := validateMutation(address, amount); err != nil {
		return nil, err
	}
	if !unlockDate.After(s.now()) {
		return nil, store.ErrInvalidUnlockDate
	}

	withUnlock := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		withUnlock[k] = v
	}
	withUnlock["unlock_date"] = unlockDate.UTC().Format(time.RFC3339)

	return s.store.ApplyEntry(ctx, store.EntryParams{
		Address:     address,
		Type:        models.TxTypeLocked,
		Amount:      amount,
		Description: description,
		SourceType:  "lock",
		Metadata:    withUnlock,
	})
}

// Unlock moves amount from the locked pool back into the spendable balance.
func (s *Service) Unlock(ctx context.Context, address string, amount decimal.Decimal, description string, metadata map[string]any) (*models.Balance, error) {
	if err := validateMutation(address, amount); err != nil {
		return nil, err
	}
	return s.store.ApplyEntry(ctx, store.EntryParams{
		Address:     address,
		Type:        models.TxTypeUnlocked,
		Amount:      amount,
		Description: description,
		SourceType:  "lock",
		Metadata:    metadata,
	})
}

// GetTransactionHistory returns paginated journal entries, newest first.
func (s *Service) GetTransactionHistory(ctx context.Context, address string, filter store.HistoryFilter) (*models.TransactionPage, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if filter.Limit <= 0 || filter.Limit > maxHistoryLimit {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.GetTransactionHistory(ctx, address, filter)
}

// GetStatistics aggregates supply and holder figures across all accounts.
func (s *Service) GetStatistics(ctx context.Context) (*models.LedgerStatistics, error) {
	stats, err := s.store.GetStatistics(ctx)
	if err != nil {
		zap.L().Error("Failed to compute ledger statistics", zap.Error(err))
		return nil, err
	}
	return stats, nil
}

func validateMutation(address string, amount decimal.Decimal) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if !amount.IsPositive() {
		return store.ErrInvalidAmount
	}
	return nil
}
