package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the balance row for an address. An address with no
// activity yet yields a zero-valued record without persisting anything.
func (s *Service) GetBalance(ctx context.Context, address string) (*models.Balance, error) {
	balance, err := scanBalance(s.db.QueryRowContext(ctx, queryGetBalance, address))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ZeroBalance(address), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for %s: %w", address, err)
	}
	return balance, nil
}

// ApplyEntry atomically mutates one account and appends the matching journal
// record. The sufficiency check, journal insert and compare-and-swap balance
// update run inside a single SQL transaction; a CAS miss retries the whole
// transaction up to casRetries times.
func (s *Service) ApplyEntry(ctx context.Context, params store.EntryParams) (*models.Balance, error) {
	var balance *models.Balance
	err := s.withCASRetry(ctx, func(tx *sql.Tx) error {
		var applyErr error
		balance, _, applyErr = s.applyEntryTx(ctx, tx, params, time.Now())
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Ledger entry applied",
		zap.String("address", params.Address),
		zap.String("type", params.Type),
		zap.String("amount", params.Amount.String()),
		zap.String("new_balance", balance.Balance.String()),
		zap.String("new_locked", balance.LockedAmount.String()))

	return balance, nil
}

// Transfer atomically debits the sender and credits the receiver. Both legs
// and both journal records commit together or not at all; the records share a
// freshly generated correlation id in source_id.
func (s *Service) Transfer(ctx context.Context, params store.TransferParams) (*store.TransferResult, error) {
	if params.FromAddress == params.ToAddress {
		return nil, store.ErrInvalidRecipient
	}

	correlationId := uuid.New().String()
	result := &store.TransferResult{CorrelationId: correlationId}

	err := s.withCASRetry(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		fromBalance, _, err := s.applyEntryTx(ctx, tx, store.EntryParams{
			Address:     params.FromAddress,
			Type:        models.TxTypeTransferOut,
			Amount:      params.Amount,
			Description: params.Description,
			SourceType:  "transfer",
			SourceId:    correlationId,
			Metadata:    params.Metadata,
		}, now)
		if err != nil {
			return err
		}

		toBalance, _, err := s.applyEntryTx(ctx, tx, store.EntryParams{
			Address:     params.ToAddress,
			Type:        models.TxTypeTransferIn,
			Amount:      params.Amount,
			Description: params.Description,
			SourceType:  "transfer",
			SourceId:    correlationId,
			Metadata:    params.Metadata,
		}, now)
		if err != nil {
			return err
		}

		result.FromBalance = fromBalance
		result.ToBalance = toBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Transfer completed",
		zap.String("from", params.FromAddress),
		zap.String("to", params.ToAddress),
		zap.String("amount", params.Amount.String()),
		zap.String("correlation_id", correlationId))

	return result, nil
}

// withCASRetry runs fn inside a SQL transaction, retrying the whole
// transaction on optimistic-lock conflicts.
func (s *Service) withCASRetry(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= casRetries; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if errors.Is(err, store.ErrConcurrentModification) {
				lastErr = err
				zap.L().Debug("Optimistic lock conflict, retrying", zap.Int("attempt", attempt))
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	return lastErr
}

// applyEntryTx performs one account mutation inside an open transaction.
// Callers own commit/rollback.
func (s *Service) applyEntryTx(ctx context.Context, tx *sql.Tx, params store.EntryParams, now time.Time) (*models.Balance, *models.Transaction, error) {
	current, err := scanBalance(tx.QueryRowContext(ctx, queryGetBalance, params.Address))
	if errors.Is(err, sql.ErrNoRows) {
		// Accounts are created lazily on first mutation.
		if _, insErr := tx.ExecContext(ctx, queryInsertBalance, params.Address); insErr != nil {
			if isUniqueConstraint(insErr) {
				// Lost a create race with a concurrent mutation.
				return nil, nil, fmt.Errorf("account create race for %s: %w", params.Address, store.ErrConcurrentModification)
			}
			return nil, nil, fmt.Errorf("failed to create balance row: %w", insErr)
		}
		current = models.ZeroBalance(params.Address)
		current.Version = 1
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to read balance for %s: %w", params.Address, err)
	}

	next, err := applyEffect(current, params.Type, params.Amount)
	if err != nil {
		return nil, nil, err
	}

	metadata, err := marshalMetadata(params.Metadata)
	if err != nil {
		return nil, nil, err
	}

	record := &models.Transaction{
		Id:            uuid.New().String(),
		UserAddress:   params.Address,
		Type:          params.Type,
		Amount:        params.Amount,
		BalanceBefore: current.Balance,
		BalanceAfter:  next.Balance,
		Description:   params.Description,
		SourceType:    params.SourceType,
		SourceId:      params.SourceId,
		Metadata:      params.Metadata,
		CreatedAt:     now,
	}

	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		record.Id, record.UserAddress, record.Type, record.Amount.String(),
		record.BalanceBefore.String(), record.BalanceAfter.String(),
		record.Description, record.SourceType, record.SourceId, metadata, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalance,
		next.Balance.String(), next.LockedAmount.String(),
		next.TotalEarned.String(), next.TotalSpent.String(),
		now, params.Address, current.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	next.Version = current.Version + 1
	next.UpdatedAt = now
	return next, record, nil
}

// applyEffect computes the post-mutation balance row for one entry type.
// Sufficiency violations surface as typed errors before anything is written.
// Transfer legs move spendable balance only; lifetime counters track earn and
// spend, so transfers leave them untouched and the total supply is conserved.
func applyEffect(current *models.Balance, entryType string, amount decimal.Decimal) (*models.Balance, error) {
	next := &models.Balance{
		Address:      current.Address,
		Balance:      current.Balance,
		LockedAmount: current.LockedAmount,
		TotalEarned:  current.TotalEarned,
		TotalSpent:   current.TotalSpent,
	}

	switch entryType {
	case models.TxTypeEarned:
		next.Balance = current.Balance.Add(amount)
		next.TotalEarned = current.TotalEarned.Add(amount)
	case models.TxTypeSpent:
		if current.Balance.LessThan(amount) {
			return nil, store.ErrInsufficientBalance
		}
		next.Balance = current.Balance.Sub(amount)
		next.TotalSpent = current.TotalSpent.Add(amount)
	case models.TxTypeLocked:
		if current.Balance.LessThan(amount) {
			return nil, store.ErrInsufficientBalance
		}
		next.Balance = current.Balance.Sub(amount)
		next.LockedAmount = current.LockedAmount.Add(amount)
	case models.TxTypeUnlocked:
		if current.LockedAmount.LessThan(amount) {
			return nil, store.ErrInsufficientLockedFunds
		}
		next.LockedAmount = current.LockedAmount.Sub(amount)
		next.Balance = current.Balance.Add(amount)
	case models.TxTypeTransferOut:
		if current.Balance.LessThan(amount) {
			return nil, store.ErrInsufficientBalance
		}
		next.Balance = current.Balance.Sub(amount)
	case models.TxTypeTransferIn:
		next.Balance = current.Balance.Add(amount)
	default:
		return nil, fmt.Errorf("unknown transaction type %q", entryType)
	}

	return next, nil
}

// GetTransactionHistory returns paginated journal entries for an address,
// newest first, optionally filtered by transaction type and source type.
func (s *Service) GetTransactionHistory(ctx context.Context, address string, filter store.HistoryFilter) (*models.TransactionPage, error) {
	where, args := historyWhere(address, filter)

	var totalCount int64
	countQuery := fmt.Sprintf(queryCountTransactions, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	pageQuery := fmt.Sprintf(queryGetTransactionHistory, where)
	rows, err := s.db.QueryContext(ctx, pageQuery, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return &models.TransactionPage{
		Transactions: transactions,
		TotalCount:   totalCount,
		HasMore:      int64(filter.Offset+filter.Limit) < totalCount,
	}, nil
}

func historyWhere(address string, filter store.HistoryFilter) (string, []any) {
	clauses := []string{"user_address = ?"}
	args := []any{address}
	if filter.TransactionType != "" {
		clauses = append(clauses, "transaction_type = ?")
		args = append(args, filter.TransactionType)
	}
	if filter.SourceType != "" {
		clauses = append(clauses, "source_type = ?")
		args = append(args, filter.SourceType)
	}
	return strings.Join(clauses, " AND "), args
}

// GetStatistics aggregates supply and holder figures across all accounts.
// Sums use decimal arithmetic; SQL float aggregation would lose precision.
func (s *Service) GetStatistics(ctx context.Context) (*models.LedgerStatistics, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	stats := &models.LedgerStatistics{
		TotalSupply:       decimal.Zero,
		CirculatingSupply: decimal.Zero,
		TotalSpent:        decimal.Zero,
		AverageBalance:    decimal.Zero,
		GeneratedAt:       time.Now(),
	}

	for rows.Next() {
		var balanceStr, lockedStr, earnedStr, spentStr string
		if err := rows.Scan(&balanceStr, &lockedStr, &earnedStr, &spentStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}

		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
		}
		earned, err := decimal.NewFromString(earnedStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse total_earned %q: %w", earnedStr, err)
		}
		spent, err := decimal.NewFromString(spentStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse total_spent %q: %w", spentStr, err)
		}

		stats.TotalSupply = stats.TotalSupply.Add(earned)
		stats.CirculatingSupply = stats.CirculatingSupply.Add(balance)
		stats.TotalSpent = stats.TotalSpent.Add(spent)
		if balance.IsPositive() {
			stats.TotalHolders++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	if stats.TotalHolders > 0 {
		stats.AverageBalance = stats.CirculatingSupply.DivRound(decimal.NewFromInt(stats.TotalHolders), 8)
	}

	return stats, nil
}

// ListBalances returns every account with a non-zero spendable or locked
// balance, ordered by address. Used by reporting tools.
func (s *Service) ListBalances(ctx context.Context) ([]models.Balance, error) {
	rows, err := s.db.QueryContext(ctx, queryListBalances)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.Balance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, *balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	return balances, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*models.Balance, error) {
	var balance models.Balance
	var balanceStr, lockedStr, earnedStr, spentStr string
	err := row.Scan(&balance.Address, &balanceStr, &lockedStr, &earnedStr, &spentStr,
		&balance.Version, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if balance.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	if balance.LockedAmount, err = decimal.NewFromString(lockedStr); err != nil {
		return nil, fmt.Errorf("failed to parse locked_amount %q: %w", lockedStr, err)
	}
	if balance.TotalEarned, err = decimal.NewFromString(earnedStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_earned %q: %w", earnedStr, err)
	}
	if balance.TotalSpent, err = decimal.NewFromString(spentStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_spent %q: %w", spentStr, err)
	}

	return &balance, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var record models.Transaction
	var amountStr, beforeStr, afterStr string
	var description, sourceType, sourceId, metadata sql.NullString
	err := row.Scan(&record.Id, &record.UserAddress, &record.Type,
		&amountStr, &beforeStr, &afterStr,
		&description, &sourceType, &sourceId, &metadata, &record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if record.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}
	if record.BalanceBefore, err = decimal.NewFromString(beforeStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance_before %q: %w", beforeStr, err)
	}
	if record.BalanceAfter, err = decimal.NewFromString(afterStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance_after %q: %w", afterStr, err)
	}

	record.Description = description.String
	record.SourceType = sourceType.String
	record.SourceId = sourceId.String
	if record.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}

	return &record, nil
}

func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
