package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// APIResponse is the JSON envelope returned by every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BalanceView is the external representation of a Balance row.
type BalanceView struct {
	Address      string          `json:"address"`
	Balance      decimal.Decimal `json:"balance"`
	LockedAmount decimal.Decimal `json:"locked_amount"`
	TotalEarned  decimal.Decimal `json:"total_earned"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	UpdatedAt    time.Time       `json:"last_updated"`
}

// TransactionView is the external representation of a journal entry.
type TransactionView struct {
	Id          string          `json:"id"`
	UserAddress string          `json:"user_address"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	SourceType  string          `json:"source_type,omitempty"`
	SourceId    string          `json:"source_id,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreditRequest is the body for credit and debit endpoints.
type CreditRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	SourceType  string          `json:"source_type"`
	SourceId    string          `json:"source_id"`
	Metadata    map[string]any  `json:"metadata"`
}

// TransferRequest is the body for the transfer endpoint.
type TransferRequest struct {
	ToAddress   string          `json:"to_address"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Metadata    map[string]any  `json:"metadata"`
}

// LockRequest is the body for the lock endpoint.
type LockRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	UnlockDate  time.Time       `json:"unlock_date"`
	Metadata    map[string]any  `json:"metadata"`
}

// UnlockRequest is the body for the unlock endpoint.
type UnlockRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Metadata    map[string]any  `json:"metadata"`
}

// CreateProposalRequest is the body for proposal creation.
type CreateProposalRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Options      []string       `json:"options"`
	DurationDays int            `json:"duration_days"`
	Metadata     map[string]any `json:"metadata"`
}

// CastVoteRequest is the body for vote casting.
type CastVoteRequest struct {
	Option    string `json:"option"`
	Reasoning string `json:"reasoning"`
}
