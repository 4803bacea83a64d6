package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the journal.
const (
	TxTypeEarned      = "earned"
	TxTypeSpent       = "spent"
	TxTypeLocked      = "locked"
	TxTypeUnlocked    = "unlocked"
	TxTypeTransferIn  = "transfer_in"
	TxTypeTransferOut = "transfer_out"
)

// Proposal lifecycle states. Completed and cancelled are terminal.
const (
	ProposalStatusPending   = "pending"
	ProposalStatusActive    = "active"
	ProposalStatusCompleted = "completed"
	ProposalStatusCancelled = "cancelled"
)

// Balance represents the current pAION state for one wallet address (hot data).
// Spendable balance and locked amount are disjoint pools.
type Balance struct {
	Address      string          `db:"address"`
	Balance      decimal.Decimal `db:"balance"`
	LockedAmount decimal.Decimal `db:"locked_amount"`
	TotalEarned  decimal.Decimal `db:"total_earned"`
	TotalSpent   decimal.Decimal `db:"total_spent"`
	Version      int64           `db:"version"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// ZeroBalance returns the default record for an address with no activity yet.
func ZeroBalance(address string) *Balance {
	return &Balance{
		Address:      address,
		Balance:      decimal.Zero,
		LockedAmount: decimal.Zero,
		TotalEarned:  decimal.Zero,
		TotalSpent:   decimal.Zero,
		Version:      0,
	}
}

// Transaction represents one immutable journal entry (cold data).
type Transaction struct {
	Id            string          `db:"id"`
	UserAddress   string          `db:"user_address"`
	Type          string          `db:"transaction_type"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Description   string          `db:"description"`
	SourceType    string          `db:"source_type"`
	SourceId      string          `db:"source_id"`
	Metadata      map[string]any  `db:"metadata"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Proposal represents a governance proposal.
type Proposal struct {
	Id             string         `json:"id" db:"id"`
	CreatorAddress string         `json:"creator_address" db:"creator_address"`
	Title          string         `json:"title" db:"title"`
	Description    string         `json:"description,omitempty" db:"description"`
	Category       string         `json:"category,omitempty" db:"category"`
	Options        []string       `json:"options" db:"options"`
	Status         string         `json:"status" db:"status"`
	StartDate      time.Time      `json:"start_date" db:"start_date"`
	EndDate        time.Time      `json:"end_date" db:"end_date"`
	Metadata       map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Vote represents one cast vote. Voting power is snapshotted at vote time.
type Vote struct {
	Id           string    `json:"id" db:"id"`
	ProposalId   string    `json:"proposal_id" db:"proposal_id"`
	VoterAddress string    `json:"voter_address" db:"voter_address"`
	Option       string    `json:"option" db:"option"`
	VotingPower  int64     `json:"voting_power" db:"voting_power"`
	Reasoning    string    `json:"reasoning,omitempty" db:"reasoning"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TransactionPage is a paginated slice of the journal, newest first.
type TransactionPage struct {
	Transactions []Transaction
	TotalCount   int64
	HasMore      bool
}

// LedgerStatistics aggregates across all accounts.
type LedgerStatistics struct {
	TotalSupply       decimal.Decimal
	CirculatingSupply decimal.Decimal
	TotalHolders      int64
	TotalSpent        decimal.Decimal
	AverageBalance    decimal.Decimal
	GeneratedAt       time.Time
}

// OptionTally is the per-option result of a proposal tally.
type OptionTally struct {
	Count       int64 `json:"count"`
	VotingPower int64 `json:"voting_power"`
}

// TallyResult aggregates all votes on one proposal. Options with no votes
// report zero count and zero power.
type TallyResult struct {
	ProposalId       string                 `json:"proposal_id"`
	Options          map[string]OptionTally `json:"options"`
	TotalVotes       int64                  `json:"total_votes"`
	TotalVotingPower int64                  `json:"total_voting_power"`
}
