package store

import (
	"context"
	"errors"
	"time"

	"paion-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations. Validation
// failures are detected before any mutation is committed; a caller seeing one
// of these can assume no state changed.
var (
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInsufficientBalance      = errors.New("insufficient spendable balance")
	ErrInsufficientLockedFunds  = errors.New("insufficient locked balance")
	ErrInvalidRecipient         = errors.New("invalid transfer recipient")
	ErrInvalidUnlockDate        = errors.New("unlock date must be in the future")
	ErrConcurrentModification   = errors.New("concurrent modification detected")
	ErrProposalNotFound         = errors.New("proposal not found")
	ErrProposalInactive         = errors.New("proposal is not active")
	ErrInvalidOption            = errors.New("option is not part of the proposal")
	ErrInvalidOptions           = errors.New("proposal options must be non-empty and unique")
	ErrAlreadyVoted             = errors.New("voter has already voted on this proposal")
	ErrInsufficientVotingPower  = errors.New("insufficient voting power")
	ErrProposalNotCancellable   = errors.New("proposal can no longer be cancelled")
	ErrNotProposalCreator       = errors.New("only the proposal creator may cancel it")
)

// EntryParams contains the parameters for a single-account ledger mutation.
type EntryParams struct {
	Address     string
	Type        string // earned, spent, locked, unlocked
	Amount      decimal.Decimal
	Description string
	SourceType  string
	SourceId    string
	Metadata    map[string]any
}

// TransferParams contains the parameters for an atomic two-account transfer.
type TransferParams struct {
	FromAddress string
	ToAddress   string
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]any
}

// TransferResult carries both post-transfer balances and the shared
// correlation id linking the two journal entries.
type TransferResult struct {
	FromBalance   *models.Balance
	ToBalance     *models.Balance
	CorrelationId string
}

// HistoryFilter narrows and paginates transaction history queries.
type HistoryFilter struct {
	Limit           int
	Offset          int
	TransactionType string
	SourceType      string
}

// CreateProposalParams contains the parameters for inserting a proposal.
type CreateProposalParams struct {
	CreatorAddress string
	Title          string
	Description    string
	Category       string
	Options        []string
	Status         string
	StartDate      time.Time
	EndDate        time.Time
	Metadata       map[string]any
}

// CastVoteParams contains the parameters for inserting a vote.
type CastVoteParams struct {
	ProposalId   string
	VoterAddress string
	Option       string
	VotingPower  int64
	Reasoning    string
	Now          time.Time
}

// ProposalFilter narrows proposal listings.
type ProposalFilter struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}

// LedgerStore defines the contract a ledger backend must satisfy.
type LedgerStore interface {
	// GetBalance returns the balance row for an address, or a zero-valued
	// record (not persisted) when the account has no activity yet.
	GetBalance(ctx context.Context, address string) (*models.Balance, error)

	// ApplyEntry atomically mutates one account and appends the matching
	// journal record. Sufficiency checks run inside the same transaction.
	ApplyEntry(ctx context.Context, params EntryParams) (*models.Balance, error)

	// Transfer atomically debits the sender and credits the receiver,
	// appending two journal records that share a correlation id.
	Transfer(ctx context.Context, params TransferParams) (*TransferResult, error)

	// GetTransactionHistory returns the journal for an address, newest first.
	GetTransactionHistory(ctx context.Context, address string, filter HistoryFilter) (*models.TransactionPage, error)

	// GetStatistics aggregates supply and holder figures across all accounts.
	GetStatistics(ctx context.Context) (*models.LedgerStatistics, error)
}

// GovernanceStore defines the contract a governance backend must satisfy.
type GovernanceStore interface {
	CreateProposal(ctx context.Context, params CreateProposalParams) (*models.Proposal, error)
	GetProposal(ctx context.Context, proposalId string) (*models.Proposal, error)
	ListProposals(ctx context.Context, filter ProposalFilter) ([]models.Proposal, error)

	// CastVote validates proposal state and vote uniqueness inside a single
	// transaction; a duplicate (proposal, voter) pair fails with ErrAlreadyVoted.
	CastVote(ctx context.Context, params CastVoteParams) (*models.Vote, error)

	GetVote(ctx context.Context, proposalId, voterAddress string) (*models.Vote, error)
	Tally(ctx context.Context, proposalId string) (*models.TallyResult, error)

	// CloseExpiredProposals transitions active proposals past their end date
	// to completed and returns the updated set. Idempotent.
	CloseExpiredProposals(ctx context.Context, now time.Time) ([]models.Proposal, error)

	// CancelProposal transitions a pending or active proposal to cancelled.
	CancelProposal(ctx context.Context, proposalId, requesterAddress string) (*models.Proposal, error)
}
