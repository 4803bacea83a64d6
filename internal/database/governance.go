package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateProposal inserts a new proposal row.
func (s *Service) CreateProposal(ctx context.Context, params store.CreateProposalParams) (*models.Proposal, error) {
	options, err := json.Marshal(params.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	metadata, err := marshalMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}

	proposal := &models.Proposal{
		Id:             uuid.New().String(),
		CreatorAddress: params.CreatorAddress,
		Title:          params.Title,
		Description:    params.Description,
		Category:       params.Category,
		Options:        params.Options,
		Status:         params.Status,
		StartDate:      params.StartDate,
		EndDate:        params.EndDate,
		Metadata:       params.Metadata,
		CreatedAt:      params.StartDate,
	}

	_, err = s.db.ExecContext(ctx, queryInsertProposal,
		proposal.Id, proposal.CreatorAddress, proposal.Title, proposal.Description,
		proposal.Category, string(options), proposal.Status,
		proposal.StartDate, proposal.EndDate, metadata, proposal.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert proposal: %w", err)
	}

	zap.L().Info("Proposal created",
		zap.String("proposal_id", proposal.Id),
		zap.String("creator", proposal.CreatorAddress),
		zap.String("title", proposal.Title),
		zap.Time("end_date", proposal.EndDate))

	return proposal, nil
}

// GetProposal returns one proposal by id.
func (s *Service) GetProposal(ctx context.Context, proposalId string) (*models.Proposal, error) {
	proposal, err := scanProposal(s.db.QueryRowContext(ctx, queryGetProposal, proposalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal %s: %w", proposalId, err)
	}
	return proposal, nil
}

// ListProposals returns proposals newest first, optionally filtered by status
// and category.
func (s *Service) ListProposals(ctx context.Context, filter store.ProposalFilter) ([]models.Proposal, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, creator_address, title, description, category, options, status,
		       start_date, end_date, metadata, created_at
		FROM proposals
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, strings.Join(clauses, " AND "))

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var proposals []models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposal rows: %w", err)
	}

	return proposals, nil
}

// CastVote validates proposal state and vote uniqueness inside one SQL
// transaction, then inserts the vote. The UNIQUE(proposal_id, voter_address)
// index backstops the in-transaction duplicate check under concurrent
// submission; a constraint hit maps to ErrAlreadyVoted.
func (s *Service) CastVote(ctx context.Context, params store.CastVoteParams) (*models.Vote, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	proposal, err := scanProposal(tx.QueryRowContext(ctx, queryGetProposal, params.ProposalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal %s: %w", params.ProposalId, err)
	}

	if proposal.Status != models.ProposalStatusActive || !params.Now.Before(proposal.EndDate) {
		return nil, store.ErrProposalInactive
	}

	validOption := false
	for _, option := range proposal.Options {
		if option == params.Option {
			validOption = true
			break
		}
	}
	if !validOption {
		return nil, store.ErrInvalidOption
	}

	var existing int64
	if err := tx.QueryRowContext(ctx, queryCountVoterVotes, params.ProposalId, params.VoterAddress).Scan(&existing); err != nil {
		return nil, fmt.Errorf("failed to check existing vote: %w", err)
	}
	if existing > 0 {
		return nil, store.ErrAlreadyVoted
	}

	vote := &models.Vote{
		Id:           uuid.New().String(),
		ProposalId:   params.ProposalId,
		VoterAddress: params.VoterAddress,
		Option:       params.Option,
		VotingPower:  params.VotingPower,
		Reasoning:    params.Reasoning,
		CreatedAt:    params.Now,
	}

	_, err = tx.ExecContext(ctx, queryInsertVote,
		vote.Id, vote.ProposalId, vote.VoterAddress, vote.Option,
		vote.VotingPower, vote.Reasoning, vote.CreatedAt)
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, store.ErrAlreadyVoted
		}
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueConstraint(err) {
			return nil, store.ErrAlreadyVoted
		}
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	zap.L().Info("Vote cast",
		zap.String("proposal_id", vote.ProposalId),
		zap.String("voter", vote.VoterAddress),
		zap.String("option", vote.Option),
		zap.Int64("voting_power", vote.VotingPower))

	return vote, nil
}

// GetVote returns the vote one address cast on one proposal, if any.
func (s *Service) GetVote(ctx context.Context, proposalId, voterAddress string) (*models.Vote, error) {
	var vote models.Vote
	var reasoning sql.NullString
	err := s.db.QueryRowContext(ctx, queryGetVote, proposalId, voterAddress).Scan(
		&vote.Id, &vote.ProposalId, &vote.VoterAddress, &vote.Option,
		&vote.VotingPower, &reasoning, &vote.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	vote.Reasoning = reasoning.String
	return &vote, nil
}

// Tally aggregates all votes on one proposal. Pure read, no side effects.
// Options nobody voted for report zero count and zero power.
func (s *Service) Tally(ctx context.Context, proposalId string) (*models.TallyResult, error) {
	proposal, err := s.GetProposal(ctx, proposalId)
	if err != nil {
		return nil, err
	}

	result := &models.TallyResult{
		ProposalId: proposalId,
		Options:    make(map[string]models.OptionTally, len(proposal.Options)),
	}
	for _, option := range proposal.Options {
		result.Options[option] = models.OptionTally{}
	}

	rows, err := s.db.QueryContext(ctx, queryTallyVotes, proposalId)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var option string
		var tally models.OptionTally
		if err := rows.Scan(&option, &tally.Count, &tally.VotingPower); err != nil {
			return nil, fmt.Errorf("failed to scan tally row: %w", err)
		}
		result.Options[option] = tally
		result.TotalVotes += tally.Count
		result.TotalVotingPower += tally.VotingPower
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tally rows: %w", err)
	}

	return result, nil
}

// CloseExpiredProposals transitions every active proposal past its end date to
// completed and returns the updated set. Running it again without time passing
// returns an empty set; cancelled proposals are never touched.
func (s *Service) CloseExpiredProposals(ctx context.Context, now time.Time) ([]models.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, queryCloseExpiredProposals, now)
	if err != nil {
		return nil, fmt.Errorf("failed to close expired proposals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var closed []models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		closed = append(closed, *proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed proposals: %w", err)
	}

	if len(closed) > 0 {
		zap.L().Info("Closed expired proposals", zap.Int("count", len(closed)))
	}

	return closed, nil
}

// CancelProposal transitions a pending or active proposal to cancelled. Only
// the creator may cancel; completed and cancelled proposals are immutable.
func (s *Service) CancelProposal(ctx context.Context, proposalId, requesterAddress string) (*models.Proposal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	proposal, err := scanProposal(tx.QueryRowContext(ctx, queryGetProposal, proposalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal %s: %w", proposalId, err)
	}

	if proposal.CreatorAddress != requesterAddress {
		return nil, store.ErrNotProposalCreator
	}
	if proposal.Status != models.ProposalStatusPending && proposal.Status != models.ProposalStatusActive {
		return nil, store.ErrProposalNotCancellable
	}

	result, err := tx.ExecContext(ctx, queryCancelProposal, proposalId)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel proposal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, store.ErrProposalNotCancellable
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	proposal.Status = models.ProposalStatusCancelled
	zap.L().Info("Proposal cancelled",
		zap.String("proposal_id", proposalId),
		zap.String("requester", requesterAddress))

	return proposal, nil
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var proposal models.Proposal
	var optionsRaw string
	var description, category, metadata sql.NullString
	err := row.Scan(&proposal.Id, &proposal.CreatorAddress, &proposal.Title,
		&description, &category, &optionsRaw, &proposal.Status,
		&proposal.StartDate, &proposal.EndDate, &metadata, &proposal.CreatedAt)
	if err != nil {
		return nil, err
	}

	proposal.Description = description.String
	proposal.Category = category.String
	if err := json.Unmarshal([]byte(optionsRaw), &proposal.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options %q: %w", optionsRaw, err)
	}
	if proposal.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}

	return &proposal, nil
}
