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

// Package governance implements the proposal and voting state machine.
// Proposals are created active and move forward only: active to completed
// when the end date passes, or to cancelled by their creator.
package governance

import (
	"context"
	"fmt"
	"time"

	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"go.uber.org/zap"
)

// PowerProvider resolves an address to its voting power. Implementations are
// external (tier or NFT derived); the service treats calls as pure reads and
// never caches results.
type PowerProvider interface {
	GetVotingPower(ctx context.Context, address string) (int64, error)
}

// Config carries governance policy values.
type Config struct {
	// ProposalThreshold is the minimum voting power required to create a proposal.
	ProposalThreshold int64
	// DefaultDuration applies when a proposal is created without an explicit duration.
	DefaultDuration time.Duration
}

// Service orchestrates governance operations over a transactional store.
type Service struct {
	store store.GovernanceStore
	power PowerProvider
	cfg   Config
	now   func() time.Time
}

func NewService(governanceStore store.GovernanceStore, power PowerProvider, cfg Config) *Service {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 7 * 24 * time.Hour
	}
	return &Service{
		store: governanceStore,
		power: power,
		cfg:   cfg,
		now:   time.Now,
	}
}

// WithClock overrides the service clock. Used by tests to pin time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateProposalRequest carries the caller-supplied proposal fields.
type CreateProposalRequest struct {
	Title        string
	Description  string
	Category     string
	Options      []string
	DurationDays int
	Metadata     map[string]any
}

// CreateProposal creates a proposal on behalf of creatorAddress. The creator
// must hold at least the configured proposal threshold of voting power.
// Proposals start active immediately; there is no review step.
func (s *Service) CreateProposal(ctx context.Context, creatorAddress string, req CreateProposalRequest) (*models.Proposal, error) {
	if creatorAddress == "" {
		return nil, fmt.Errorf("creator address is required")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := validateOptions(req.Options); err != nil {
		return nil, err
	}

	power, err := s.power.GetVotingPower(ctx, creatorAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve voting power: %w", err)
	}
	if power < s.cfg.ProposalThreshold {
		return nil, store.ErrInsufficientVotingPower
	}

	duration := s.cfg.DefaultDuration
	if req.DurationDays > 0 {
		duration = time.Duration(req.DurationDays) * 24 * time.Hour
	}
	now := s.now()

	return s.store.CreateProposal(ctx, store.CreateProposalParams{
		CreatorAddress: creatorAddress,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Options:        req.Options,
		Status:         models.ProposalStatusActive,
		StartDate:      now,
		EndDate:        now.Add(duration),
		Metadata:       req.Metadata,
	})
}

// CastVote records a vote on an active proposal. The voter's current power is
// snapshotted into the vote; later tier changes never rewrite past votes. At
// most one vote per (proposal, voter) pair ever exists, enforced atomically
// by the store.
func (s *Service) CastVote(ctx context.Context, voterAddress, proposalId, option, reasoning string) (*models.Vote, error) {
	if voterAddress == "" {
		return nil, fmt.Errorf("voter address is required")
	}
	if proposalId == "" {
		return nil, fmt.Errorf("proposal id is required")
	}
	if option == "" {
		return nil, store.ErrInvalidOption
	}

	power, err := s.power.GetVotingPower(ctx, voterAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve voting power: %w", err)
	}
	if power <= 0 {
		return nil, store.ErrInsufficientVotingPower
	}

	// One timestamp for the whole operation: the activity check inside the
	// store transaction and the vote record must agree on "now".
	return s.store.CastVote(ctx, store.CastVoteParams{
		ProposalId:   proposalId,
		VoterAddress: voterAddress,
		Option:       option,
		VotingPower:  power,
		Reasoning:    reasoning,
		Now:          s.now(),
	})
}

// GetProposal returns one proposal by id.
func (s *Service) GetProposal(ctx context.Context, proposalId string) (*models.Proposal, error) {
	if proposalId == "" {
		return nil, store.ErrProposalNotFound
	}
	return s.store.GetProposal(ctx, proposalId)
}

// ListProposals returns proposals newest first, optionally filtered.
func (s *Service) ListProposals(ctx context.Context, filter store.ProposalFilter) ([]models.Proposal, error) {
	return s.store.ListProposals(ctx, filter)
}

// GetUserVote returns the vote an address cast on a proposal, or nil.
func (s *Service) GetUserVote(ctx context.Context, proposalId, voterAddress string) (*models.Vote, error) {
	return s.store.GetVote(ctx, proposalId, voterAddress)
}

// Tally aggregates all votes on one proposal without side effects.
func (s *Service) Tally(ctx context.Context, proposalId string) (*models.TallyResult, error) {
	if proposalId == "" {
		return nil, store.ErrProposalNotFound
	}
	return s.store.Tally(ctx, proposalId)
}

// CloseExpiredProposals completes every active proposal whose end date has
// passed and returns the updated set. Idempotent.
func (s *Service) CloseExpiredProposals(ctx context.Context) ([]models.Proposal, error) {
	closed, err := s.store.CloseExpiredProposals(ctx, s.now())
	if err != nil {
		zap.L().Error("Failed to close expired proposals", zap.Error(err))
		return nil, err
	}
	return closed, nil
}

// CancelProposal cancels a pending or active proposal on behalf of its creator.
func (s *Service) CancelProposal(ctx context.Context, proposalId, requesterAddress string) (*models.Proposal, error) {
	if proposalId == "" {
		return nil, store.ErrProposalNotFound
	}
	if requesterAddress == "" {
		return nil, store.ErrNotProposalCreator
	}
	return s.store.CancelProposal(ctx, proposalId, requesterAddress)
}

// GetUserVotingPower delegates to the external power provider.
func (s *Service) GetUserVotingPower(ctx context.Context, address string) (int64, error) {
	if address == "" {
		return 0, fmt.Errorf("address is required")
	}
	return s.power.GetVotingPower(ctx, address)
}

func validateOptions(options []string) error {
	if len(options) == 0 {
		return store.ErrInvalidOptions
	}
	seen := make(map[string]bool, len(options))
	for _, option := range options {
		if option == "" || seen[option] {
			return store.ErrInvalidOptions
		}
		seen[option] = true
	}
	return nil
}
