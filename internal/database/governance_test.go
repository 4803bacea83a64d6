package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"
)

func createTestProposal(t *testing.T, service *Service, creator string, end time.Time) *models.Proposal {
	t.Helper()
	proposal, err := service.CreateProposal(context.Background(), store.CreateProposalParams{
		CreatorAddress: creator,
		Title:          "Enable staking rewards",
		Description:    "Should staking rewards be enabled next epoch?",
		Category:       "treasury",
		Options:        []string{"Yes", "No"},
		Status:         models.ProposalStatusActive,
		StartDate:      end.Add(-time.Hour),
		EndDate:        end,
	})
	if err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	return proposal
}

func TestCreateAndGetProposal(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	end := time.Now().UTC().Add(time.Hour)
	created := createTestProposal(t, service, "0xcreator", end)

	if created.Id == "" {
		t.Fatal("Expected a proposal id")
	}
	if created.Status != models.ProposalStatusActive {
		t.Errorf("Expected status active, got %s", created.Status)
	}

	fetched, err := service.GetProposal(context.Background(), created.Id)
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if fetched.Title != created.Title || fetched.CreatorAddress != "0xcreator" {
		t.Errorf("Fetched proposal does not match created: %+v", fetched)
	}
	if len(fetched.Options) != 2 || fetched.Options[0] != "Yes" || fetched.Options[1] != "No" {
		t.Errorf("Expected options [Yes No], got %v", fetched.Options)
	}
	if !fetched.EndDate.Equal(end) {
		t.Errorf("Expected end date %v, got %v", end, fetched.EndDate)
	}
}

func TestGetProposal_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.GetProposal(context.Background(), "missing-id")
	if !errors.Is(err, store.ErrProposalNotFound) {
		t.Fatalf("Expected ErrProposalNotFound, got %v", err)
	}
}

func TestListProposals_Filters(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	end := time.Now().UTC().Add(time.Hour)
	createTestProposal(t, service, "0xcreator", end)
	other, err := service.CreateProposal(ctx, store.CreateProposalParams{
		CreatorAddress: "0xother",
		Title:          "Rotate multisig signers",
		Category:       "operations",
		Options:        []string{"Approve", "Reject"},
		Status:         models.ProposalStatusActive,
		StartDate:      end.Add(-time.Hour),
		EndDate:        end,
	})
	if err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}

	all, err := service.ListProposals(ctx, store.ProposalFilter{})
	if err != nil {
		t.Fatalf("ListProposals failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 proposals, got %d", len(all))
	}

	ops, err := service.ListProposals(ctx, store.ProposalFilter{Category: "operations"})
	if err != nil {
		t.Fatalf("ListProposals failed: %v", err)
	}
	if len(ops) != 1 || ops[0].Id != other.Id {
		t.Fatalf("Expected only the operations proposal, got %d", len(ops))
	}

	none, err := service.ListProposals(ctx, store.ProposalFilter{Status: models.ProposalStatusCompleted})
	if err != nil {
		t.Fatalf("ListProposals failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("Expected no completed proposals, got %d", len(none))
	}
}

func TestCastVote(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	vote, err := service.CastVote(ctx, store.CastVoteParams{
		ProposalId:   proposal.Id,
		VoterAddress: "0xvoter",
		Option:       "Yes",
		VotingPower:  3,
		Reasoning:    "aligned with roadmap",
		Now:          now,
	})
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if vote.VotingPower != 3 {
		t.Errorf("Expected snapshotted voting power 3, got %d", vote.VotingPower)
	}

	stored, err := service.GetVote(ctx, proposal.Id, "0xvoter")
	if err != nil {
		t.Fatalf("GetVote failed: %v", err)
	}
	if stored == nil || stored.Option != "Yes" || stored.Reasoning != "aligned with roadmap" {
		t.Errorf("Stored vote does not match cast vote: %+v", stored)
	}
}

func TestCastVote_Duplicate(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	params := store.CastVoteParams{
		ProposalId:   proposal.Id,
		VoterAddress: "0xvoter",
		Option:       "Yes",
		VotingPower:  1,
		Now:          now,
	}
	if _, err := service.CastVote(ctx, params); err != nil {
		t.Fatalf("First vote failed: %v", err)
	}

	// Changing the option does not help; the voter is still a duplicate.
	params.Option = "No"
	_, err := service.CastVote(ctx, params)
	if !errors.Is(err, store.ErrAlreadyVoted) {
		t.Fatalf("Expected ErrAlreadyVoted, got %v", err)
	}

	tally, err := service.Tally(ctx, proposal.Id)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}
	if tally.TotalVotes != 1 {
		t.Errorf("Expected 1 vote after rejected duplicate, got %d", tally.TotalVotes)
	}
}

func TestCastVote_Validation(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	_, err := service.CastVote(ctx, store.CastVoteParams{
		ProposalId:   "missing-id",
		VoterAddress: "0xvoter",
		Option:       "Yes",
		VotingPower:  1,
		Now:          now,
	})
	if !errors.Is(err, store.ErrProposalNotFound) {
		t.Errorf("Expected ErrProposalNotFound, got %v", err)
	}

	_, err = service.CastVote(ctx, store.CastVoteParams{
		ProposalId:   proposal.Id,
		VoterAddress: "0xvoter",
		Option:       "Maybe",
		VotingPower:  1,
		Now:          now,
	})
	if !errors.Is(err, store.ErrInvalidOption) {
		t.Errorf("Expected ErrInvalidOption, got %v", err)
	}

	// Voting at or past the end date is rejected.
	_, err = service.CastVote(ctx, store.CastVoteParams{
		ProposalId:   proposal.Id,
		VoterAddress: "0xvoter",
		Option:       "Yes",
		VotingPower:  1,
		Now:          proposal.EndDate,
	})
	if !errors.Is(err, store.ErrProposalInactive) {
		t.Errorf("Expected ErrProposalInactive at end date, got %v", err)
	}
}

func TestCastVote_ConcurrentDuplicates(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	const attempts = 50
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CastVote(ctx, store.CastVoteParams{
				ProposalId:   proposal.Id,
				VoterAddress: "0xvoter",
				Option:       "Yes",
				VotingPower:  1,
				Now:          now,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, duplicates := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrAlreadyVoted):
			duplicates++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if successes != 1 || duplicates != attempts-1 {
		t.Fatalf("Expected exactly 1 success and %d duplicates, got %d and %d",
			attempts-1, successes, duplicates)
	}
}

func TestTally_ZeroFillsOptions(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	for i, option := range []string{"Yes", "Yes", "Yes"} {
		_, err := service.CastVote(ctx, store.CastVoteParams{
			ProposalId:   proposal.Id,
			VoterAddress: fmt.Sprintf("0xvoter%d", i),
			Option:       option,
			VotingPower:  int64(i + 1),
			Now:          now,
		})
		if err != nil {
			t.Fatalf("CastVote failed: %v", err)
		}
	}

	tally, err := service.Tally(ctx, proposal.Id)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}

	yes := tally.Options["Yes"]
	if yes.Count != 3 || yes.VotingPower != 6 {
		t.Errorf("Expected Yes count=3 power=6, got count=%d power=%d", yes.Count, yes.VotingPower)
	}
	no, present := tally.Options["No"]
	if !present {
		t.Fatal("Expected No option present in tally")
	}
	if no.Count != 0 || no.VotingPower != 0 {
		t.Errorf("Expected No zero-filled, got count=%d power=%d", no.Count, no.VotingPower)
	}
	if tally.TotalVotes != 3 || tally.TotalVotingPower != 6 {
		t.Errorf("Expected totals votes=3 power=6, got votes=%d power=%d",
			tally.TotalVotes, tally.TotalVotingPower)
	}
}

func TestCloseExpiredProposals(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	expired := createTestProposal(t, service, "0xcreator", now.Add(-time.Minute))
	open := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	closed, err := service.CloseExpiredProposals(ctx, now)
	if err != nil {
		t.Fatalf("CloseExpiredProposals failed: %v", err)
	}
	if len(closed) != 1 || closed[0].Id != expired.Id {
		t.Fatalf("Expected only the expired proposal closed, got %d", len(closed))
	}
	if closed[0].Status != models.ProposalStatusCompleted {
		t.Errorf("Expected status completed, got %s", closed[0].Status)
	}

	stillOpen, err := service.GetProposal(ctx, open.Id)
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if stillOpen.Status != models.ProposalStatusActive {
		t.Errorf("Expected open proposal untouched, got %s", stillOpen.Status)
	}

	// Idempotent: a second sweep at the same instant finds nothing.
	again, err := service.CloseExpiredProposals(ctx, now)
	if err != nil {
		t.Fatalf("CloseExpiredProposals failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("Expected second sweep to close nothing, got %d", len(again))
	}
}

func TestCloseExpiredProposals_SkipsCancelled(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(-time.Minute))

	if _, err := service.CancelProposal(ctx, proposal.Id, "0xcreator"); err != nil {
		t.Fatalf("CancelProposal failed: %v", err)
	}

	closed, err := service.CloseExpiredProposals(ctx, now)
	if err != nil {
		t.Fatalf("CloseExpiredProposals failed: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("Expected cancelled proposal to stay cancelled, got %d closed", len(closed))
	}

	fetched, _ := service.GetProposal(ctx, proposal.Id)
	if fetched.Status != models.ProposalStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", fetched.Status)
	}
}

func TestCancelProposal(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	proposal := createTestProposal(t, service, "0xcreator", now.Add(time.Hour))

	_, err := service.CancelProposal(ctx, proposal.Id, "0xintruder")
	if !errors.Is(err, store.ErrNotProposalCreator) {
		t.Fatalf("Expected ErrNotProposalCreator, got %v", err)
	}

	cancelled, err := service.CancelProposal(ctx, proposal.Id, "0xcreator")
	if err != nil {
		t.Fatalf("CancelProposal failed: %v", err)
	}
	if cancelled.Status != models.ProposalStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", cancelled.Status)
	}

	// Terminal states are immutable.
	_, err = service.CancelProposal(ctx, proposal.Id, "0xcreator")
	if !errors.Is(err, store.ErrProposalNotCancellable) {
		t.Fatalf("Expected ErrProposalNotCancellable, got %v", err)
	}

	// Voting on a cancelled proposal is rejected.
	_, err = service.CastVote(ctx, store.CastVoteParams{
		ProposalId:   proposal.Id,
		VoterAddress: "0xvoter",
		Option:       "Yes",
		VotingPower:  1,
		Now:          now,
	})
	if !errors.Is(err, store.ErrProposalInactive) {
		t.Fatalf("Expected ErrProposalInactive, got %v", err)
	}
}
