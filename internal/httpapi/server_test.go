package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paion-ledger-go/internal/database"
	"paion-ledger-go/internal/governance"
	"paion-ledger-go/internal/ledger"

	_ "github.com/mattn/go-sqlite3"
)

const (
	walletAlice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1"
	walletBob   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa2"
	walletCarol = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa3"
)

type testPower map[string]int64

func (p testPower) GetVotingPower(_ context.Context, address string) (int64, error) {
	return p[address], nil
}

func setupServer(t *testing.T) (http.Handler, func()) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	backend, err := database.NewServiceWithDB(db)
	if err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	ledgerService := ledger.NewService(backend)
	governanceService := governance.NewService(backend, testPower{
		walletAlice: 5,
		walletBob:   1,
	}, governance.Config{ProposalThreshold: 3})

	server := NewServer(ledgerService, governanceService)
	return server.Handler(), func() { db.Close() }
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func doRequest(t *testing.T, handler http.Handler, method, path, wallet string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		req.Header.Set(walletHeader, wallet)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	var resp envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder.Code, resp
}

func credit(t *testing.T, handler http.Handler, wallet string, amount string) {
	t.Helper()
	status, resp := doRequest(t, handler, http.MethodPost, "/api/v1/ledger/credit", wallet, map[string]any{
		"amount":      amount,
		"description": "test credit",
		"source_type": "test",
	})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Credit failed: status=%d error=%s", status, resp.Error)
	}
}

func TestHealth(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	status, resp := doRequest(t, handler, http.MethodGet, "/api/v1/health", "", nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Expected healthy response, got status=%d success=%v", status, resp.Success)
	}
}

func TestWalletAuth(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	// No header.
	status, resp := doRequest(t, handler, http.MethodPost, "/api/v1/ledger/credit", "", map[string]any{"amount": "10"})
	if status != http.StatusUnauthorized || resp.Code != "UNAUTHORIZED" {
		t.Errorf("Expected 401 UNAUTHORIZED without header, got %d %s", status, resp.Code)
	}

	// Malformed address.
	status, resp = doRequest(t, handler, http.MethodPost, "/api/v1/ledger/credit", "not-an-address", map[string]any{"amount": "10"})
	if status != http.StatusUnauthorized || resp.Code != "UNAUTHORIZED" {
		t.Errorf("Expected 401 UNAUTHORIZED for malformed address, got %d %s", status, resp.Code)
	}
}

func TestGetBalance(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	status, resp := doRequest(t, handler, http.MethodGet, "/api/v1/balance/"+walletAlice, "", nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Expected zero balance response, got status=%d error=%s", status, resp.Error)
	}
	var view struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("Failed to decode balance view: %v", err)
	}
	if view.Address != walletAlice || view.Balance != "0" {
		t.Errorf("Expected zero balance for %s, got %+v", walletAlice, view)
	}

	status, resp = doRequest(t, handler, http.MethodGet, "/api/v1/balance/short", "", nil)
	if status != http.StatusBadRequest || resp.Code != "INVALID_ADDRESS" {
		t.Errorf("Expected 400 INVALID_ADDRESS, got %d %s", status, resp.Code)
	}
}

func TestCreditDebitFlow(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	credit(t, handler, walletAlice, "100")

	// Debit beyond balance maps to 422 with a stable code and leaves state alone.
	status, resp := doRequest(t, handler, http.MethodPost, "/api/v1/ledger/debit", walletAlice, map[string]any{
		"amount": "150",
	})
	if status != http.StatusUnprocessableEntity || resp.Code != "INSUFFICIENT_BALANCE" {
		t.Fatalf("Expected 422 INSUFFICIENT_BALANCE, got %d %s", status, resp.Code)
	}

	status, resp = doRequest(t, handler, http.MethodGet, "/api/v1/balance/"+walletAlice, "", nil)
	if status != http.StatusOK {
		t.Fatalf("GetBalance failed: %d", status)
	}
	var view struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("Failed to decode balance view: %v", err)
	}
	if view.Balance != "100" {
		t.Errorf("Expected balance 100 after rejected debit, got %s", view.Balance)
	}

	// Zero amount is a 400.
	status, resp = doRequest(t, handler, http.MethodPost, "/api/v1/ledger/debit", walletAlice, map[string]any{
		"amount": "0",
	})
	if status != http.StatusBadRequest || resp.Code != "INVALID_AMOUNT" {
		t.Errorf("Expected 400 INVALID_AMOUNT, got %d %s", status, resp.Code)
	}
}

func TestTransferFlow(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	credit(t, handler, walletAlice, "100")

	status, resp := doRequest(t, handler, http.MethodPost, "/api/v1/ledger/transfer", walletAlice, map[string]any{
		"to_address":  walletBob,
		"amount":      "40",
		"description": "settle debt",
	})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Transfer failed: status=%d error=%s", status, resp.Error)
	}

	var result struct {
		FromBalance struct {
			Balance string `json:"balance"`
		} `json:"from_balance"`
		ToBalance struct {
			Balance string `json:"balance"`
		} `json:"to_balance"`
		CorrelationId string `json:"correlation_id"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("Failed to decode transfer result: %v", err)
	}
	if result.FromBalance.Balance != "60" || result.ToBalance.Balance != "40" {
		t.Errorf("Expected balances 60/40, got %s/%s", result.FromBalance.Balance, result.ToBalance.Balance)
	}
	if result.CorrelationId == "" {
		t.Error("Expected a correlation id")
	}

	// Recipient must be a well-formed address distinct from the sender.
	status, resp = doRequest(t, handler, http.MethodPost, "/api/v1/ledger/transfer", walletAlice, map[string]any{
		"to_address": walletAlice,
		"amount":     "1",
	})
	if status != http.StatusBadRequest || resp.Code != "INVALID_RECIPIENT" {
		t.Errorf("Expected 400 INVALID_RECIPIENT for self transfer, got %d %s", status, resp.Code)
	}
}

func TestLockUnlockFlow(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	credit(t, handler, walletAlice, "60")

	status, resp := doRequest(t, handler, http.MethodPost, "/api/v1/ledger/lock", walletAlice, map[string]any{
		"amount":      "30",
		"unlock_date": time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339),
	})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Lock failed: status=%d error=%s", status, resp.Error)
	}
	var view struct {
		Balance      string `json:"balance"`
		LockedAmount string `json:"locked_amount"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("Failed to decode balance view: %v", err)
	}
	if view.Balance != "30" || view.LockedAmount != "30" {
		t.Errorf("Expected 30/30 after lock, got %s/%s", view.Balance, view.LockedAmount)
	}

	// Past unlock date is rejected.
	status, resp = doRequest(t, handler, http.MethodPost, "/api/v1/ledger/lock", walletAlice, map[string]any{
		"amount":      "10",
		"unlock_date": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	})
	if status != http.StatusBadRequest || resp.Code != "INVALID_UNLOCK_DATE" {
		t.Errorf("Expected 400 INVALID_UNLOCK_DATE, got %d %s", status, resp.Code)
	}

	status, resp = doRequest(t, handler, http.MethodPost, "/api/v1/ledger/unlock", walletAlice, map[string]any{
		"amount": "30",
	})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Unlock failed: status=%d error=%s", status, resp.Error)
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("Failed to decode balance view: %v", err)
	}
	if view.Balance != "60" || view.LockedAmount != "0" {
		t.Errorf("Expected 60/0 after unlock, got %s/%s", view.Balance, view.LockedAmount)
	}
}

func TestTransactionHistoryEndpoint(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	credit(t, handler, walletAlice, "10")
	credit(t, handler, walletAlice, "20")

	status, resp := doRequest(t, handler, http.MethodGet,
		"/api/v1/transactions/"+walletAlice+"?limit=1", "", nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("History failed: status=%d error=%s", status, resp.Error)
	}
	var page struct {
		Transactions []struct {
			Type   string `json:"type"`
			Amount string `json:"amount"`
		} `json:"transactions"`
		TotalCount int64 `json:"total_count"`
		HasMore    bool  `json:"has_more"`
	}
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		t.Fatalf("Failed to decode history page: %v", err)
	}
	if page.TotalCount != 2 || len(page.Transactions) != 1 || !page.HasMore {
		t.Errorf("Expected total=2 page=1 hasMore=true, got total=%d page=%d hasMore=%v",
			page.TotalCount, len(page.Transactions), page.HasMore)
	}
	if page.Transactions[0].Amount != "20" {
		t.Errorf("Expected newest credit first, got amount %s", page.Transactions[0].Amount)
	}
}

func TestGovernanceFlow(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	// Carol has no voting power and cannot create proposals.
	status, resp := doRequest(t, handler, http.MethodPost, "/api/v1/governance/proposals", walletCarol, map[string]any{
		"title":   "Blocked proposal",
		"options": []string{"Yes", "No"},
	})
	if status != http.StatusForbidden || resp.Code != "INSUFFICIENT_VOTING_POWER" {
		t.Fatalf("Expected 403 INSUFFICIENT_VOTING_POWER, got %d %s", status, resp.Code)
	}

	status, resp = doRequest(t, handler, http.MethodPost, "/api/v1/governance/proposals", walletAlice, map[string]any{
		"title":       "Enable staking rewards",
		"description": "Next epoch staking",
		"category":    "treasury",
		"options":     []string{"Yes", "No"},
	})
	if status != http.StatusCreated || !resp.Success {
		t.Fatalf("CreateProposal failed: status=%d error=%s", status, resp.Error)
	}
	var proposal struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &proposal); err != nil {
		t.Fatalf("Failed to decode proposal: %v", err)
	}
	if proposal.Status != "active" {
		t.Errorf("Expected active proposal, got %s", proposal.Status)
	}

	votePath := fmt.Sprintf("/api/v1/governance/proposals/%s/votes", proposal.Id)
	status, resp = doRequest(t, handler, http.MethodPost, votePath, walletBob, map[string]any{
		"option": "Yes",
	})
	if status != http.StatusCreated || !resp.Success {
		t.Fatalf("CastVote failed: status=%d error=%s", status, resp.Error)
	}

	// Same voter again is a conflict.
	status, resp = doRequest(t, handler, http.MethodPost, votePath, walletBob, map[string]any{
		"option": "No",
	})
	if status != http.StatusConflict || resp.Code != "ALREADY_VOTED" {
		t.Errorf("Expected 409 ALREADY_VOTED, got %d %s", status, resp.Code)
	}

	status, resp = doRequest(t, handler, http.MethodGet,
		"/api/v1/governance/proposals/"+proposal.Id+"/tally", "", nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("Tally failed: status=%d error=%s", status, resp.Error)
	}
	if !strings.Contains(string(resp.Data), `"Yes"`) || !strings.Contains(string(resp.Data), `"No"`) {
		t.Errorf("Expected both options in tally, got %s", resp.Data)
	}

	// Cancellation is creator-only.
	status, resp = doRequest(t, handler, http.MethodDelete, "/api/v1/governance/proposals/"+proposal.Id, walletBob, nil)
	if status != http.StatusForbidden || resp.Code != "NOT_PROPOSAL_CREATOR" {
		t.Errorf("Expected 403 NOT_PROPOSAL_CREATOR, got %d %s", status, resp.Code)
	}
	status, resp = doRequest(t, handler, http.MethodDelete, "/api/v1/governance/proposals/"+proposal.Id, walletAlice, nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("CancelProposal failed: status=%d error=%s", status, resp.Error)
	}
}

func TestVotingPowerEndpoint(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	status, resp := doRequest(t, handler, http.MethodGet, "/api/v1/governance/voting-power", walletAlice, nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("VotingPower failed: status=%d error=%s", status, resp.Error)
	}
	var power struct {
		Address     string `json:"address"`
		VotingPower int64  `json:"voting_power"`
	}
	if err := json.Unmarshal(resp.Data, &power); err != nil {
		t.Fatalf("Failed to decode voting power: %v", err)
	}
	if power.Address != walletAlice || power.VotingPower != 5 {
		t.Errorf("Expected power 5 for %s, got %+v", walletAlice, power)
	}
}

func TestProposalNotFound(t *testing.T) {
	handler, cleanup := setupServer(t)
	defer cleanup()

	status, resp := doRequest(t, handler, http.MethodGet, "/api/v1/governance/proposals/missing-id", "", nil)
	if status != http.StatusNotFound || resp.Code != "PROPOSAL_NOT_FOUND" {
		t.Errorf("Expected 404 PROPOSAL_NOT_FOUND, got %d %s", status, resp.Code)
	}
}
