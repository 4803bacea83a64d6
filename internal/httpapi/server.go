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

// Package httpapi is the thin REST adapter over the ledger and governance
// services. Every response uses the {success, data, error, code} envelope.
package httpapi

import (
	"errors"
	"net/http"
	"regexp"

	"paion-ledger-go/internal/governance"
	"paion-ledger-go/internal/ledger"
	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
)

// walletHeader carries the authenticated wallet address. Upstream
// authentication (JWT verification) terminates before this service; the
// middleware only enforces the address format.
const walletHeader = "X-Wallet-Address"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type Server struct {
	engine     *gin.Engine
	ledger     *ledger.Service
	governance *governance.Service
}

func NewServer(ledgerService *ledger.Service, governanceService *governance.Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:     gin.New(),
		ledger:     ledgerService,
		governance: governanceService,
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/statistics", s.handleStatistics)
	v1.GET("/balance/:address", s.handleGetBalance)
	v1.GET("/transactions/:address", s.handleTransactionHistory)

	authed := v1.Group("")
	authed.Use(walletAuth())
	authed.POST("/ledger/credit", s.handleCredit)
	authed.POST("/ledger/debit", s.handleDebit)
	authed.POST("/ledger/transfer", s.handleTransfer)
	authed.POST("/ledger/lock", s.handleLock)
	authed.POST("/ledger/unlock", s.handleUnlock)

	v1.GET("/governance/proposals", s.handleListProposals)
	v1.GET("/governance/proposals/:id", s.handleGetProposal)
	v1.GET("/governance/proposals/:id/tally", s.handleTally)
	v1.POST("/governance/sweep", s.handleSweep)
	authed.POST("/governance/proposals", s.handleCreateProposal)
	authed.POST("/governance/proposals/:id/votes", s.handleCastVote)
	authed.DELETE("/governance/proposals/:id", s.handleCancelProposal)
	authed.GET("/governance/voting-power", s.handleVotingPower)
}

// walletAuth extracts and validates the authenticated wallet address header.
func walletAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetHeader(walletHeader)
		if !addressPattern.MatchString(address) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Success: false,
				Error:   "missing or malformed wallet address header",
				Code:    "UNAUTHORIZED",
			})
			return
		}
		c.Set("wallet", address)
		c.Next()
	}
}

func wallet(c *gin.Context) string {
	return c.GetString("wallet")
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, models.APIResponse{Success: true, Data: data})
}

func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, models.APIResponse{Success: false, Error: err.Error(), Code: code})
}

// classify maps service errors to HTTP status and stable error codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	case errors.Is(err, store.ErrInsufficientLockedFunds):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_LOCKED_BALANCE"
	case errors.Is(err, store.ErrInvalidRecipient):
		return http.StatusBadRequest, "INVALID_RECIPIENT"
	case errors.Is(err, store.ErrInvalidUnlockDate):
		return http.StatusBadRequest, "INVALID_UNLOCK_DATE"
	case errors.Is(err, store.ErrInsufficientVotingPower):
		return http.StatusForbidden, "INSUFFICIENT_VOTING_POWER"
	case errors.Is(err, store.ErrProposalNotFound):
		return http.StatusNotFound, "PROPOSAL_NOT_FOUND"
	case errors.Is(err, store.ErrProposalInactive):
		return http.StatusConflict, "PROPOSAL_INACTIVE"
	case errors.Is(err, store.ErrInvalidOption):
		return http.StatusBadRequest, "INVALID_OPTION"
	case errors.Is(err, store.ErrInvalidOptions):
		return http.StatusBadRequest, "INVALID_OPTIONS"
	case errors.Is(err, store.ErrAlreadyVoted):
		return http.StatusConflict, "ALREADY_VOTED"
	case errors.Is(err, store.ErrNotProposalCreator):
		return http.StatusForbidden, "NOT_PROPOSAL_CREATOR"
	case errors.Is(err, store.ErrProposalNotCancellable):
		return http.StatusConflict, "PROPOSAL_NOT_CANCELLABLE"
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusServiceUnavailable, "RETRYABLE_CONFLICT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}
