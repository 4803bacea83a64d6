package httpapi

import (
	"net/http"
	"strconv"

	"paion-ledger-go/internal/governance"
	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleCreateProposal(c *gin.Context) {
	var req models.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}

	proposal, err := s.governance.CreateProposal(c.Request.Context(), wallet(c), governance.CreateProposalRequest{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Options:      req.Options,
		DurationDays: req.DurationDays,
		Metadata:     req.Metadata,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, proposal)
}

func (s *Server) handleListProposals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	proposals, err := s.governance.ListProposals(c.Request.Context(), store.ProposalFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, proposals)
}

func (s *Server) handleGetProposal(c *gin.Context) {
	proposal, err := s.governance.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Include the caller's own vote when an authenticated header is present.
	if voter := c.GetHeader(walletHeader); addressPattern.MatchString(voter) {
		vote, err := s.governance.GetUserVote(c.Request.Context(), proposal.Id, voter)
		if err == nil && vote != nil {
			respondOK(c, gin.H{"proposal": proposal, "user_vote": vote})
			return
		}
	}
	respondOK(c, gin.H{"proposal": proposal})
}

func (s *Server) handleCastVote(c *gin.Context) {
	var req models.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}

	vote, err := s.governance.CastVote(c.Request.Context(), wallet(c), c.Param("id"), req.Option, req.Reasoning)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, vote)
}

func (s *Server) handleTally(c *gin.Context) {
	tally, err := s.governance.Tally(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tally)
}

func (s *Server) handleSweep(c *gin.Context) {
	closed, err := s.governance.CloseExpiredProposals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"closed": closed, "count": len(closed)})
}

func (s *Server) handleCancelProposal(c *gin.Context) {
	proposal, err := s.governance.CancelProposal(c.Request.Context(), c.Param("id"), wallet(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, proposal)
}

func (s *Server) handleVotingPower(c *gin.Context) {
	power, err := s.governance.GetUserVotingPower(c.Request.Context(), wallet(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"address": wallet(c), "voting_power": power})
}
