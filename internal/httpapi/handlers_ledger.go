package httpapi

import (
	"net/http"
	"strconv"

	"paion-ledger-go/internal/ledger"
	"paion-ledger-go/internal/models"
	"paion-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleGetBalance(c *gin.Context) {
	address := c.Param("address")
	if !addressPattern.MatchString(address) {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: "malformed wallet address", Code: "INVALID_ADDRESS",
		})
		return
	}

	balance, err := s.ledger.GetBalance(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balanceView(balance))
}

func (s *Server) handleCredit(c *gin.Context) {
	var req models.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}

	balance, err := s.ledger.Credit(c.Request.Context(), wallet(c), req.Amount, ledgerEntry(req))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balanceView(balance))
}

func (s *Server) handleDebit(c *gin.Context) {
	var req models.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}

	balance, err := s.ledger.Debit(c.Request.Context(), wallet(c), req.Amount, ledgerEntry(req))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balanceView(balance))
}

func (s *Server) handleTransfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}
	if !addressPattern.MatchString(req.ToAddress) {
		respondError(c, store.ErrInvalidRecipient)
		return
	}

	result, err := s.ledger.Transfer(c.Request.Context(), wallet(c), req.ToAddress, req.Amount, req.Description, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"from_balance":   balanceView(result.FromBalance),
		"to_balance":     balanceView(result.ToBalance),
		"correlation_id": result.CorrelationId,
	})
}

func (s *Server) handleLock(c *gin.Context) {
	var req models.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}

	balance, err := s.ledger.Lock(c.Request.Context(), wallet(c), req.Amount, req.Description, req.UnlockDate, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balanceView(balance))
}

func (s *Server) handleUnlock(c *gin.Context) {
	var req models.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: err.Error(), Code: "BAD_REQUEST",
		})
		return
	}

	balance, err := s.ledger.Unlock(c.Request.Context(), wallet(c), req.Amount, req.Description, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, balanceView(balance))
}

func (s *Server) handleTransactionHistory(c *gin.Context) {
	address := c.Param("address")
	if !addressPattern.MatchString(address) {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false, Error: "malformed wallet address", Code: "INVALID_ADDRESS",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := s.ledger.GetTransactionHistory(c.Request.Context(), address, store.HistoryFilter{
		Limit:           limit,
		Offset:          offset,
		TransactionType: c.Query("type"),
		SourceType:      c.Query("source_type"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]models.TransactionView, len(page.Transactions))
	for i, tx := range page.Transactions {
		views[i] = models.TransactionView{
			Id:          tx.Id,
			UserAddress: tx.UserAddress,
			Type:        tx.Type,
			Amount:      tx.Amount,
			Description: tx.Description,
			SourceType:  tx.SourceType,
			SourceId:    tx.SourceId,
			Metadata:    tx.Metadata,
			CreatedAt:   tx.CreatedAt,
		}
	}

	respondOK(c, gin.H{
		"transactions": views,
		"total_count":  page.TotalCount,
		"has_more":     page.HasMore,
	})
}

func (s *Server) handleStatistics(c *gin.Context) {
	stats, err := s.ledger.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"total_supply":       stats.TotalSupply,
		"circulating_supply": stats.CirculatingSupply,
		"total_holders":      stats.TotalHolders,
		"total_spent":        stats.TotalSpent,
		"average_balance":    stats.AverageBalance,
		"generated_at":       stats.GeneratedAt,
	})
}

func ledgerEntry(req models.CreditRequest) ledger.EntryRequest {
	return ledger.EntryRequest{
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceId:    req.SourceId,
		Metadata:    req.Metadata,
	}
}

func balanceView(balance *models.Balance) models.BalanceView {
	return models.BalanceView{
		Address:      balance.Address,
		Balance:      balance.Balance,
		LockedAmount: balance.LockedAmount,
		TotalEarned:  balance.TotalEarned,
		TotalSpent:   balance.TotalSpent,
		UpdatedAt:    balance.UpdatedAt,
	}
}
