package handlers

import (
	"net/http"

	"github.com/motormate/dealer_backoffice/internal/dto"
	"github.com/motormate/dealer_backoffice/internal/utils/settlement"
	"github.com/gin-gonic/gin"
)

type SettlementHandler struct{}

func NewSettlementHandler() *SettlementHandler {
	return &SettlementHandler{}
}

// ComputeSettlement returns the outstanding balance of one deal computed
// from the submitted deal and bills. Pure computation; safe to call on every
// render.
func (h *SettlementHandler) ComputeSettlement(c *gin.Context) {
	var req dto.SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance := settlement.SettlementBalance(req.Deal, req.Bills)
	c.JSON(http.StatusOK, dto.SettlementResponse{
		DealID:  req.Deal.DealID,
		Balance: balance,
		Settled: !balance.IsNegative(),
	})
}
