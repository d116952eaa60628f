package dto

import (
	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SettlementRequest carries one deal and its attached bills, already fetched
// by the caller with whatever joins it needed.
type SettlementRequest struct {
	Deal  domain.Deal   `json:"deal" binding:"required"`
	Bills []domain.Bill `json:"bills"`
}

// SettlementResponse carries the outstanding balance of one deal: negative
// while still owed, zero when settled, positive when overpaid.
type SettlementResponse struct {
	DealID  string          `json:"dealID"`
	Balance decimal.Decimal `json:"balance"`
	Settled bool            `json:"settled"`
}
