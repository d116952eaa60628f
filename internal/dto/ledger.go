package dto

import (
	"time"

	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RecordDealRequest is the payload for the deal created/deleted/cancelled operations.
type RecordDealRequest struct {
	DealID       string          `json:"dealID" binding:"required"`
	CustomerID   string          `json:"customerID" binding:"required"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Title        string          `json:"title"`
}

// RecordBillRequest is the payload for receipt and bank transfer order operations.
type RecordBillRequest struct {
	CustomerID   string               `json:"customerID" binding:"required"`
	Bill         domain.Bill          `json:"bill" binding:"required"`
	Payments     []domain.PaymentItem `json:"payments"`
	Deal         *domain.Deal         `json:"deal"`
	CustomerName string               `json:"customerName"`
}

// ExchangeCreditRequest is the payload for trade-in vehicle credits.
type ExchangeCreditRequest struct {
	DealID        string          `json:"dealID" binding:"required"`
	CustomerID    string          `json:"customerID" binding:"required"`
	CarEvalAmount decimal.Decimal `json:"carEvalAmount"`
	CustomerName  string          `json:"customerName"`
}

// BalancesRequest asks for the current balance of a batch of customers.
type BalancesRequest struct {
	CustomerIDs []string `json:"customerIDs" binding:"required"`
}

// BalanceResponse carries one customer's resulting balance.
type BalanceResponse struct {
	CustomerID string          `json:"customerID"`
	Balance    decimal.Decimal `json:"balance"`
}

// CancellationResponse reports how far a deal cancellation got.
type CancellationResponse struct {
	Result  domain.CancellationResult `json:"result"`
	Balance decimal.Decimal           `json:"balance"`
}

// BalancesResponse maps customer IDs to their current balances.
type BalancesResponse struct {
	Balances map[string]decimal.Decimal `json:"balances"`
}

// LedgerTransactionResponse is one statement row.
type LedgerTransactionResponse struct {
	TransactionID string          `json:"transactionID"`
	CustomerID    string          `json:"customerID"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	ReferenceID   string          `json:"referenceID"`
	Description   string          `json:"description"`
	CreatedAt     string          `json:"createdAt"`
}

// ListTransactionsResponse is a paginated customer statement.
type ListTransactionsResponse struct {
	Transactions []LedgerTransactionResponse `json:"transactions"`
	NextToken    *string                     `json:"nextToken,omitempty"`
}

// ToLedgerTransactionResponse converts a domain transaction to its response form.
func ToLedgerTransactionResponse(t *domain.LedgerTransaction) LedgerTransactionResponse {
	return LedgerTransactionResponse{
		TransactionID: t.TransactionID,
		CustomerID:    t.CustomerID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		ReferenceID:   t.ReferenceID,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339Nano),
	}
}

// ToLedgerTransactionResponses converts a slice of domain transactions.
func ToLedgerTransactionResponses(ts []domain.LedgerTransaction) []LedgerTransactionResponse {
	responses := make([]LedgerTransactionResponse, len(ts))
	for i := range ts {
		responses[i] = ToLedgerTransactionResponse(&ts[i])
	}
	return responses
}
