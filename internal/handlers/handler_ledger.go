package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/motormate/dealer_backoffice/internal/apperrors"
	portssvc "github.com/motormate/dealer_backoffice/internal/core/ports/services"
	"github.com/motormate/dealer_backoffice/internal/dto"
	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func NewLedgerHandler(ledgerService portssvc.LedgerSvcFacade) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// respondError maps application errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &appErr) && appErr.Code >= 400 && appErr.Code < 500:
		c.JSON(appErr.Code, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RecordDealCreated debits a customer with a new deal's selling price.
func (h *LedgerHandler) RecordDealCreated(c *gin.Context) {
	var req dto.RecordDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordDealCreated(c.Request.Context(), req.DealID, req.CustomerID, req.SellingPrice, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// RecordDealDeleted reverses a deal's debit after outright deletion.
func (h *LedgerHandler) RecordDealDeleted(c *gin.Context) {
	var req dto.RecordDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordDealDeleted(c.Request.Context(), req.DealID, req.CustomerID, req.SellingPrice, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// RecordDealCancelled reverses a deal and purges its original ledger row.
func (h *LedgerHandler) RecordDealCancelled(c *gin.Context) {
	var req dto.RecordDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, balance, err := h.ledgerService.RecordDealCancelled(c.Request.Context(), req.DealID, req.CustomerID, req.SellingPrice, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CancellationResponse{Result: result, Balance: balance})
}

// RecordReceiptCreated applies a bill/receipt to a customer's balance.
func (h *LedgerHandler) RecordReceiptCreated(c *gin.Context) {
	var req dto.RecordBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordReceiptCreated(c.Request.Context(), req.CustomerID, req.Bill, req.Payments, req.Deal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// RecordReceiptDeleted reverses a previously recorded receipt.
func (h *LedgerHandler) RecordReceiptDeleted(c *gin.Context) {
	var req dto.RecordBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordReceiptDeleted(c.Request.Context(), req.CustomerID, req.Bill, req.Payments, req.CustomerName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// RecordBankTransferOrderCreated applies a standing bank transfer order.
func (h *LedgerHandler) RecordBankTransferOrderCreated(c *gin.Context) {
	var req dto.RecordBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordBankTransferOrderCreated(c.Request.Context(), req.CustomerID, req.Bill, req.Payments, req.Deal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// RecordBankTransferOrderDeleted reverses a standing bank transfer order.
func (h *LedgerHandler) RecordBankTransferOrderDeleted(c *gin.Context) {
	var req dto.RecordBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordBankTransferOrderDeleted(c.Request.Context(), req.CustomerID, req.Bill, req.Payments, req.CustomerName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// RecordExchangeCarCredit credits a trade-in vehicle's evaluated value.
func (h *LedgerHandler) RecordExchangeCarCredit(c *gin.Context) {
	var req dto.ExchangeCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledgerService.RecordExchangeCarCredit(c.Request.Context(), req.DealID, req.CustomerID, req.CarEvalAmount, req.CustomerName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: req.CustomerID, Balance: balance})
}

// GetCustomerBalance returns one customer's current balance.
func (h *LedgerHandler) GetCustomerBalance(c *gin.Context) {
	customerID := c.Param("customerID")

	balance, err := h.ledgerService.GetCustomerBalance(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{CustomerID: customerID, Balance: balance})
}

// GetCustomerBalances returns current balances for a batch of customers.
func (h *LedgerHandler) GetCustomerBalances(c *gin.Context) {
	var req dto.BalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balances, err := h.ledgerService.GetCustomerBalances(c.Request.Context(), req.CustomerIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalancesResponse{Balances: balances})
}

// ListCustomerTransactions returns a paginated statement for one customer.
func (h *LedgerHandler) ListCustomerTransactions(c *gin.Context) {
	customerID := c.Param("customerID")

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = parsed
	}

	var nextToken *string
	if token := c.Query("nextToken"); token != "" {
		nextToken = &token
	}

	transactions, token, err := h.ledgerService.ListCustomerTransactions(c.Request.Context(), customerID, limit, nextToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListTransactionsResponse{
		Transactions: dto.ToLedgerTransactionResponses(transactions),
		NextToken:    token,
	})
}

// ListOrphanedDealRows lists deal_created rows left behind by cancellations
// whose cleanup failed, for reconciliation.
func (h *LedgerHandler) ListOrphanedDealRows(c *gin.Context) {
	rows, err := h.ledgerService.FindOrphanedDealRows(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": dto.ToLedgerTransactionResponses(rows)})
}
