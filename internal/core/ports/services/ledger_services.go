package services

import (
	"context"

	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerSvcFacade exposes the customer balance ledger to the business layer.
// Every record operation appends exactly one signed transaction (or is an
// explicit no-op) and returns the customer's resulting balance.
type LedgerSvcFacade interface {
	// RecordDealCreated debits the customer with the deal's selling price.
	RecordDealCreated(ctx context.Context, dealID, customerID string, sellingPrice decimal.Decimal, title string) (decimal.Decimal, error)

	// RecordDealDeleted reverses a deal's debit after outright deletion.
	RecordDealDeleted(ctx context.Context, dealID, customerID string, sellingPrice decimal.Decimal, title string) (decimal.Decimal, error)

	// RecordDealCancelled reverses the debit and best-effort purges the
	// original deal_created row so it does not linger as a moot entry.
	RecordDealCancelled(ctx context.Context, dealID, customerID string, sellingPrice decimal.Decimal, title string) (domain.CancellationResult, decimal.Decimal, error)

	// RecordReceiptCreated applies a bill/receipt to the balance. Zero
	// aggregate amounts are a no-op. deal may be nil when the receipt is not
	// attached to a deal.
	RecordReceiptCreated(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, deal *domain.Deal) (decimal.Decimal, error)

	// RecordReceiptDeleted appends the exact negation of the effect
	// RecordReceiptCreated had for the same bill.
	RecordReceiptDeleted(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, customerName string) (decimal.Decimal, error)

	// RecordBankTransferOrderCreated applies a standing bank transfer order
	// with receipt semantics under its own transaction type.
	RecordBankTransferOrderCreated(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, deal *domain.Deal) (decimal.Decimal, error)

	// RecordBankTransferOrderDeleted reverses a bank transfer order.
	RecordBankTransferOrderDeleted(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, customerName string) (decimal.Decimal, error)

	// RecordExchangeCarCredit credits the evaluated value of a trade-in
	// vehicle. No-op when the amount is not positive.
	RecordExchangeCarCredit(ctx context.Context, dealID, customerID string, carEvalAmount decimal.Decimal, customerName string) (decimal.Decimal, error)

	// GetCustomerBalance returns the customer's current balance, zero when no
	// transactions exist.
	GetCustomerBalance(ctx context.Context, customerID string) (decimal.Decimal, error)

	// GetCustomerBalances returns balances for a batch of customers; IDs
	// without transactions map to zero.
	GetCustomerBalances(ctx context.Context, customerIDs []string) (map[string]decimal.Decimal, error)

	// ListCustomerTransactions returns a token-paginated statement, newest first.
	ListCustomerTransactions(ctx context.Context, customerID string, limit int, nextToken *string) ([]domain.LedgerTransaction, *string, error)

	// FindOrphanedDealRows lists deal_created rows left behind by
	// cancellations whose cleanup failed.
	FindOrphanedDealRows(ctx context.Context) ([]domain.LedgerTransaction, error)
}
