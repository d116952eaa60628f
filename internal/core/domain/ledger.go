package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType identifies the balance-affecting event a ledger row records.
type TransactionType string

const (
	DealCreated              TransactionType = "deal_created"
	DealDeleted              TransactionType = "deal_deleted"
	ReceiptCreated           TransactionType = "receipt_created"
	ReceiptDeleted           TransactionType = "receipt_deleted"
	BankTransferOrderCreated TransactionType = "bank_transfer_order_created"
	BankTransferOrderDeleted TransactionType = "bank_transfer_order_deleted"
)

// LedgerTransaction is one append-only row in a customer's balance ledger.
// Rows are never mutated; the customer's current balance is the BalanceAfter
// of the row with the latest (CreatedAt, TransactionID).
type LedgerTransaction struct {
	TransactionID string          `json:"transactionID"` // Primary Key (UUID)
	CustomerID    string          `json:"customerID"`    // Account the row belongs to (Not Null)
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`        // Signed delta; positive credits the customer
	BalanceBefore decimal.Decimal `json:"balanceBefore"` // Balance snapshot before this row
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`  // BalanceBefore + Amount
	ReferenceID   string          `json:"referenceID"`   // Originating deal or bill id
	Description   string          `json:"description"`   // Payment breakdown or deal title
	CreatedAt     time.Time       `json:"createdAt"`     // Ordering key per customer
}

// CancellationResult reports how far a deal cancellation got. A cancellation
// reverses the original debit and then purges the historical deal_created row;
// the purge is best-effort.
type CancellationResult string

const (
	// CancellationReversed: ledger reversed and the history row was deleted.
	CancellationReversed CancellationResult = "reversed"
	// CancellationNeedsReconciliation: ledger reversed but the history row
	// survived; an audit sweep should pick it up.
	CancellationNeedsReconciliation CancellationResult = "needs_reconciliation"
)
