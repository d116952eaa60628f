package models

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

// LedgerTransaction mirrors one row of the ledger_transactions table.
type LedgerTransaction struct {
	TransactionID string          `json:"transactionID"` // Primary Key (UUID)
	CustomerID    string          `json:"customerID"`    // FK -> customer_accounts.customer_id (Not Null)
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	ReferenceID   string          `json:"referenceID"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"createdAt"`
}
