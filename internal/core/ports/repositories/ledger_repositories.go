package repositories

import (
	"context"

	"github.com/motormate/dealer_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerReader defines read operations over the ledger store.
type LedgerReader interface {
	// FindLatestBalance returns the balance_after of the customer's most
	// recent transaction. Returns apperrors.ErrNotFound when the customer has
	// no transactions; callers decide whether that means zero.
	FindLatestBalance(ctx context.Context, customerID string) (decimal.Decimal, error)

	// FindLatestBalances returns the latest balance per customer for a batch
	// of customer IDs. Customers without transactions are absent from the map.
	FindLatestBalances(ctx context.Context, customerIDs []string) (map[string]decimal.Decimal, error)

	// ListTransactionsByCustomerID retrieves a token-paginated statement of a
	// customer's ledger transactions, newest first.
	ListTransactionsByCustomerID(ctx context.Context, customerID string, limit int, nextToken *string) ([]domain.LedgerTransaction, *string, error)

	// FindOrphanedDealRows returns deal_created rows whose cancellation
	// reversal was appended but whose original row was never purged.
	FindOrphanedDealRows(ctx context.Context) ([]domain.LedgerTransaction, error)
}

// LedgerWriter defines write operations over the ledger store.
type LedgerWriter interface {
	// AppendTransaction atomically reads the customer's latest balance,
	// fills in BalanceBefore/BalanceAfter/CreatedAt on the given row, and
	// inserts it. The read-then-insert is serialized per customer at the
	// store boundary, so concurrent appends never lose an update.
	// Either the full row is persisted or nothing is.
	AppendTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error)

	// DeleteDealCreatedTransaction removes the historical deal_created row
	// for the given customer/deal pair. Returns apperrors.ErrNotFound when no
	// such row exists.
	DeleteDealCreatedTransaction(ctx context.Context, customerID string, dealID string) error
}

// LedgerRepositoryFacade combines all ledger repository interfaces for
// clients that need access to every operation.
type LedgerRepositoryFacade interface {
	LedgerReader
	LedgerWriter
}
