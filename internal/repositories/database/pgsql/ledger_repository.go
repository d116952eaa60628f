package pgsql

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/motormate/dealer_backoffice/internal/apperrors"
	"github.com/motormate/dealer_backoffice/internal/core/domain"
	portsrepo "github.com/motormate/dealer_backoffice/internal/core/ports/repositories"
	"github.com/motormate/dealer_backoffice/internal/models"
	"github.com/motormate/dealer_backoffice/internal/utils/mapping"
	"github.com/motormate/dealer_backoffice/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgxLedgerRepository struct {
	BaseRepository
}

// NewLedgerRepository creates a new repository for customer ledger data.
func NewLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure PgxLedgerRepository implements portsrepo.LedgerRepositoryFacade
var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

const ledgerColumns = `transaction_id, customer_id, type, amount, balance_before, balance_after, reference_id, description, created_at`

// AppendTransaction reads the customer's latest balance and inserts one new
// row, all inside a DB transaction holding a row lock on the customer's
// account row. The lock serializes concurrent appends per customer, so the
// read-then-insert never loses an update. Either the full row lands or the
// transaction rolls back.
func (r *PgxLedgerRepository) AppendTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	// Ignored if the transaction commits successfully.
	defer r.Rollback(ctx, tx)

	// Make sure the account row exists, then lock it. The customer_accounts
	// row is the serialization point for this customer's ledger.
	_, err = tx.Exec(ctx, `
		INSERT INTO customer_accounts (customer_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (customer_id) DO NOTHING;
	`, txn.CustomerID, time.Now().UTC())
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to ensure account row for customer "+txn.CustomerID, err)
	}

	var lockedID string
	err = tx.QueryRow(ctx, `
		SELECT customer_id FROM customer_accounts WHERE customer_id = $1 FOR UPDATE;
	`, txn.CustomerID).Scan(&lockedID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to lock account row for customer "+txn.CustomerID, err)
	}

	// Latest balance under the lock; a customer with no rows starts at zero.
	balanceBefore := decimal.Zero
	err = tx.QueryRow(ctx, `
		SELECT balance_after
		FROM ledger_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT 1;
	`, txn.CustomerID).Scan(&balanceBefore)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewAppError(500, "failed to read latest balance for customer "+txn.CustomerID, err)
	}

	modelTxn := mapping.ToModelLedgerTransaction(txn)
	modelTxn.BalanceBefore = balanceBefore
	modelTxn.BalanceAfter = balanceBefore.Add(modelTxn.Amount)
	modelTxn.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_transactions (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`,
		modelTxn.TransactionID,
		modelTxn.CustomerID,
		modelTxn.Type,
		modelTxn.Amount,
		modelTxn.BalanceBefore,
		modelTxn.BalanceAfter,
		modelTxn.ReferenceID,
		modelTxn.Description,
		modelTxn.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to insert ledger transaction "+modelTxn.TransactionID, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}

	saved := mapping.ToDomainLedgerTransaction(modelTxn)
	return &saved, nil
}

// FindLatestBalance returns the balance_after of the customer's most recent
// transaction, or apperrors.ErrNotFound when the customer has none.
func (r *PgxLedgerRepository) FindLatestBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT balance_after
		FROM ledger_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT 1;
	`, customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperrors.ErrNotFound
		}
		return decimal.Zero, apperrors.NewAppError(500, "failed to find latest balance for customer "+customerID, err)
	}
	return balance, nil
}

// FindLatestBalances returns the latest balance per customer for a batch of
// IDs. Customers without transactions are absent from the map.
func (r *PgxLedgerRepository) FindLatestBalances(ctx context.Context, customerIDs []string) (map[string]decimal.Decimal, error) {
	if len(customerIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	rows, err := r.Pool.Query(ctx, `
		SELECT DISTINCT ON (customer_id) customer_id, balance_after
		FROM ledger_transactions
		WHERE customer_id = ANY($1)
		ORDER BY customer_id, created_at DESC, transaction_id DESC;
	`, customerIDs)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query latest balances", err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal, len(customerIDs))
	for rows.Next() {
		var customerID string
		var balance decimal.Decimal
		if err := rows.Scan(&customerID, &balance); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan balance row", err)
		}
		balances[customerID] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating balance rows", err)
	}

	return balances, nil
}

// ListTransactionsByCustomerID retrieves a paginated statement for a customer
// using token-based pagination, newest rows first.
func (r *PgxLedgerRepository) ListTransactionsByCustomerID(ctx context.Context, customerID string, limit int, nextToken *string) ([]domain.LedgerTransaction, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	// Fetch one extra row to determine if there's a next page.
	fetchLimit := limit + 1

	baseQuery := `
		SELECT ` + ledgerColumns + `
		FROM ledger_transactions
		WHERE customer_id = $1
	`
	// Ordering must be stable; transaction_id breaks created_at ties.
	orderByClause := `ORDER BY created_at DESC, transaction_id DESC`

	var rows pgx.Rows
	var err error
	args := []interface{}{customerID}

	if nextToken != nil && *nextToken != "" {
		lastCreatedAt, lastTransactionID, decodeErr := pagination.DecodeToken(*nextToken)
		if decodeErr != nil {
			return nil, nil, apperrors.NewAppError(400, "invalid nextToken", decodeErr)
		}

		cursorClause := `AND (created_at, transaction_id) < ($2, $3)`
		args = append(args, lastCreatedAt, lastTransactionID)

		query := baseQuery + " " + cursorClause + " " + orderByClause + " LIMIT $" + strconv.Itoa(len(args)+1) + ";"
		args = append(args, fetchLimit)
		rows, err = r.Pool.Query(ctx, query, args...)
	} else {
		query := baseQuery + " " + orderByClause + " LIMIT $" + strconv.Itoa(len(args)+1) + ";"
		args = append(args, fetchLimit)
		rows, err = r.Pool.Query(ctx, query, args...)
	}

	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to query transactions for customer "+customerID, err)
	}
	defer rows.Close()

	modelTxns := make([]models.LedgerTransaction, 0, fetchLimit)
	for rows.Next() {
		m, scanErr := scanLedgerTransaction(rows)
		if scanErr != nil {
			return nil, nil, apperrors.NewAppError(500, "failed to scan transaction row for customer "+customerID, scanErr)
		}
		modelTxns = append(modelTxns, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewAppError(500, "error iterating transaction rows for customer "+customerID, err)
	}

	var nextTokenVal *string
	results := modelTxns
	if len(modelTxns) > limit {
		lastTxn := modelTxns[limit-1]
		token := pagination.EncodeToken(lastTxn.CreatedAt, lastTxn.TransactionID)
		nextTokenVal = &token
		results = modelTxns[:limit]
	}

	return mapping.ToDomainLedgerTransactionSlice(results), nextTokenVal, nil
}

// DeleteDealCreatedTransaction removes the deal's original debit row during
// cancellation. Only the negative deal_created row matches: trade-in credits
// share the type and reference id but are positive and must survive.
func (r *PgxLedgerRepository) DeleteDealCreatedTransaction(ctx context.Context, customerID string, dealID string) error {
	cmdTag, err := r.Pool.Exec(ctx, `
		DELETE FROM ledger_transactions
		WHERE customer_id = $1
		  AND reference_id = $2
		  AND type = $3
		  AND amount < 0;
	`, customerID, dealID, models.DealCreated)
	if err != nil {
		return apperrors.NewAppError(500, "failed to delete deal_created row for deal "+dealID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("deal_created row for deal " + dealID + " not found")
	}

	return nil
}

// FindOrphanedDealRows returns deal_created debit rows that a cancellation
// reversed but failed to purge. A row is orphaned when a cancellation
// reversal (deal_deleted with the cancellation description) exists for the
// same customer/deal pair.
func (r *PgxLedgerRepository) FindOrphanedDealRows(ctx context.Context) ([]domain.LedgerTransaction, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_transactions c
		WHERE c.type = $1
		  AND c.amount < 0
		  AND EXISTS (
			SELECT 1 FROM ledger_transactions d
			WHERE d.customer_id = c.customer_id
			  AND d.reference_id = c.reference_id
			  AND d.type = $2
			  AND d.description LIKE 'cancelled: %'
		  )
		ORDER BY c.created_at;
	`, models.DealCreated, models.DealDeleted)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query orphaned deal rows", err)
	}
	defer rows.Close()

	modelTxns := []models.LedgerTransaction{}
	for rows.Next() {
		m, scanErr := scanLedgerTransaction(rows)
		if scanErr != nil {
			return nil, apperrors.NewAppError(500, "failed to scan orphaned deal row", scanErr)
		}
		modelTxns = append(modelTxns, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating orphaned deal rows", err)
	}

	return mapping.ToDomainLedgerTransactionSlice(modelTxns), nil
}

func scanLedgerTransaction(rows pgx.Rows) (models.LedgerTransaction, error) {
	var m models.LedgerTransaction
	err := rows.Scan(
		&m.TransactionID,
		&m.CustomerID,
		&m.Type,
		&m.Amount,
		&m.BalanceBefore,
		&m.BalanceAfter,
		&m.ReferenceID,
		&m.Description,
		&m.CreatedAt,
	)
	return m, err
}
