package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/motormate/dealer_backoffice/internal/apperrors"
	"github.com/motormate/dealer_backoffice/internal/core/domain"
	portsrepo "github.com/motormate/dealer_backoffice/internal/core/ports/repositories"
	portssvc "github.com/motormate/dealer_backoffice/internal/core/ports/services"
	"github.com/motormate/dealer_backoffice/internal/middleware"
	"github.com/motormate/dealer_backoffice/internal/utils/billing"
	"github.com/shopspring/decimal"
)

var (
	ErrCustomerRequired  = errors.New("customer id is required")
	ErrReferenceRequired = errors.New("reference id is required")
)

// ledgerService maintains the per-customer running balance. Every record
// operation is a read-latest, compute, append-one-row cycle; the repository
// serializes it per customer so concurrent operations never lose an update.
type ledgerService struct {
	ledgerRepo portsrepo.LedgerRepositoryFacade
}

// NewLedgerService creates a new ledger service over the given store.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepositoryFacade) portssvc.LedgerSvcFacade {
	return &ledgerService{ledgerRepo: ledgerRepo}
}

// Ensure ledgerService implements the portssvc.LedgerSvcFacade interface
var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// append persists one signed transaction and returns the resulting balance.
func (s *ledgerService) append(ctx context.Context, customerID string, txType domain.TransactionType, amount decimal.Decimal, referenceID, description string) (decimal.Decimal, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if customerID == "" {
		return decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrValidation, ErrCustomerRequired)
	}
	if referenceID == "" {
		return decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrValidation, ErrReferenceRequired)
	}

	txn := domain.LedgerTransaction{
		TransactionID: uuid.NewString(),
		CustomerID:    customerID,
		Type:          txType,
		Amount:        amount,
		ReferenceID:   referenceID,
		Description:   description,
	}

	saved, err := s.ledgerRepo.AppendTransaction(ctx, txn)
	if err != nil {
		logger.Error("Failed to append ledger transaction",
			slog.String("customer_id", customerID),
			slog.String("type", string(txType)),
			slog.String("reference_id", referenceID),
			slog.String("error", err.Error()))
		return decimal.Zero, fmt.Errorf("failed to append %s transaction: %w", txType, err)
	}

	logger.Info("Ledger transaction appended",
		slog.String("transaction_id", saved.TransactionID),
		slog.String("customer_id", customerID),
		slog.String("type", string(txType)),
		slog.String("amount", amount.String()),
		slog.String("balance_after", saved.BalanceAfter.String()))
	return saved.BalanceAfter, nil
}

// RecordDealCreated debits the customer: a new deal is a debt they now owe.
func (s *ledgerService) RecordDealCreated(ctx context.Context, dealID, customerID string, sellingPrice decimal.Decimal, title string) (decimal.Decimal, error) {
	return s.append(ctx, customerID, domain.DealCreated, sellingPrice.Neg(), dealID, title)
}

// RecordDealDeleted reverses the debt after a deal is deleted outright.
func (s *ledgerService) RecordDealDeleted(ctx context.Context, dealID, customerID string, sellingPrice decimal.Decimal, title string) (decimal.Decimal, error) {
	return s.append(ctx, customerID, domain.DealDeleted, sellingPrice, dealID, title)
}

// RecordDealCancelled reverses the original debit and then purges the
// historical deal_created row so it does not remain as a moot entry.
// The purge is best-effort: when it fails the reversal stands and the result
// flags the row for the reconciliation sweep.
func (s *ledgerService) RecordDealCancelled(ctx context.Context, dealID, customerID string, sellingPrice decimal.Decimal, title string) (domain.CancellationResult, decimal.Decimal, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	balance, err := s.append(ctx, customerID, domain.DealDeleted, sellingPrice, dealID, fmt.Sprintf("cancelled: %s", title))
	if err != nil {
		return "", decimal.Zero, err
	}

	if err := s.ledgerRepo.DeleteDealCreatedTransaction(ctx, customerID, dealID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Nothing left to purge; the original row was already gone.
			logger.Warn("No deal_created row found while cancelling deal",
				slog.String("deal_id", dealID), slog.String("customer_id", customerID))
			return domain.CancellationReversed, balance, nil
		}
		logger.Warn("Ledger reversed but deal_created row could not be purged",
			slog.String("deal_id", dealID),
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()))
		return domain.CancellationNeedsReconciliation, balance, nil
	}

	return domain.CancellationReversed, balance, nil
}

// RecordReceiptCreated applies a bill/receipt to the customer's balance.
// A zero aggregate is a no-op. Negative bills are expenses and debit the
// balance; positive bills credit the full payment amount even when it exceeds
// what the deal still needs (overpayment is intentional, never clamped).
func (s *ledgerService) RecordReceiptCreated(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, deal *domain.Deal) (decimal.Decimal, error) {
	return s.recordBillEffect(ctx, customerID, bill, payments, deal, domain.ReceiptCreated, false, "")
}

// RecordReceiptDeleted appends the exact negation of the effect the matching
// RecordReceiptCreated had.
func (s *ledgerService) RecordReceiptDeleted(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, customerName string) (decimal.Decimal, error) {
	return s.recordBillEffect(ctx, customerID, bill, payments, nil, domain.ReceiptDeleted, true, customerName)
}

// RecordBankTransferOrderCreated applies a standing bank transfer order with
// receipt semantics under its own transaction type.
func (s *ledgerService) RecordBankTransferOrderCreated(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, deal *domain.Deal) (decimal.Decimal, error) {
	return s.recordBillEffect(ctx, customerID, bill, payments, deal, domain.BankTransferOrderCreated, false, "")
}

// RecordBankTransferOrderDeleted reverses a bank transfer order.
func (s *ledgerService) RecordBankTransferOrderDeleted(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, customerName string) (decimal.Decimal, error) {
	return s.recordBillEffect(ctx, customerID, bill, payments, nil, domain.BankTransferOrderDeleted, true, customerName)
}

// recordBillEffect is the shared receipt/bank-order path. negate flips the
// balance change for the deletion variants.
func (s *ledgerService) recordBillEffect(ctx context.Context, customerID string, bill domain.Bill, payments []domain.PaymentItem, deal *domain.Deal, txType domain.TransactionType, negate bool, customerName string) (decimal.Decimal, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	paymentAmount := billing.AggregateBillAmount(bill, bill.Direction, payments)
	if paymentAmount.IsZero() {
		// No payment fields populated; nothing to record.
		logger.Debug("Bill aggregates to zero, skipping ledger append",
			slog.String("bill_id", bill.BillID), slog.String("customer_id", customerID))
		return s.GetCustomerBalance(ctx, customerID)
	}

	// AggregateBillAmount already normalized the sign from the direction:
	// negative bills carry -abs(total), positive bills +abs(total).
	balanceChange := paymentAmount
	if negate {
		balanceChange = balanceChange.Neg()
	}

	if !negate && bill.Direction != domain.DirectionNegative && deal != nil {
		if effective := deal.EffectiveAmount(); paymentAmount.GreaterThan(effective) {
			logger.Warn("Payment exceeds effective deal amount, crediting in full",
				slog.String("bill_id", bill.BillID),
				slog.String("deal_id", deal.DealID),
				slog.String("payment", paymentAmount.String()),
				slog.String("effective_deal_amount", effective.String()))
		}
	}

	description := billing.DescribePayments(bill, payments)
	if negate && customerName != "" {
		description = fmt.Sprintf("removed for %s: %s", customerName, description)
	}

	return s.append(ctx, customerID, txType, balanceChange, bill.BillID, description)
}

// RecordExchangeCarCredit credits the evaluated value of a trade-in vehicle.
// It shares the deal_created type with the deal debit so both land in the
// same logical grouping on the statement.
func (s *ledgerService) RecordExchangeCarCredit(ctx context.Context, dealID, customerID string, carEvalAmount decimal.Decimal, customerName string) (decimal.Decimal, error) {
	if !carEvalAmount.IsPositive() {
		return s.GetCustomerBalance(ctx, customerID)
	}
	description := fmt.Sprintf("trade-in credit for %s", customerName)
	return s.append(ctx, customerID, domain.DealCreated, carEvalAmount, dealID, description)
}

// GetCustomerBalance returns the customer's current balance. A customer with
// no transactions has a balance of zero; store failures propagate.
func (s *ledgerService) GetCustomerBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	if customerID == "" {
		return decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrValidation, ErrCustomerRequired)
	}

	balance, err := s.ledgerRepo.FindLatestBalance(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read balance for customer %s: %w", customerID, err)
	}
	return balance, nil
}

// GetCustomerBalances returns current balances for a batch of customers.
// Every requested ID appears in the result; IDs without transactions map to
// zero, matching GetCustomerBalance called individually.
func (s *ledgerService) GetCustomerBalances(ctx context.Context, customerIDs []string) (map[string]decimal.Decimal, error) {
	if len(customerIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	balances, err := s.ledgerRepo.FindLatestBalances(ctx, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}

	result := make(map[string]decimal.Decimal, len(customerIDs))
	for _, id := range customerIDs {
		if balance, ok := balances[id]; ok {
			result[id] = balance
		} else {
			result[id] = decimal.Zero
		}
	}
	return result, nil
}

// ListCustomerTransactions returns a token-paginated statement, newest first.
func (s *ledgerService) ListCustomerTransactions(ctx context.Context, customerID string, limit int, nextToken *string) ([]domain.LedgerTransaction, *string, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if customerID == "" {
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, ErrCustomerRequired)
	}
	if limit <= 0 {
		limit = 20
	}

	transactions, token, err := s.ledgerRepo.ListTransactionsByCustomerID(ctx, customerID, limit, nextToken)
	if err != nil {
		logger.Error("Failed to list ledger transactions", slog.String("customer_id", customerID), slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("failed to retrieve transactions: %w", err)
	}

	logger.Debug("Ledger transactions listed", slog.String("customer_id", customerID), slog.Int("count", len(transactions)))
	return transactions, token, nil
}

// FindOrphanedDealRows lists deal_created rows whose cancellation reversal
// exists but whose purge failed, for the reconciliation sweep.
func (s *ledgerService) FindOrphanedDealRows(ctx context.Context) ([]domain.LedgerTransaction, error) {
	rows, err := s.ledgerRepo.FindOrphanedDealRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned deal rows: %w", err)
	}
	return rows, nil
}
