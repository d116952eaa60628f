package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/motormate/dealer_backoffice/internal/apperrors"
	"github.com/motormate/dealer_backoffice/internal/core/domain"
	portssvc "github.com/motormate/dealer_backoffice/internal/core/ports/services"
	"github.com/motormate/dealer_backoffice/internal/core/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// --- Mock Repository ---

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) AppendTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, txn)
	// The transaction id is generated inside the service, so expectations
	// return a builder instead of a fixed row.
	if build, ok := args.Get(0).(func(domain.LedgerTransaction) *domain.LedgerTransaction); ok {
		return build(txn), args.Error(1)
	}
	res, _ := args.Get(0).(*domain.LedgerTransaction)
	return res, args.Error(1)
}

func (m *MockLedgerRepository) DeleteDealCreatedTransaction(ctx context.Context, customerID string, dealID string) error {
	args := m.Called(ctx, customerID, dealID)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindLatestBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	args := m.Called(ctx, customerID)
	res, _ := args.Get(0).(decimal.Decimal)
	return res, args.Error(1)
}

func (m *MockLedgerRepository) FindLatestBalances(ctx context.Context, customerIDs []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, customerIDs)
	res, _ := args.Get(0).(map[string]decimal.Decimal)
	return res, args.Error(1)
}

func (m *MockLedgerRepository) ListTransactionsByCustomerID(ctx context.Context, customerID string, limit int, nextToken *string) ([]domain.LedgerTransaction, *string, error) {
	args := m.Called(ctx, customerID, limit, nextToken)
	res, _ := args.Get(0).([]domain.LedgerTransaction)
	token, _ := args.Get(1).(*string)
	return res, token, args.Error(2)
}

func (m *MockLedgerRepository) FindOrphanedDealRows(ctx context.Context) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]domain.LedgerTransaction)
	return res, args.Error(1)
}

// savedTxn echoes the appended row back with balances filled in, the way the
// store does.
func savedTxn(txn domain.LedgerTransaction, balanceBefore decimal.Decimal) *domain.LedgerTransaction {
	saved := txn
	saved.BalanceBefore = balanceBefore
	saved.BalanceAfter = balanceBefore.Add(txn.Amount)
	saved.CreatedAt = time.Now().UTC()
	return &saved
}

// --- Test Suite ---

type LedgerServiceTestSuite struct {
	suite.Suite
	mockRepo *MockLedgerRepository
	service  portssvc.LedgerSvcFacade
	ctx      context.Context
}

func (s *LedgerServiceTestSuite) SetupTest() {
	s.mockRepo = new(MockLedgerRepository)
	s.service = services.NewLedgerService(s.mockRepo)
	s.ctx = context.Background()
}

func TestLedgerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func (s *LedgerServiceTestSuite) expectAppend(match func(domain.LedgerTransaction) bool, balanceBefore decimal.Decimal) {
	s.mockRepo.On("AppendTransaction", s.ctx, mock.MatchedBy(match)).
		Return(func(txn domain.LedgerTransaction) *domain.LedgerTransaction {
			return savedTxn(txn, balanceBefore)
		}, nil).Once()
}

// --- Deal operations ---

func (s *LedgerServiceTestSuite) TestRecordDealCreated_DebitsSellingPrice() {
	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.CustomerID == "cust-1" &&
			txn.Type == domain.DealCreated &&
			txn.Amount.Equal(dec(-350000)) &&
			txn.ReferenceID == "deal-1" &&
			txn.Description == "Mazda 3" &&
			txn.TransactionID != ""
	}, dec(0))

	balance, err := s.service.RecordDealCreated(s.ctx, "deal-1", "cust-1", dec(350000), "Mazda 3")

	s.Require().NoError(err)
	s.True(dec(-350000).Equal(balance))
	s.mockRepo.AssertExpectations(s.T())
}

func (s *LedgerServiceTestSuite) TestRecordDealDeleted_CreditsSellingPrice() {
	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.DealDeleted && txn.Amount.Equal(dec(350000))
	}, dec(-350000))

	balance, err := s.service.RecordDealDeleted(s.ctx, "deal-1", "cust-1", dec(350000), "Mazda 3")

	s.Require().NoError(err)
	s.True(balance.IsZero())
	s.mockRepo.AssertExpectations(s.T())
}

func (s *LedgerServiceTestSuite) TestRecordDealCreated_ValidationErrors() {
	_, err := s.service.RecordDealCreated(s.ctx, "deal-1", "", dec(100), "t")
	s.ErrorIs(err, apperrors.ErrValidation)

	_, err = s.service.RecordDealCreated(s.ctx, "", "cust-1", dec(100), "t")
	s.ErrorIs(err, apperrors.ErrValidation)

	s.mockRepo.AssertNotCalled(s.T(), "AppendTransaction", mock.Anything, mock.Anything)
}

func (s *LedgerServiceTestSuite) TestRecordDealCancelled_PurgeSucceeds() {
	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.DealDeleted &&
			txn.Amount.Equal(dec(50000)) &&
			txn.Description == "cancelled: Kia Picanto"
	}, dec(-50000))
	s.mockRepo.On("DeleteDealCreatedTransaction", s.ctx, "cust-1", "deal-9").Return(nil).Once()

	result, balance, err := s.service.RecordDealCancelled(s.ctx, "deal-9", "cust-1", dec(50000), "Kia Picanto")

	s.Require().NoError(err)
	s.Equal(domain.CancellationReversed, result)
	s.True(balance.IsZero())
	s.mockRepo.AssertExpectations(s.T())
}

func (s *LedgerServiceTestSuite) TestRecordDealCancelled_OriginalRowAlreadyGone() {
	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.DealDeleted
	}, dec(-50000))
	s.mockRepo.On("DeleteDealCreatedTransaction", s.ctx, "cust-1", "deal-9").
		Return(apperrors.NewNotFoundError("deal_created row for deal deal-9 not found")).Once()

	result, _, err := s.service.RecordDealCancelled(s.ctx, "deal-9", "cust-1", dec(50000), "Kia Picanto")

	s.Require().NoError(err)
	s.Equal(domain.CancellationReversed, result)
}

func (s *LedgerServiceTestSuite) TestRecordDealCancelled_PurgeFails() {
	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.DealDeleted
	}, dec(-50000))
	s.mockRepo.On("DeleteDealCreatedTransaction", s.ctx, "cust-1", "deal-9").
		Return(errors.New("connection reset")).Once()

	result, balance, err := s.service.RecordDealCancelled(s.ctx, "deal-9", "cust-1", dec(50000), "Kia Picanto")

	// The reversal stands even though the purge failed.
	s.Require().NoError(err)
	s.Equal(domain.CancellationNeedsReconciliation, result)
	s.True(balance.IsZero())
}

func (s *LedgerServiceTestSuite) TestRecordDealCancelled_AppendFails() {
	s.mockRepo.On("AppendTransaction", s.ctx, mock.Anything).
		Return(nil, errors.New("store down")).Once()

	_, _, err := s.service.RecordDealCancelled(s.ctx, "deal-9", "cust-1", dec(50000), "t")

	s.Error(err)
	s.mockRepo.AssertNotCalled(s.T(), "DeleteDealCreatedTransaction", mock.Anything, mock.Anything, mock.Anything)
}

// --- Receipt / bank transfer order operations ---

func (s *LedgerServiceTestSuite) TestRecordReceiptCreated_CreditsAggregate() {
	bill := domain.Bill{
		BillID:    "bill-1",
		Type:      domain.ReceiptOnly,
		Direction: domain.DirectionPositive,
	}
	payments := []domain.PaymentItem{
		{Amount: dec(500), PaymentType: "visa"},
		{Amount: dec(200), PaymentType: "cash"},
	}

	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.ReceiptCreated &&
			txn.Amount.Equal(dec(700)) &&
			txn.ReferenceID == "bill-1" &&
			txn.Description == "visa: ₪500, cash: ₪200"
	}, dec(-1000))

	balance, err := s.service.RecordReceiptCreated(s.ctx, "cust-1", bill, payments, nil)

	s.Require().NoError(err)
	s.True(dec(-300).Equal(balance))
	s.mockRepo.AssertExpectations(s.T())
}

func (s *LedgerServiceTestSuite) TestRecordReceiptCreated_NegativeBillDebits() {
	bill := domain.Bill{
		BillID:     "bill-2",
		Type:       domain.ReceiptOnly,
		Direction:  domain.DirectionNegative,
		CashAmount: dec(250),
	}

	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.ReceiptCreated && txn.Amount.Equal(dec(-250))
	}, dec(0))

	balance, err := s.service.RecordReceiptCreated(s.ctx, "cust-1", bill, nil, nil)

	s.Require().NoError(err)
	s.True(dec(-250).Equal(balance))
}

func (s *LedgerServiceTestSuite) TestRecordReceiptCreated_ZeroAggregateIsNoOp() {
	bill := domain.Bill{BillID: "bill-3", Type: domain.ReceiptOnly, Direction: domain.DirectionPositive}
	s.mockRepo.On("FindLatestBalance", s.ctx, "cust-1").Return(dec(-1200), nil).Once()

	balance, err := s.service.RecordReceiptCreated(s.ctx, "cust-1", bill, nil, nil)

	s.Require().NoError(err)
	s.True(dec(-1200).Equal(balance))
	s.mockRepo.AssertNotCalled(s.T(), "AppendTransaction", mock.Anything, mock.Anything)
}

func (s *LedgerServiceTestSuite) TestRecordReceiptCreated_OverpaymentCreditedInFull() {
	deal := &domain.Deal{
		DealID:       "deal-1",
		DealType:     domain.DealNormal,
		SellingPrice: dec(1000),
	}
	bill := domain.Bill{
		BillID:     "bill-4",
		Type:       domain.ReceiptOnly,
		Direction:  domain.DirectionPositive,
		CashAmount: dec(1500),
	}

	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Amount.Equal(dec(1500))
	}, dec(-1000))

	balance, err := s.service.RecordReceiptCreated(s.ctx, "cust-1", bill, nil, deal)

	s.Require().NoError(err)
	s.True(dec(500).Equal(balance))
}

func (s *LedgerServiceTestSuite) TestRecordReceiptDeleted_NegatesAndLabels() {
	bill := domain.Bill{
		BillID:     "bill-5",
		Type:       domain.ReceiptOnly,
		Direction:  domain.DirectionPositive,
		CashAmount: dec(700),
	}

	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.ReceiptDeleted &&
			txn.Amount.Equal(dec(-700)) &&
			txn.Description == "removed for Dana Levi: cash: ₪700"
	}, dec(-300))

	balance, err := s.service.RecordReceiptDeleted(s.ctx, "cust-1", bill, nil, "Dana Levi")

	s.Require().NoError(err)
	s.True(dec(-1000).Equal(balance))
}

func (s *LedgerServiceTestSuite) TestRecordBankTransferOrderCreatedAndDeleted() {
	bill := domain.Bill{
		BillID:         "bto-1",
		Type:           domain.ReceiptOnly,
		Direction:      domain.DirectionPositive,
		TransferAmount: dec(2000),
	}

	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.BankTransferOrderCreated && txn.Amount.Equal(dec(2000))
	}, dec(0))
	_, err := s.service.RecordBankTransferOrderCreated(s.ctx, "cust-1", bill, nil, nil)
	s.Require().NoError(err)

	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.BankTransferOrderDeleted && txn.Amount.Equal(dec(-2000))
	}, dec(2000))
	balance, err := s.service.RecordBankTransferOrderDeleted(s.ctx, "cust-1", bill, nil, "Dana Levi")
	s.Require().NoError(err)
	s.True(balance.IsZero())
}

// --- Exchange credit ---

func (s *LedgerServiceTestSuite) TestRecordExchangeCarCredit() {
	s.expectAppend(func(txn domain.LedgerTransaction) bool {
		return txn.Type == domain.DealCreated &&
			txn.Amount.Equal(dec(100000)) &&
			txn.ReferenceID == "deal-1" &&
			txn.Description == "trade-in credit for Dana Levi"
	}, dec(-350000))

	balance, err := s.service.RecordExchangeCarCredit(s.ctx, "deal-1", "cust-1", dec(100000), "Dana Levi")

	s.Require().NoError(err)
	s.True(dec(-250000).Equal(balance))
}

func (s *LedgerServiceTestSuite) TestRecordExchangeCarCredit_NonPositiveIsNoOp() {
	s.mockRepo.On("FindLatestBalance", s.ctx, "cust-1").Return(dec(-500), nil).Twice()

	balance, err := s.service.RecordExchangeCarCredit(s.ctx, "deal-1", "cust-1", decimal.Zero, "Dana Levi")
	s.Require().NoError(err)
	s.True(dec(-500).Equal(balance))

	balance, err = s.service.RecordExchangeCarCredit(s.ctx, "deal-1", "cust-1", dec(-100), "Dana Levi")
	s.Require().NoError(err)
	s.True(dec(-500).Equal(balance))

	s.mockRepo.AssertNotCalled(s.T(), "AppendTransaction", mock.Anything, mock.Anything)
}

// --- Balance reads ---

func (s *LedgerServiceTestSuite) TestGetCustomerBalance_NoTransactionsIsZero() {
	s.mockRepo.On("FindLatestBalance", s.ctx, "cust-new").
		Return(decimal.Zero, apperrors.ErrNotFound).Once()

	balance, err := s.service.GetCustomerBalance(s.ctx, "cust-new")

	s.Require().NoError(err)
	s.True(balance.IsZero())
}

func (s *LedgerServiceTestSuite) TestGetCustomerBalance_StoreErrorPropagates() {
	s.mockRepo.On("FindLatestBalance", s.ctx, "cust-1").
		Return(decimal.Zero, errors.New("connection refused")).Once()

	_, err := s.service.GetCustomerBalance(s.ctx, "cust-1")

	s.Error(err)
	s.NotErrorIs(err, apperrors.ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestGetCustomerBalances_ZeroFillsMissing() {
	ids := []string{"cust-1", "cust-2", "cust-3"}
	s.mockRepo.On("FindLatestBalances", s.ctx, ids).
		Return(map[string]decimal.Decimal{"cust-1": dec(-100), "cust-3": dec(250)}, nil).Once()

	balances, err := s.service.GetCustomerBalances(s.ctx, ids)

	s.Require().NoError(err)
	s.Len(balances, 3)
	s.True(dec(-100).Equal(balances["cust-1"]))
	s.True(balances["cust-2"].IsZero())
	s.True(dec(250).Equal(balances["cust-3"]))
}

func (s *LedgerServiceTestSuite) TestGetCustomerBalances_EmptyInput() {
	balances, err := s.service.GetCustomerBalances(s.ctx, nil)

	s.Require().NoError(err)
	s.Empty(balances)
	s.mockRepo.AssertNotCalled(s.T(), "FindLatestBalances", mock.Anything, mock.Anything)
}

func (s *LedgerServiceTestSuite) TestListCustomerTransactions_DefaultsLimit() {
	s.mockRepo.On("ListTransactionsByCustomerID", s.ctx, "cust-1", 20, (*string)(nil)).
		Return([]domain.LedgerTransaction{}, nil, nil).Once()

	_, _, err := s.service.ListCustomerTransactions(s.ctx, "cust-1", 0, nil)

	s.Require().NoError(err)
	s.mockRepo.AssertExpectations(s.T())
}

// --- Concurrency: the fake store serializes appends per customer the way the
// real store does, with an artificial delay between the balance read and the
// row insert to widen the race window. ---

type fakeLedgerStore struct {
	mu    sync.Mutex
	rows  map[string][]domain.LedgerTransaction
	delay time.Duration
	seq   int64
}

func newFakeLedgerStore(delay time.Duration) *fakeLedgerStore {
	return &fakeLedgerStore{rows: map[string][]domain.LedgerTransaction{}, delay: delay}
}

func (f *fakeLedgerStore) AppendTransaction(_ context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chain := f.rows[txn.CustomerID]
	balanceBefore := decimal.Zero
	if len(chain) > 0 {
		balanceBefore = chain[len(chain)-1].BalanceAfter
	}

	// Without the lock held across this gap, interleaved appends would both
	// read the same balance and one update would be lost.
	time.Sleep(f.delay)

	f.seq++
	txn.BalanceBefore = balanceBefore
	txn.BalanceAfter = balanceBefore.Add(txn.Amount)
	txn.CreatedAt = time.Unix(0, f.seq).UTC()
	f.rows[txn.CustomerID] = append(chain, txn)
	return &txn, nil
}

func (f *fakeLedgerStore) DeleteDealCreatedTransaction(_ context.Context, customerID string, dealID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	chain := f.rows[customerID]
	for i, txn := range chain {
		if txn.Type == domain.DealCreated && txn.ReferenceID == dealID && txn.Amount.IsNegative() {
			f.rows[customerID] = append(chain[:i:i], chain[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFoundError("deal_created row for deal " + dealID + " not found")
}

func (f *fakeLedgerStore) FindLatestBalance(_ context.Context, customerID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chain := f.rows[customerID]
	if len(chain) == 0 {
		return decimal.Zero, apperrors.ErrNotFound
	}
	return chain[len(chain)-1].BalanceAfter, nil
}

func (f *fakeLedgerStore) FindLatestBalances(ctx context.Context, customerIDs []string) (map[string]decimal.Decimal, error) {
	result := map[string]decimal.Decimal{}
	for _, id := range customerIDs {
		balance, err := f.FindLatestBalance(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[id] = balance
	}
	return result, nil
}

func (f *fakeLedgerStore) ListTransactionsByCustomerID(_ context.Context, customerID string, _ int, _ *string) ([]domain.LedgerTransaction, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chain := append([]domain.LedgerTransaction(nil), f.rows[customerID]...)
	sort.Slice(chain, func(i, j int) bool { return chain[i].CreatedAt.After(chain[j].CreatedAt) })
	return chain, nil, nil
}

func (f *fakeLedgerStore) FindOrphanedDealRows(context.Context) ([]domain.LedgerTransaction, error) {
	return nil, nil
}

func TestConcurrentAppends_NoLostUpdates(t *testing.T) {
	store := newFakeLedgerStore(2 * time.Millisecond)
	service := services.NewLedgerService(store)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bill := domain.Bill{
				BillID:     fmt.Sprintf("bill-%d", i),
				Type:       domain.ReceiptOnly,
				Direction:  domain.DirectionPositive,
				CashAmount: dec(100),
			}
			_, err := service.RecordReceiptCreated(ctx, "cust-1", bill, nil, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balance, err := service.GetCustomerBalance(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, dec(workers*100).Equal(balance), "want %d, got %s", workers*100, balance)

	// Every row must chain off the previous row's balance.
	rows, _, err := service.ListCustomerTransactions(ctx, "cust-1", workers, nil)
	require.NoError(t, err)
	require.Len(t, rows, workers)
	for i := len(rows) - 1; i >= 0; i-- {
		assert.True(t, rows[i].BalanceAfter.Equal(rows[i].BalanceBefore.Add(rows[i].Amount)))
		if i < len(rows)-1 {
			assert.True(t, rows[i].BalanceBefore.Equal(rows[i+1].BalanceAfter))
		}
	}
}

func TestConcurrentReceiptAndCancellation_NeitherLost(t *testing.T) {
	store := newFakeLedgerStore(2 * time.Millisecond)
	service := services.NewLedgerService(store)
	ctx := context.Background()

	_, err := service.RecordDealCreated(ctx, "deal-1", "cust-1", dec(350000), "Mazda 3")
	require.NoError(t, err)

	bill := domain.Bill{
		BillID:     "bill-1",
		Type:       domain.ReceiptOnly,
		Direction:  domain.DirectionPositive,
		CashAmount: dec(200000),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := service.RecordReceiptCreated(ctx, "cust-1", bill, nil, nil)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		result, _, err := service.RecordDealCancelled(ctx, "deal-1", "cust-1", dec(350000), "Mazda 3")
		assert.NoError(t, err)
		assert.Equal(t, domain.CancellationReversed, result)
	}()
	wg.Wait()

	// Deal debit and its reversal cancel out; the receipt credit survives
	// regardless of which operation won the race.
	balance, err := service.GetCustomerBalance(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, dec(200000).Equal(balance), "want 200000, got %s", balance)
}

func TestCreateThenDeleteRestoresBalance(t *testing.T) {
	store := newFakeLedgerStore(0)
	service := services.NewLedgerService(store)
	ctx := context.Background()

	before, err := service.GetCustomerBalance(ctx, "cust-1")
	require.NoError(t, err)

	_, err = service.RecordDealCreated(ctx, "deal-1", "cust-1", dec(75000), "Suzuki Swift")
	require.NoError(t, err)

	after, err := service.RecordDealDeleted(ctx, "deal-1", "cust-1", dec(75000), "Suzuki Swift")
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}
