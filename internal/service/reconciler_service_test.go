// internal/service/reconciler_service_test.go
package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/notify"
	"payvault-ledger/internal/util"
)

func newTestReconcilerService(ctrl *MockTxController, cache *redis.Client) (ReconcilerService, *MockWalletRepository, *MockTransactionRepository) {
	walletRepo := new(MockWalletRepository)
	txRepo := new(MockTransactionRepository)
	begin, commit, rollback := stubTxFuncs(ctrl)
	svc := NewReconcilerService(nil, new(MockDBExecutor), walletRepo, txRepo, begin, commit, rollback, cache, notify.NopDispatcher{}, slog.Default())
	return svc, walletRepo, txRepo
}

func TestReconcile_InvalidInput(t *testing.T) {
	svc, _, txRepo := newTestReconcilerService(new(MockTxController), nil)

	_, _, err := svc.Reconcile(context.Background(), "", decimal.NewFromInt(100), 1)
	assert.ErrorIs(t, err, util.ErrInvalidReference)

	_, _, err = svc.Reconcile(context.Background(), "PSK_123", decimal.Zero, 1)
	assert.ErrorIs(t, err, util.ErrInvalidAmount)

	txRepo.AssertNotCalled(t, "GetTransactionByReference", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_FirstDelivery_CreditsOnce(t *testing.T) {
	reference := "PSK_first"
	amount := decimal.NewFromInt(2500)
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(nil, util.ErrNotFound)

	var recorded *domain.Transaction
	txRepo.On("CreateTransaction", mock.Anything, ctrl, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) { recorded = args.Get(2).(*domain.Transaction) }).
		Return(nil)
	walletRepo.On("ApplyBalanceDelta", mock.Anything, ctrl, int64(1), amount).Return(nil)
	walletRepo.On("GetWalletByUserID", mock.Anything, ctrl, int64(1)).Return(&domain.Wallet{UserID: 1, Balance: amount}, nil)
	ctrl.On("Commit").Return(nil)
	ctrl.On("Rollback").Return(nil)

	wallet, transaction, err := svc.Reconcile(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(amount))
	require.NotNil(t, transaction.Reference)
	assert.Equal(t, reference, *transaction.Reference)
	assert.Equal(t, domain.TransactionTypeDeposit, recorded.Type)
	assert.Equal(t, domain.TransactionStatusCompleted, recorded.Status)
	ctrl.AssertExpectations(t)
}

func TestReconcile_DuplicateDelivery_ReturnsOriginal(t *testing.T) {
	reference := "PSK_dup"
	amount := decimal.NewFromInt(2500)
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	existing := domain.NewTransaction(1, domain.TransactionTypeDeposit, amount, "External payment", nil)
	existing.Reference = &reference
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(existing, nil)
	walletRepo.On("GetWalletByUserID", mock.Anything, mock.Anything, int64(1)).Return(&domain.Wallet{UserID: 1, Balance: amount}, nil)

	wallet, transaction, err := svc.Reconcile(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, transaction.ID)
	assert.True(t, wallet.Balance.Equal(amount))

	// No second credit: the wallet was never touched through the write path.
	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	txRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
	ctrl.AssertNotCalled(t, "Commit")
}

func TestReconcile_InsertRace_YieldsToWinner(t *testing.T) {
	reference := "PSK_race"
	amount := decimal.NewFromInt(900)
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	winner := domain.NewTransaction(1, domain.TransactionTypeDeposit, amount, "External payment", nil)
	winner.Reference = &reference

	// The pre-insert check misses, then a concurrent delivery lands first and
	// the unique index rejects our insert.
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(nil, util.ErrNotFound).Once()
	txRepo.On("CreateTransaction", mock.Anything, ctrl, mock.AnythingOfType("*domain.Transaction")).Return(util.ErrDuplicateEntry)
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(winner, nil)
	walletRepo.On("GetWalletByUserID", mock.Anything, mock.Anything, int64(1)).Return(&domain.Wallet{UserID: 1, Balance: amount}, nil)
	ctrl.On("Rollback").Return(nil)

	_, transaction, err := svc.Reconcile(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, transaction.ID)

	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ctrl.AssertNotCalled(t, "Commit")
}

func TestReconcile_CacheFastPath(t *testing.T) {
	reference := "PSK_cached"
	amount := decimal.NewFromInt(400)
	cache, cacheMock := redismock.NewClientMock()
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, cache)

	cacheMock.ExpectExists(referenceCacheKey(reference)).SetVal(1)
	cacheMock.ExpectSet(referenceCacheKey(reference), 1, 24*time.Hour).SetVal("OK")

	existing := domain.NewTransaction(1, domain.TransactionTypeDeposit, amount, "External payment", nil)
	existing.Reference = &reference
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(existing, nil)
	walletRepo.On("GetWalletByUserID", mock.Anything, mock.Anything, int64(1)).Return(&domain.Wallet{UserID: 1, Balance: amount}, nil)

	_, transaction, err := svc.Reconcile(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, transaction.ID)

	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestRecordFailed_PersistsAuditWithoutCredit(t *testing.T) {
	reference := "PSK_failed"
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(nil, util.ErrNotFound)
	var recorded *domain.Transaction
	txRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) { recorded = args.Get(2).(*domain.Transaction) }).
		Return(nil)

	transaction, err := svc.RecordFailed(context.Background(), reference, decimal.NewFromInt(100), 1, "gateway declined")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, transaction.Status)

	// The reference lives in metadata only, leaving the unique column free
	// for a later successful reconciliation of the same charge.
	assert.Nil(t, recorded.Reference)
	assert.Equal(t, reference, recorded.Metadata["reference"])
	assert.Equal(t, "gateway declined", recorded.Metadata["failure_reason"])

	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordFailed_EmptyReference(t *testing.T) {
	svc, _, txRepo := newTestReconcilerService(new(MockTxController), nil)

	_, err := svc.RecordFailed(context.Background(), "", decimal.NewFromInt(100), 1, "no reference")
	assert.ErrorIs(t, err, util.ErrInvalidReference)
	txRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordFailed_NonPositiveAmount(t *testing.T) {
	svc, _, txRepo := newTestReconcilerService(new(MockTxController), nil)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-40)} {
		_, err := svc.RecordFailed(context.Background(), "PSK_bad_amount", amount, 1, "declined")
		assert.ErrorIs(t, err, util.ErrInvalidAmount)
	}
	txRepo.AssertNotCalled(t, "GetTransactionByReference", mock.Anything, mock.Anything, mock.Anything)
	txRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func pendingCharge(userID int64, reference string, amount decimal.Decimal) *domain.Transaction {
	transaction := domain.NewTransaction(userID, domain.TransactionTypeDeposit, amount, "External payment initiated", domain.Metadata{
		"reference": reference,
	})
	transaction.Status = domain.TransactionStatusPending
	transaction.Reference = &reference
	return transaction
}

func TestRegisterPending(t *testing.T) {
	reference := "PSK_init"
	amount := decimal.NewFromInt(700)
	svc, walletRepo, txRepo := newTestReconcilerService(new(MockTxController), nil)

	var recorded *domain.Transaction
	txRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) { recorded = args.Get(2).(*domain.Transaction) }).
		Return(nil)

	transaction, err := svc.RegisterPending(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, transaction.Status)

	// Registration claims the unique column up front, so a concurrent
	// registration of the same charge cannot slip in.
	require.NotNil(t, recorded.Reference)
	assert.Equal(t, reference, *recorded.Reference)
	assert.True(t, recorded.Amount.Equal(amount))

	// No money moves at initiation.
	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterPending_DuplicateReference(t *testing.T) {
	svc, _, txRepo := newTestReconcilerService(new(MockTxController), nil)

	txRepo.On("CreateTransaction", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Return(util.ErrDuplicateEntry)

	_, err := svc.RegisterPending(context.Background(), "PSK_taken", decimal.NewFromInt(50), 1)
	assert.ErrorIs(t, err, util.ErrDuplicateEntry)
}

func TestReconcile_CompletesPendingCharge(t *testing.T) {
	reference := "PSK_pending"
	amount := decimal.NewFromInt(1200)
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	pending := pendingCharge(1, reference, amount)
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(pending, nil)
	txRepo.On("UpdateTransactionStatus", mock.Anything, ctrl, pending.ID, domain.TransactionStatusCompleted).Return(nil)
	walletRepo.On("ApplyBalanceDelta", mock.Anything, ctrl, int64(1), amount).Return(nil)
	walletRepo.On("GetWalletByUserID", mock.Anything, ctrl, int64(1)).Return(&domain.Wallet{UserID: 1, Balance: amount}, nil)
	ctrl.On("Commit").Return(nil)
	ctrl.On("Rollback").Return(nil)

	wallet, transaction, err := svc.Reconcile(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, transaction.ID)
	assert.Equal(t, domain.TransactionStatusCompleted, transaction.Status)
	assert.True(t, wallet.Balance.Equal(amount))

	// The registered record transitions in place; no second record appears.
	txRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
	ctrl.AssertExpectations(t)
}

func TestReconcile_PendingAmountMismatch(t *testing.T) {
	reference := "PSK_mismatch"
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	pending := pendingCharge(1, reference, decimal.NewFromInt(1200))
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(pending, nil)

	_, _, err := svc.Reconcile(context.Background(), reference, decimal.NewFromInt(900), 1)
	assert.ErrorIs(t, err, util.ErrInvalidAmount)

	txRepo.AssertNotCalled(t, "UpdateTransactionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ctrl.AssertNotCalled(t, "Commit")
}

func TestReconcile_PendingTransitionRace_YieldsToWinner(t *testing.T) {
	reference := "PSK_trans_race"
	amount := decimal.NewFromInt(300)
	ctrl := new(MockTxController)
	svc, walletRepo, txRepo := newTestReconcilerService(ctrl, nil)

	pending := pendingCharge(1, reference, amount)
	winner := pendingCharge(1, reference, amount)
	winner.ID = pending.ID
	winner.Status = domain.TransactionStatusCompleted

	// A concurrent delivery completes the record between our lookup and our
	// guarded status update; the reload sees the winner's outcome.
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(pending, nil).Once()
	txRepo.On("UpdateTransactionStatus", mock.Anything, ctrl, pending.ID, domain.TransactionStatusCompleted).Return(util.ErrNotFound)
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(winner, nil)
	walletRepo.On("GetWalletByUserID", mock.Anything, mock.Anything, int64(1)).Return(&domain.Wallet{UserID: 1, Balance: amount}, nil)
	ctrl.On("Rollback").Return(nil)

	_, transaction, err := svc.Reconcile(context.Background(), reference, amount, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, transaction.Status)

	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ctrl.AssertNotCalled(t, "Commit")
}

func TestRecordFailed_TransitionsPendingCharge(t *testing.T) {
	reference := "PSK_pending_fail"
	amount := decimal.NewFromInt(800)
	svc, walletRepo, txRepo := newTestReconcilerService(new(MockTxController), nil)

	pending := pendingCharge(1, reference, amount)
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(pending, nil)
	txRepo.On("UpdateTransactionStatus", mock.Anything, mock.Anything, pending.ID, domain.TransactionStatusFailed).Return(nil)

	transaction, err := svc.RecordFailed(context.Background(), reference, amount, 1, "gateway declined")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, transaction.ID)
	assert.Equal(t, domain.TransactionStatusFailed, transaction.Status)

	// The registered record keeps its claim on the reference; nothing new is
	// inserted and no money moves.
	txRepo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_FailedReference_Conflicts(t *testing.T) {
	reference := "PSK_spent"
	amount := decimal.NewFromInt(150)
	svc, walletRepo, txRepo := newTestReconcilerService(new(MockTxController), nil)

	failed := pendingCharge(1, reference, amount)
	failed.Status = domain.TransactionStatusFailed
	txRepo.On("GetTransactionByReference", mock.Anything, mock.Anything, reference).Return(failed, nil)

	_, _, err := svc.Reconcile(context.Background(), reference, amount, 1)
	assert.ErrorIs(t, err, util.ErrDuplicateEntry)
	walletRepo.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
