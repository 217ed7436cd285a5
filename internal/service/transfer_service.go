// internal/service/transfer_service.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/notify"
	"payvault-ledger/internal/policy"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/util"
	"payvault-ledger/pkg/db"
)

// TransferResult is the outcome of a completed transfer: both updated
// wallets and both sides of the double entry, linked by a shared
// correlation id.
type TransferResult struct {
	FromWallet *domain.Wallet      `json:"from_wallet"`
	ToWallet   *domain.Wallet      `json:"to_wallet"`
	DebitTx    *domain.Transaction `json:"debit_transaction"`
	CreditTx   *domain.Transaction `json:"credit_transaction"`
}

// TransferService moves funds between two users' wallets as one atomic
// operation: both balance updates and both transaction records commit
// together or not at all.
type TransferService interface {
	Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string, meta domain.Metadata) (*TransferResult, error)
}

// transferService implements the TransferService interface.
type transferService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	userRepo        repository.UserRepository
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	eligibility     policy.Eligibility
	notifier        notify.Dispatcher
}

// NewTransferService creates a new instance of TransferService.
func NewTransferService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	eligibility policy.Eligibility,
	notifier notify.Dispatcher,
) TransferService {
	return &transferService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		eligibility:     eligibility,
		notifier:        notifier,
	}
}

// Transfer debits the sender and credits the recipient inside one SQL
// transaction. Wallet rows are locked in ascending userID order regardless
// of transfer direction, so two opposing transfers between the same pair of
// wallets cannot deadlock.
func (s *transferService) Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string, meta domain.Metadata) (*TransferResult, error) {
	if fromUserID == toUserID {
		return nil, util.ErrSelfTransfer
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	// Eligibility is checked before the SQL transaction opens; nothing
	// blocks on I/O while wallet locks are held.
	recipient, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, toUserID)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to load recipient %d: %w", toUserID, err)
	}
	if allowed, reason := s.eligibility.CanReceive(recipient, amount); !allowed {
		return nil, fmt.Errorf("%w: %s", util.ErrRecipientIneligible, reason)
	}

	var result *TransferResult
	err = s.withRetry(func() error {
		var err error
		result, err = s.execute(ctx, fromUserID, toUserID, amount, description, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(fromUserID, "transfer.sent", map[string]any{
		"amount":         amount.String(),
		"to_user_id":     toUserID,
		"transaction_id": result.DebitTx.ID.String(),
	})
	s.notifier.Dispatch(toUserID, "transfer.received", map[string]any{
		"amount":         amount.String(),
		"from_user_id":   fromUserID,
		"transaction_id": result.CreditTx.ID.String(),
	})
	return result, nil
}

func (s *transferService) execute(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, description string, meta domain.Metadata) (*TransferResult, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("transfer: transaction controller does not implement DBExecutor")
	}

	// Fixed global lock order: ascending userID, not caller-supplied order.
	firstLock, secondLock := fromUserID, toUserID
	if firstLock > secondLock {
		firstLock, secondLock = secondLock, firstLock
	}
	if _, err := s.walletRepo.GetWalletByUserIDForUpdate(ctx, txExecutor, firstLock); err != nil {
		return nil, fmt.Errorf("transfer: failed to lock wallet for user %d: %w", firstLock, err)
	}
	if _, err := s.walletRepo.GetWalletByUserIDForUpdate(ctx, txExecutor, secondLock); err != nil {
		return nil, fmt.Errorf("transfer: failed to lock wallet for user %d: %w", secondLock, err)
	}

	// Debit first: if the sender lacks funds the guarded update applies
	// nothing and no credit is ever attempted.
	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, fromUserID, amount.Neg()); err != nil {
		return nil, err
	}
	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, toUserID, amount); err != nil {
		return nil, fmt.Errorf("transfer: failed to credit recipient %d: %w", toUserID, err)
	}

	correlationID := uuid.New()
	debitMeta := domain.Metadata{"counterparty_id": toUserID}
	creditMeta := domain.Metadata{"counterparty_id": fromUserID}
	for k, v := range meta {
		debitMeta[k] = v
		creditMeta[k] = v
	}

	debitTx := domain.NewTransaction(fromUserID, domain.TransactionTypeTransferOut, amount, description, debitMeta)
	debitTx.CorrelationID = &correlationID
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, debitTx); err != nil {
		return nil, fmt.Errorf("transfer: failed to record debit side: %w", err)
	}

	creditTx := domain.NewTransaction(toUserID, domain.TransactionTypeTransferIn, amount, description, creditMeta)
	creditTx.CorrelationID = &correlationID
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, creditTx); err != nil {
		return nil, fmt.Errorf("transfer: failed to record credit side: %w", err)
	}

	fromWallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to re-fetch sender wallet: %w", err)
	}
	toWallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, toUserID)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to re-fetch recipient wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("transfer: failed to commit transaction: %w", err)
	}

	return &TransferResult{
		FromWallet: fromWallet,
		ToWallet:   toWallet,
		DebitTx:    debitTx,
		CreditTx:   creditTx,
	}, nil
}

// withRetry retries op on transient concurrency conflicts, surfacing
// ErrConcurrentConflict once the bounded attempts are exhausted.
func (s *transferService) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = op()
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", util.ErrConcurrentConflict, err)
}
