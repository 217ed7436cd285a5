// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/notify"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/util"
	"payvault-ledger/pkg/db"
)

// maxConflictRetries bounds transparent retries when a mutation loses a
// serialization or deadlock race. Exhaustion surfaces ErrConcurrentConflict.
const maxConflictRetries = 3

// TxMeta carries the audit fields a caller attaches to a ledger movement.
type TxMeta struct {
	Type          domain.TransactionType
	Description   string
	Reference     *string
	CorrelationID *uuid.UUID
	Metadata      domain.Metadata
}

// LedgerService is the wallet mutator: the only code path permitted to
// change balance, total_invested and total_returns. All balance changes are
// deltas applied by a guarded UPDATE; the non-negative invariant is enforced
// before commit, never repaired after.
type LedgerService interface {
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, meta TxMeta) (*domain.Wallet, *domain.Transaction, error)
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, meta TxMeta) (*domain.Wallet, *domain.Transaction, error)
	GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetTransaction(ctx context.Context, userID int64, transactionID uuid.UUID) (*domain.Transaction, error)
	GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
	CreateUserAndWallet(ctx context.Context, username string) (*domain.User, *domain.Wallet, error)
}

// ledgerService implements the LedgerService interface.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	userRepo        repository.UserRepository
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	notifier        notify.Dispatcher
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	notifier notify.Dispatcher,
) LedgerService {
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		notifier:        notifier,
	}
}

// isRetryableConflict reports whether err is a transient PostgreSQL
// concurrency failure worth retrying: serialization_failure (40001) or
// deadlock_detected (40P01).
func isRetryableConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// Credit adds funds to a user's wallet and records the movement, as one
// atomic unit.
func (s *ledgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, meta TxMeta) (*domain.Wallet, *domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, util.ErrInvalidAmount
	}
	txType := meta.Type
	if txType == "" {
		txType = domain.TransactionTypeDeposit
	}
	// The stored amount is always positive, so the type must carry the
	// direction: a credit recorded under a debit-direction type would read
	// backwards in the audit trail.
	if !txType.Known() || !txType.IsCredit() {
		return nil, nil, fmt.Errorf("%w: %q cannot record a credit", util.ErrInvalidTransactionType, txType)
	}

	var (
		wallet      *domain.Wallet
		transaction *domain.Transaction
	)
	err := s.withRetry(func() error {
		var err error
		wallet, transaction, err = s.applyMovement(ctx, userID, amount, txType, meta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifier.Dispatch(userID, "wallet.credited", map[string]any{
		"amount":         amount.String(),
		"transaction_id": transaction.ID.String(),
	})
	return wallet, transaction, nil
}

// Debit removes funds from a user's wallet and records the movement, as one
// atomic unit. The guarded delta update guarantees that two concurrent
// debits racing over the same funds resolve to exactly one success.
func (s *ledgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, meta TxMeta) (*domain.Wallet, *domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, util.ErrInvalidAmount
	}
	txType := meta.Type
	if txType == "" {
		txType = domain.TransactionTypeWithdrawal
	}
	if !txType.Known() || txType.IsCredit() {
		return nil, nil, fmt.Errorf("%w: %q cannot record a debit", util.ErrInvalidTransactionType, txType)
	}

	var (
		wallet      *domain.Wallet
		transaction *domain.Transaction
	)
	err := s.withRetry(func() error {
		var err error
		wallet, transaction, err = s.applyMovement(ctx, userID, amount.Neg(), txType, meta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.notifier.Dispatch(userID, "wallet.debited", map[string]any{
		"amount":         amount.String(),
		"transaction_id": transaction.ID.String(),
	})
	return wallet, transaction, nil
}

// applyMovement performs one single-wallet mutation: apply the balance delta,
// append the transaction record, refetch, commit. The stored amount is always
// positive; delta carries the direction.
func (s *ledgerService) applyMovement(ctx context.Context, userID int64, delta decimal.Decimal, txType domain.TransactionType, meta TxMeta) (*domain.Wallet, *domain.Transaction, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("ledger: transaction controller does not implement DBExecutor")
	}

	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, userID, delta); err != nil {
		return nil, nil, err
	}

	transaction := domain.NewTransaction(userID, txType, delta.Abs(), meta.Description, meta.Metadata)
	transaction.Reference = meta.Reference
	transaction.CorrelationID = meta.CorrelationID
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return nil, nil, err
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: failed to re-fetch wallet for user %d: %w", userID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("ledger: failed to commit transaction: %w", err)
	}

	return wallet, transaction, nil
}

// withRetry retries op on transient concurrency conflicts, surfacing
// ErrConcurrentConflict once the bounded attempts are exhausted.
func (s *ledgerService) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = op()
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", util.ErrConcurrentConflict, err)
}

// GetWallet returns the current wallet state for a user.
func (s *ledgerService) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetWalletByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetTransaction returns a single transaction record. Records are private to
// their owner: an id belonging to someone else behaves like a missing one.
func (s *ledgerService) GetTransaction(ctx context.Context, userID int64, transactionID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.transactionRepo.GetTransactionByID(ctx, s.dbExecutor, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.UserID != userID {
		return nil, util.ErrNotFound
	}
	return transaction, nil
}

// GetTransactionHistory retrieves a paginated list of a user's transactions.
func (s *ledgerService) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if _, err := s.walletRepo.GetWalletByUserID(ctx, s.dbExecutor, userID); err != nil {
		return nil, 0, err
	}
	transactions, totalCount, err := s.transactionRepo.GetTransactionsByUserID(ctx, s.dbExecutor, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return transactions, totalCount, nil
}

// CreateUserAndWallet creates a user together with their zero-balance
// wallet in one transaction, so a user can never exist without a wallet.
func (s *ledgerService) CreateUserAndWallet(ctx context.Context, username string) (*domain.User, *domain.Wallet, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("create user and wallet: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("create user and wallet: transaction controller does not implement DBExecutor")
	}

	_, err = s.userRepo.GetUserByUsername(ctx, txExecutor, username)
	if err == nil {
		return nil, nil, fmt.Errorf("create user and wallet: %w: username %q", util.ErrDuplicateEntry, username)
	}
	if !errors.Is(err, util.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("create user and wallet: failed to check existing user: %w", err)
	}

	user := domain.NewUser(username)
	if err := s.userRepo.CreateUser(ctx, txExecutor, user); err != nil {
		return nil, nil, fmt.Errorf("create user and wallet: failed to create user: %w", err)
	}

	wallet := domain.NewWallet(user.ID)
	if err := s.walletRepo.CreateWallet(ctx, txExecutor, wallet); err != nil {
		return nil, nil, fmt.Errorf("create user and wallet: failed to create wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("create user and wallet: failed to commit transaction: %w", err)
	}

	return user, wallet, nil
}
