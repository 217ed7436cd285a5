// internal/service/reconciler_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/notify"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/util"
	"payvault-ledger/pkg/db"
)

// referenceCacheTTL bounds how long a reconciled reference is remembered in
// Redis. The database unique index remains the source of truth; the cache
// only short-circuits the common duplicate-webhook case.
const referenceCacheTTL = 24 * time.Hour

// ReconcilerService converts a confirmed external charge into exactly one
// wallet credit, idempotent on the gateway reference. Duplicate deliveries
// (retried webhooks, repeated verification calls) return the original
// transaction without crediting again.
//
// A charge may optionally be registered up front via RegisterPending, which
// claims the reference with a PENDING record; the verified outcome then
// transitions that record instead of inserting a new one.
type ReconcilerService interface {
	// RegisterPending records an initiated external charge as a PENDING
	// transaction holding the reference. No balance change occurs.
	RegisterPending(ctx context.Context, reference string, amount decimal.Decimal, userID int64) (*domain.Transaction, error)
	// Reconcile credits the wallet for a verified external payment. Calling
	// it again with the same reference returns the prior result.
	Reconcile(ctx context.Context, reference string, amount decimal.Decimal, userID int64) (*domain.Wallet, *domain.Transaction, error)
	// RecordFailed persists a failed-status audit record for a charge whose
	// external verification did not succeed. No balance change occurs.
	RecordFailed(ctx context.Context, reference string, amount decimal.Decimal, userID int64, reason string) (*domain.Transaction, error)
}

// reconcilerService implements the ReconcilerService interface.
type reconcilerService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	cache           *redis.Client // Optional; nil disables the fast path
	notifier        notify.Dispatcher
	logger          *slog.Logger
}

// NewReconcilerService creates a new instance of ReconcilerService. The
// Redis client may be nil, in which case every duplicate check goes to the
// database.
func NewReconcilerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	cache *redis.Client,
	notifier notify.Dispatcher,
	logger *slog.Logger,
) ReconcilerService {
	return &reconcilerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		cache:           cache,
		notifier:        notifier,
		logger:          logger,
	}
}

func referenceCacheKey(reference string) string {
	return "payref:" + reference
}

// RegisterPending claims the reference with a PENDING deposit record. The
// unique index makes the claim race-free: a second registration of the same
// reference returns ErrDuplicateEntry.
func (s *reconcilerService) RegisterPending(ctx context.Context, reference string, amount decimal.Decimal, userID int64) (*domain.Transaction, error) {
	if reference == "" {
		return nil, util.ErrInvalidReference
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	transaction := domain.NewTransaction(userID, domain.TransactionTypeDeposit, amount, "External payment initiated", domain.Metadata{
		"reference": reference,
	})
	transaction.Status = domain.TransactionStatusPending
	transaction.Reference = &reference
	if err := s.transactionRepo.CreateTransaction(ctx, s.dbExecutor, transaction); err != nil {
		if errors.Is(err, util.ErrDuplicateEntry) {
			return nil, fmt.Errorf("register pending: %w: reference %q", util.ErrDuplicateEntry, reference)
		}
		return nil, fmt.Errorf("register pending: failed to record reference %q: %w", reference, err)
	}
	return transaction, nil
}

// Reconcile performs the idempotent credit. The duplicate check is layered:
// Redis fast path, then the unique index on transactions.reference, which
// makes the check race-free under concurrent duplicate deliveries.
func (s *reconcilerService) Reconcile(ctx context.Context, reference string, amount decimal.Decimal, userID int64) (*domain.Wallet, *domain.Transaction, error) {
	if reference == "" {
		return nil, nil, util.ErrInvalidReference
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, util.ErrInvalidAmount
	}

	// Fast path: a reference seen recently resolves without touching the
	// write path at all.
	if s.cacheHit(ctx, reference) {
		return s.existingResult(ctx, reference, amount)
	}

	// Authoritative duplicate check against the unique reference column.
	existing, err := s.transactionRepo.GetTransactionByReference(ctx, s.dbExecutor, reference)
	if err == nil {
		return s.resolveExisting(ctx, existing, amount)
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, nil, fmt.Errorf("reconcile: failed to check reference %q: %w", reference, err)
	}

	wallet, transaction, err := s.credit(ctx, reference, amount, userID)
	if errors.Is(err, util.ErrDuplicateEntry) {
		// Lost the insert race to a concurrent delivery of the same
		// reference; the other writer's result is the canonical one.
		return s.existingResult(ctx, reference, amount)
	}
	if err != nil {
		return nil, nil, err
	}

	s.cacheReference(ctx, reference)
	s.notifier.Dispatch(userID, "deposit.reconciled", map[string]any{
		"amount":         amount.String(),
		"reference":      reference,
		"transaction_id": transaction.ID.String(),
	})
	return wallet, transaction, nil
}

// resolveExisting maps an already-recorded reference to its outcome: a
// COMPLETED record is the prior result, a PENDING record is completed now,
// and a FAILED record means the reference is spent.
func (s *reconcilerService) resolveExisting(ctx context.Context, existing *domain.Transaction, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error) {
	switch existing.Status {
	case domain.TransactionStatusCompleted:
		if existing.Reference != nil {
			s.cacheReference(ctx, *existing.Reference)
		}
		wallet, err := s.walletRepo.GetWalletByUserID(ctx, s.dbExecutor, existing.UserID)
		if err != nil {
			return nil, nil, err
		}
		return wallet, existing, nil
	case domain.TransactionStatusPending:
		return s.completePending(ctx, existing, amount)
	default:
		return nil, nil, fmt.Errorf("reconcile: %w: reference already resolved as failed", util.ErrDuplicateEntry)
	}
}

// completePending transitions a registered charge to COMPLETED and applies
// the credit in one SQL transaction. The PENDING-guarded status update is
// the arbiter under concurrent deliveries: only one transition wins, so the
// balance delta is applied exactly once.
func (s *reconcilerService) completePending(ctx context.Context, pending *domain.Transaction, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error) {
	if !amount.Equal(pending.Amount) {
		return nil, nil, fmt.Errorf("reconcile: %w: verified amount %s does not match registered amount %s",
			util.ErrInvalidAmount, amount, pending.Amount)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("reconcile: transaction controller does not implement DBExecutor")
	}

	if err := s.transactionRepo.UpdateTransactionStatus(ctx, txExecutor, pending.ID, domain.TransactionStatusCompleted); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			// A concurrent delivery transitioned the record first; its
			// outcome is the canonical one.
			return s.existingResult(ctx, *pending.Reference, amount)
		}
		return nil, nil, fmt.Errorf("reconcile: failed to complete pending transaction %s: %w", pending.ID, err)
	}

	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, pending.UserID, pending.Amount); err != nil {
		return nil, nil, err
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, pending.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to re-fetch wallet for user %d: %w", pending.UserID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to commit transaction: %w", err)
	}

	pending.Status = domain.TransactionStatusCompleted
	s.cacheReference(ctx, *pending.Reference)
	s.notifier.Dispatch(pending.UserID, "deposit.reconciled", map[string]any{
		"amount":         pending.Amount.String(),
		"reference":      *pending.Reference,
		"transaction_id": pending.ID.String(),
	})
	return wallet, pending, nil
}

// credit inserts the completed deposit record and applies the balance delta
// in one SQL transaction. The insert runs first so the unique index rejects
// a duplicate before any balance mutation.
func (s *reconcilerService) credit(ctx context.Context, reference string, amount decimal.Decimal, userID int64) (*domain.Wallet, *domain.Transaction, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("reconcile: transaction controller does not implement DBExecutor")
	}

	transaction := domain.NewTransaction(userID, domain.TransactionTypeDeposit, amount, "External payment", domain.Metadata{
		"reference": reference,
	})
	transaction.Reference = &reference
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return nil, nil, err
	}

	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, userID, amount); err != nil {
		return nil, nil, err
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to re-fetch wallet for user %d: %w", userID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to commit transaction: %w", err)
	}

	return wallet, transaction, nil
}

// existingResult loads the record holding a reference and resolves it.
func (s *reconcilerService) existingResult(ctx context.Context, reference string, amount decimal.Decimal) (*domain.Wallet, *domain.Transaction, error) {
	transaction, err := s.transactionRepo.GetTransactionByReference(ctx, s.dbExecutor, reference)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: failed to load existing transaction for reference %q: %w", reference, err)
	}
	return s.resolveExisting(ctx, transaction, amount)
}

// RecordFailed persists the audit trail for a failed external verification.
// A registered PENDING charge transitions in place, keeping its claim on the
// reference. An unregistered charge gets a FAILED record whose reference
// lives in metadata only, so the unique column stays free for a later
// successful reconciliation of the same charge.
func (s *reconcilerService) RecordFailed(ctx context.Context, reference string, amount decimal.Decimal, userID int64, reason string) (*domain.Transaction, error) {
	if reference == "" {
		return nil, util.ErrInvalidReference
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	existing, err := s.transactionRepo.GetTransactionByReference(ctx, s.dbExecutor, reference)
	if err == nil {
		if existing.Status != domain.TransactionStatusPending {
			return nil, fmt.Errorf("record failed: %w: reference %q already resolved", util.ErrDuplicateEntry, reference)
		}
		if err := s.transactionRepo.UpdateTransactionStatus(ctx, s.dbExecutor, existing.ID, domain.TransactionStatusFailed); err != nil {
			if errors.Is(err, util.ErrNotFound) {
				return nil, fmt.Errorf("record failed: %w: reference %q already resolved", util.ErrDuplicateEntry, reference)
			}
			return nil, fmt.Errorf("record failed: failed to transition pending transaction %s: %w", existing.ID, err)
		}
		existing.Status = domain.TransactionStatusFailed
		return existing, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("record failed: failed to check reference %q: %w", reference, err)
	}

	transaction := domain.NewTransaction(userID, domain.TransactionTypeDeposit, amount, "External payment verification failed", domain.Metadata{
		"reference":      reference,
		"failure_reason": reason,
	})
	transaction.Status = domain.TransactionStatusFailed
	if err := s.transactionRepo.CreateTransaction(ctx, s.dbExecutor, transaction); err != nil {
		return nil, fmt.Errorf("record failed: failed to record failed attempt for reference %q: %w", reference, err)
	}
	return transaction, nil
}

func (s *reconcilerService) cacheHit(ctx context.Context, reference string) bool {
	if s.cache == nil {
		return false
	}
	exists, err := s.cache.Exists(ctx, referenceCacheKey(reference)).Result()
	if err != nil {
		s.logger.Warn("Reference cache lookup failed, falling through to database", "reference", reference, "error", err)
		return false
	}
	return exists > 0
}

func (s *reconcilerService) cacheReference(ctx context.Context, reference string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, referenceCacheKey(reference), 1, referenceCacheTTL).Err(); err != nil {
		s.logger.Warn("Failed to cache reconciled reference", "reference", reference, "error", err)
	}
}
