// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"payvault-ledger/internal/domain"
)

// TransactionRepository defines the interface for transaction data operations.
// Records are append-only; only the status column may be updated, and only
// out of the PENDING state.
type TransactionRepository interface {
	// CreateTransaction appends a new transaction record. Inserting a record
	// whose reference already exists returns util.ErrDuplicateEntry.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionByID retrieves a single transaction.
	GetTransactionByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Transaction, error)
	// GetTransactionByReference retrieves the transaction carrying the given
	// external payment reference, if any.
	GetTransactionByReference(ctx context.Context, q DBExecutor, reference string) (*domain.Transaction, error)
	// UpdateTransactionStatus transitions a PENDING record to a terminal
	// status. Updating a non-pending record returns util.ErrNotFound.
	UpdateTransactionStatus(ctx context.Context, q DBExecutor, id uuid.UUID, status domain.TransactionStatus) error
	// GetTransactionsByUserID retrieves transaction history for a user,
	// newest first, with the total count for pagination.
	GetTransactionsByUserID(ctx context.Context, q DBExecutor, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
}
