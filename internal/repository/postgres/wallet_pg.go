// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/util"
)

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) repository.WalletRepository {
	return &WalletRepository{}
}

const walletColumns = `user_id, balance, total_invested, total_returns, created_at, updated_at`

// CreateWallet inserts a new wallet using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (user_id, balance, total_invested, total_returns, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := q.ExecContext(ctx, query,
		wallet.UserID, wallet.Balance, wallet.TotalInvested, wallet.TotalReturns,
		wallet.CreatedAt, wallet.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWalletByUserID retrieves a wallet by owner using the provided DBExecutor.
func (r *WalletRepository) GetWalletByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	if err := q.GetContext(ctx, &wallet, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// GetWalletByUserIDForUpdate retrieves a wallet holding a row lock until the
// surrounding transaction ends. Callers locking two wallets must lock in
// ascending userID order to avoid deadlocks.
func (r *WalletRepository) GetWalletByUserIDForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &wallet, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// ApplyBalanceDelta applies `balance = balance + delta` as a single guarded
// UPDATE. The WHERE clause keeps the balance non-negative, so two concurrent
// debits racing over the same funds resolve to one applied update and one
// zero-row update, which is mapped to ErrInsufficientFunds here.
func (r *WalletRepository) ApplyBalanceDelta(ctx context.Context, q repository.DBExecutor, userID int64, delta decimal.Decimal) error {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2
              WHERE user_id = $3 AND balance + $1 >= 0`
	result, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta for user %d: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		// Distinguish a missing wallet from a guarded-out debit.
		var exists bool
		probe := `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`
		if err := q.GetContext(ctx, &exists, probe, userID); err != nil {
			return fmt.Errorf("failed to probe wallet for user %d: %w", userID, err)
		}
		if !exists {
			return util.ErrWalletNotFound
		}
		return util.ErrInsufficientFunds
	}
	return nil
}

// AdjustInvestmentTotals applies deltas to total_invested and total_returns.
// Must run in the same transaction as the matching balance delta.
func (r *WalletRepository) AdjustInvestmentTotals(ctx context.Context, q repository.DBExecutor, userID int64, principalDelta, returnsDelta decimal.Decimal) error {
	query := `UPDATE wallets SET total_invested = total_invested + $1, total_returns = total_returns + $2, updated_at = $3
              WHERE user_id = $4`
	result, err := q.ExecContext(ctx, query, principalDelta, returnsDelta, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to adjust investment totals for user %d: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		return util.ErrWalletNotFound
	}
	return nil
}
