// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"payvault-ledger/internal/domain"
)

// WalletRepository defines the interface for wallet data operations.
//
// Balance changes are expressed only as deltas through ApplyBalanceDelta;
// there is deliberately no "set balance" method, so callers cannot read a
// wallet, compute a new value and write it back (lost-update hazard).
type WalletRepository interface {
	// CreateWallet adds a new wallet to the database.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWalletByUserID retrieves the wallet owned by the given user.
	GetWalletByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.Wallet, error)
	// GetWalletByUserIDForUpdate retrieves the wallet with a row lock held
	// for the remainder of the surrounding transaction. Callers locking more
	// than one wallet must lock in ascending userID order.
	GetWalletByUserIDForUpdate(ctx context.Context, q DBExecutor, userID int64) (*domain.Wallet, error)
	// ApplyBalanceDelta atomically applies `balance = balance + delta`,
	// guarded so the balance can never go negative. A negative delta against
	// an insufficient balance returns util.ErrInsufficientFunds without
	// modifying the row; a missing wallet returns util.ErrWalletNotFound.
	ApplyBalanceDelta(ctx context.Context, q DBExecutor, userID int64, delta decimal.Decimal) error
	// AdjustInvestmentTotals atomically applies deltas to total_invested and
	// total_returns. Must be issued in the same transaction as the matching
	// balance delta.
	AdjustInvestmentTotals(ctx context.Context, q DBExecutor, userID int64, principalDelta, returnsDelta decimal.Decimal) error
}
