// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Wallet represents a user's spendable-funds ledger. Exactly one wallet
// exists per user and is created atomically with the user.
//
// Invariant: Balance >= 0 at all times. The invariant is enforced by the
// wallet repository's conditional update before commit, never repaired
// after the fact.
type Wallet struct {
	UserID        int64           `db:"user_id" json:"user_id"`               // Owner key, immutable
	Balance       decimal.Decimal `db:"balance" json:"balance"`               // Spendable funds, NUMERIC(20, 4) in DB
	TotalInvested decimal.Decimal `db:"total_invested" json:"total_invested"` // Cumulative principal moved into investments
	TotalReturns  decimal.Decimal `db:"total_returns" json:"total_returns"`   // Realised returns, may be negative
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"` // Set on every mutation
}

// NewWallet creates a zero-balance Wallet for the given user.
func NewWallet(userID int64) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		UserID:        userID,
		Balance:       decimal.Zero,
		TotalInvested: decimal.Zero,
		TotalReturns:  decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
