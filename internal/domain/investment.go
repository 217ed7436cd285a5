// internal/domain/investment.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentStatus defines the lifecycle state of an investment position.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "ACTIVE"
	InvestmentStatusWithdrawn InvestmentStatus = "WITHDRAWN"
	InvestmentStatusMatured   InvestmentStatus = "MATURED"
)

// Investment is a position carved out of wallet funds, tracked with its own
// current value and accrued returns.
//
// Invariant: CurrentValue >= 0. Withdrawing from a position always produces
// a matching wallet credit transaction in the same commit.
type Investment struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	UserID       int64            `db:"user_id" json:"user_id"`
	ProductType  string           `db:"product_type" json:"product_type"`
	Amount       decimal.Decimal  `db:"amount" json:"amount"`               // Principal at funding time
	CurrentValue decimal.Decimal  `db:"current_value" json:"current_value"` // Principal plus accrued returns
	Returns      decimal.Decimal  `db:"returns" json:"returns"`
	Status       InvestmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// NewInvestment creates an active Investment funded with the given principal.
func NewInvestment(userID int64, productType string, principal decimal.Decimal) *Investment {
	now := time.Now().UTC()
	return &Investment{
		ID:           uuid.New(),
		UserID:       userID,
		ProductType:  productType,
		Amount:       principal,
		CurrentValue: principal,
		Returns:      decimal.Zero,
		Status:       InvestmentStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
