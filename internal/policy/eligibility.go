// internal/policy/eligibility.go
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"payvault-ledger/internal/config"
	"payvault-ledger/internal/domain"
)

// Eligibility is the policy surface consulted by the transfer and investment
// services before any write. Implementations must be pure: no I/O, no
// side effects, safe to call while the caller holds row locks.
type Eligibility interface {
	// CanReceive reports whether the user may receive a credit of the given
	// amount, with a human-readable reason when not.
	CanReceive(user *domain.User, amount decimal.Decimal) (bool, string)
	// CanInvest reports whether the user may open an investment of the given
	// amount, with a reason when not.
	CanInvest(user *domain.User, amount decimal.Decimal) (bool, string)
	// ProductMinimum returns the minimum principal for a product type.
	ProductMinimum(productType string) (decimal.Decimal, bool)
}

// Limits is the config-driven Eligibility implementation. Unverified users
// are capped on single-credit receive amounts and single-investment sizes.
type Limits struct {
	unverifiedReceiveCap decimal.Decimal
	unverifiedInvestCap  decimal.Decimal
	productMinimums      map[string]decimal.Decimal
}

// NewLimits builds Limits from configuration, parsing the decimal amounts.
func NewLimits(cfg config.PolicyConfig) (*Limits, error) {
	receiveCap, err := decimal.NewFromString(cfg.UnverifiedReceiveCap)
	if err != nil {
		return nil, fmt.Errorf("invalid unverified receive cap %q: %w", cfg.UnverifiedReceiveCap, err)
	}
	investCap, err := decimal.NewFromString(cfg.UnverifiedInvestCap)
	if err != nil {
		return nil, fmt.Errorf("invalid unverified invest cap %q: %w", cfg.UnverifiedInvestCap, err)
	}
	minimums := make(map[string]decimal.Decimal, len(cfg.ProductMinimums))
	for product, raw := range cfg.ProductMinimums {
		minimum, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum %q for product %q: %w", raw, product, err)
		}
		minimums[product] = minimum
	}
	return &Limits{
		unverifiedReceiveCap: receiveCap,
		unverifiedInvestCap:  investCap,
		productMinimums:      minimums,
	}, nil
}

// CanReceive applies the suspended-account and unverified-receive-cap rules.
func (l *Limits) CanReceive(user *domain.User, amount decimal.Decimal) (bool, string) {
	if user.Status != domain.UserStatusActive {
		return false, "recipient account is not active"
	}
	if !user.IsVerified() && amount.GreaterThan(l.unverifiedReceiveCap) {
		return false, fmt.Sprintf("unverified recipients may receive at most %s per transfer", l.unverifiedReceiveCap)
	}
	return true, ""
}

// CanInvest applies the unverified-invest-cap rule. A false result maps to
// a KYC-required rejection at the service layer.
func (l *Limits) CanInvest(user *domain.User, amount decimal.Decimal) (bool, string) {
	if !user.IsVerified() && amount.GreaterThan(l.unverifiedInvestCap) {
		return false, fmt.Sprintf("unverified users may invest at most %s per position", l.unverifiedInvestCap)
	}
	return true, ""
}

// ProductMinimum returns the minimum principal for the given product type.
func (l *Limits) ProductMinimum(productType string) (decimal.Decimal, bool) {
	minimum, ok := l.productMinimums[productType]
	return minimum, ok
}
