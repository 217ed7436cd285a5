// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
//
// Every validation failure here occurs before any write: an operation either
// commits fully or leaves no externally visible state behind.
var (
	ErrNotFound                      = errors.New("resource not found")
	ErrInvalidAmount                 = errors.New("amount must be greater than zero")
	ErrInsufficientFunds             = errors.New("insufficient funds")
	ErrInsufficientInvestmentBalance = errors.New("insufficient investment balance")
	ErrSelfTransfer                  = errors.New("cannot transfer to your own wallet")
	ErrWalletNotFound                = errors.New("wallet not found")
	ErrUserNotFound                  = errors.New("user not found")
	ErrInvestmentNotFound            = errors.New("investment not found")
	ErrKYCRequired                   = errors.New("identity verification required for this amount")
	ErrRecipientIneligible           = errors.New("recipient is not eligible to receive this amount")
	ErrDuplicateEntry                = errors.New("duplicate entry")
	ErrInvalidReference              = errors.New("payment reference is required")
	ErrUnknownProduct                = errors.New("unknown investment product")
	ErrInvalidID                     = errors.New("invalid identifier in request path")
	// ErrInvalidTransactionType rejects a caller-supplied transaction type
	// whose direction contradicts the operation. Amounts are stored positive,
	// so the type alone tells a reader which way the money moved; a credit
	// recorded under a debit type would silently corrupt the audit trail.
	ErrInvalidTransactionType = errors.New("transaction type does not match operation direction")
	// ErrConcurrentConflict signals a lost race on an atomic conditional
	// update. Services retry a bounded number of times before surfacing it.
	ErrConcurrentConflict = errors.New("concurrent modification conflict")
)

// IsError reports whether err wraps target. Thin wrapper kept so handlers
// don't import errors directly everywhere.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
