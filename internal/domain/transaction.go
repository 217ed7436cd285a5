// internal/domain/transaction.go
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionType defines the type of a ledger movement.
//
// Amounts are stored always-positive; the type alone determines whether a
// transaction credits or debits the owning wallet.
type TransactionType string

const (
	TransactionTypeDeposit              TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal           TransactionType = "WITHDRAWAL"
	TransactionTypeInvestment           TransactionType = "INVESTMENT"
	TransactionTypeInvestmentWithdrawal TransactionType = "INVESTMENT_WITHDRAWAL"
	TransactionTypeTransferIn           TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut          TransactionType = "TRANSFER_OUT"
	TransactionTypeBillPayment          TransactionType = "BILL_PAYMENT"
	TransactionTypeCryptoBuy            TransactionType = "CRYPTO_BUY"
	TransactionTypeSocialPayment        TransactionType = "SOCIAL_PAYMENT"
)

// IsCredit reports whether this transaction type increases the wallet balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeTransferIn, TransactionTypeInvestmentWithdrawal:
		return true
	}
	return false
}

// Known reports whether t is one of the defined transaction types. Callers
// accepting a type from outside must reject unknown values: an unrecognised
// type has no direction, which would corrupt the audit trail.
func (t TransactionType) Known() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal,
		TransactionTypeInvestment, TransactionTypeInvestmentWithdrawal,
		TransactionTypeTransferIn, TransactionTypeTransferOut,
		TransactionTypeBillPayment, TransactionTypeCryptoBuy, TransactionTypeSocialPayment:
		return true
	}
	return false
}

// TransactionStatus defines the status of a ledger movement.
// Allowed transitions: PENDING -> COMPLETED, PENDING -> FAILED. A record
// never moves out of a terminal status.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Metadata is an opaque structured payload stored alongside a transaction
// (counterparty id, gateway response fields, bill details). Persisted as JSONB.
type Metadata map[string]any

// Value implements driver.Valuer for JSONB storage.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("metadata: cannot scan %T", src)
	}
	return json.Unmarshal(b, m)
}

// Transaction is the immutable audit record of one balance-affecting event.
// Amount, Type and UserID never change after creation; only Status may
// transition out of PENDING.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	UserID        int64             `db:"user_id" json:"user_id"` // Owner of this side of the movement
	Type          TransactionType   `db:"type" json:"type"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"` // Always positive, NUMERIC(20, 4) in DB
	Description   string            `db:"description" json:"description"`
	Status        TransactionStatus `db:"status" json:"status"`
	Reference     *string           `db:"reference" json:"reference,omitempty"`           // External idempotency key, unique where present
	CorrelationID *uuid.UUID        `db:"correlation_id" json:"correlation_id,omitempty"` // Links the two sides of a transfer
	Metadata      Metadata          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// NewTransaction creates a new completed Transaction instance. Callers that
// need a pending record (external reconciliation audit trail) override Status
// before persisting.
func NewTransaction(userID int64, txType TransactionType, amount decimal.Decimal, description string, meta Metadata) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Status:      TransactionStatusCompleted,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
}

// SignedAmount returns the amount with the direction implied by the type
// applied: positive for credits, negative for debits. Convenience for
// statement rendering; the stored amount stays positive.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}
