// internal/domain/user.go
package domain

import "time"

// UserStatus defines the lifecycle state of a user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// KYCStatus defines the identity-verification state of a user.
// Unverified users are subject to receive and investment caps.
type KYCStatus string

const (
	KYCStatusUnverified KYCStatus = "UNVERIFIED"
	KYCStatusPending    KYCStatus = "PENDING"
	KYCStatusVerified   KYCStatus = "VERIFIED"
)

// User represents a user of the ledger. Only the fields the ledger core
// needs for eligibility decisions are modelled here; profile data lives
// with the identity service.
type User struct {
	ID        int64      `db:"id" json:"id"`
	Username  string     `db:"username" json:"username"`
	Status    UserStatus `db:"status" json:"status"`
	KYCStatus KYCStatus  `db:"kyc_status" json:"kyc_status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// NewUser creates a new User instance with default statuses.
func NewUser(username string) *User {
	now := time.Now().UTC()
	return &User{
		Username:  username,
		Status:    UserStatusActive,
		KYCStatus: KYCStatusUnverified,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsVerified reports whether the user has completed identity verification.
func (u *User) IsVerified() bool {
	return u.KYCStatus == KYCStatusVerified
}
