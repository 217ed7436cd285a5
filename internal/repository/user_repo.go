// internal/repository/user_repo.go
package repository

import (
	"context"

	"payvault-ledger/internal/domain"
)

// UserRepository defines the interface for user data operations. The ledger
// core only reads users for eligibility decisions; identity management is
// owned elsewhere.
type UserRepository interface {
	// CreateUser adds a new user to the database.
	CreateUser(ctx context.Context, q DBExecutor, user *domain.User) error
	// GetUserByID retrieves a user by their ID.
	GetUserByID(ctx context.Context, q DBExecutor, id int64) (*domain.User, error)
	// GetUserByUsername retrieves a user by their username.
	GetUserByUsername(ctx context.Context, q DBExecutor, username string) (*domain.User, error)
}
