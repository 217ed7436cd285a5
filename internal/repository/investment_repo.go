// internal/repository/investment_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"payvault-ledger/internal/domain"
)

// InvestmentRepository defines the interface for investment position data operations.
type InvestmentRepository interface {
	// CreateInvestment adds a new investment position.
	CreateInvestment(ctx context.Context, q DBExecutor, investment *domain.Investment) error
	// GetInvestmentByID retrieves a position.
	GetInvestmentByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Investment, error)
	// GetInvestmentByIDForUpdate retrieves a position with a row lock held
	// for the remainder of the surrounding transaction.
	GetInvestmentByIDForUpdate(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Investment, error)
	// UpdateInvestmentPosition writes current_value, returns and status.
	UpdateInvestmentPosition(ctx context.Context, q DBExecutor, investment *domain.Investment) error
	// GetInvestmentsByUserID lists a user's positions, newest first.
	GetInvestmentsByUserID(ctx context.Context, q DBExecutor, userID int64) ([]domain.Investment, error)
}
