// internal/repository/postgres/investment_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/util"
)

// InvestmentRepository implements repository.InvestmentRepository for PostgreSQL.
type InvestmentRepository struct{}

// NewInvestmentRepository creates a new InvestmentRepository.
func NewInvestmentRepository(db *sqlx.DB) repository.InvestmentRepository {
	return &InvestmentRepository{}
}

const investmentColumns = `id, user_id, product_type, amount, current_value, returns, status, created_at, updated_at`

// CreateInvestment inserts a new investment position.
func (r *InvestmentRepository) CreateInvestment(ctx context.Context, q repository.DBExecutor, investment *domain.Investment) error {
	query := `INSERT INTO investments (id, user_id, product_type, amount, current_value, returns, status, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := q.ExecContext(ctx, query,
		investment.ID, investment.UserID, investment.ProductType,
		investment.Amount, investment.CurrentValue, investment.Returns,
		investment.Status, investment.CreatedAt, investment.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}
	return nil
}

// GetInvestmentByID retrieves a position.
func (r *InvestmentRepository) GetInvestmentByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Investment, error) {
	var investment domain.Investment
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	if err := q.GetContext(ctx, &investment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("failed to get investment %s: %w", id, err)
	}
	return &investment, nil
}

// GetInvestmentByIDForUpdate retrieves a position holding a row lock until
// the surrounding transaction ends.
func (r *InvestmentRepository) GetInvestmentByIDForUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Investment, error) {
	var investment domain.Investment
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &investment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("failed to lock investment %s: %w", id, err)
	}
	return &investment, nil
}

// UpdateInvestmentPosition writes the mutable fields of a position.
func (r *InvestmentRepository) UpdateInvestmentPosition(ctx context.Context, q repository.DBExecutor, investment *domain.Investment) error {
	query := `UPDATE investments SET current_value = $1, returns = $2, status = $3, updated_at = $4
              WHERE id = $5`
	result, err := q.ExecContext(ctx, query,
		investment.CurrentValue, investment.Returns, investment.Status,
		time.Now().UTC(), investment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update investment %s: %w", investment.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for investment %s: %w", investment.ID, err)
	}
	if rowsAffected == 0 {
		return util.ErrInvestmentNotFound
	}
	return nil
}

// GetInvestmentsByUserID lists a user's positions, newest first.
func (r *InvestmentRepository) GetInvestmentsByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Investment, error) {
	investments := []domain.Investment{}
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = $1 ORDER BY created_at DESC`
	if err := q.SelectContext(ctx, &investments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to fetch investments for user %d: %w", userID, err)
	}
	return investments, nil
}
