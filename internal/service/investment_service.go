// internal/service/investment_service.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/notify"
	"payvault-ledger/internal/policy"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/util"
	"payvault-ledger/pkg/db"
)

// InvestmentService moves money between a wallet's spendable balance and
// investment positions. Every funding or withdrawal commits the balance
// delta, the investment totals, the position row and the audit transaction
// as one unit; partial application is never externally visible.
type InvestmentService interface {
	Invest(ctx context.Context, userID int64, amount decimal.Decimal, productType string) (*domain.Investment, *domain.Transaction, *domain.Wallet, error)
	WithdrawInvestment(ctx context.Context, userID int64, investmentID uuid.UUID, amount decimal.Decimal) (*domain.Investment, *domain.Transaction, *domain.Wallet, error)
	GetInvestments(ctx context.Context, userID int64) ([]domain.Investment, error)
}

// investmentService implements the InvestmentService interface.
type investmentService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	userRepo        repository.UserRepository
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	investmentRepo  repository.InvestmentRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	eligibility     policy.Eligibility
	notifier        notify.Dispatcher
}

// NewInvestmentService creates a new instance of InvestmentService.
func NewInvestmentService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	investmentRepo repository.InvestmentRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	eligibility policy.Eligibility,
	notifier notify.Dispatcher,
) InvestmentService {
	return &investmentService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		investmentRepo:  investmentRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		eligibility:     eligibility,
		notifier:        notifier,
	}
}

// Invest debits the wallet, increments total_invested, opens the position
// and records the investment transaction in one commit.
func (s *investmentService) Invest(ctx context.Context, userID int64, amount decimal.Decimal, productType string) (*domain.Investment, *domain.Transaction, *domain.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, nil, util.ErrInvalidAmount
	}
	minimum, ok := s.eligibility.ProductMinimum(productType)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %q", util.ErrUnknownProduct, productType)
	}
	if amount.LessThan(minimum) {
		return nil, nil, nil, fmt.Errorf("%w: minimum for %s is %s", util.ErrInvalidAmount, productType, minimum)
	}

	user, err := s.userRepo.GetUserByID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if allowed, reason := s.eligibility.CanInvest(user, amount); !allowed {
		return nil, nil, nil, fmt.Errorf("%w: %s", util.ErrKYCRequired, reason)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invest: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, nil, fmt.Errorf("invest: transaction controller does not implement DBExecutor")
	}

	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, userID, amount.Neg()); err != nil {
		return nil, nil, nil, err
	}
	if err := s.walletRepo.AdjustInvestmentTotals(ctx, txExecutor, userID, amount, decimal.Zero); err != nil {
		return nil, nil, nil, err
	}

	investment := domain.NewInvestment(userID, productType, amount)
	if err := s.investmentRepo.CreateInvestment(ctx, txExecutor, investment); err != nil {
		return nil, nil, nil, fmt.Errorf("invest: failed to create position: %w", err)
	}

	transaction := domain.NewTransaction(userID, domain.TransactionTypeInvestment, amount,
		fmt.Sprintf("Investment in %s", productType), domain.Metadata{
			"investment_id": investment.ID.String(),
			"product_type":  productType,
		})
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return nil, nil, nil, fmt.Errorf("invest: failed to record transaction: %w", err)
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invest: failed to re-fetch wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, nil, fmt.Errorf("invest: failed to commit transaction: %w", err)
	}

	s.notifier.Dispatch(userID, "investment.created", map[string]any{
		"amount":        amount.String(),
		"product_type":  productType,
		"investment_id": investment.ID.String(),
	})
	return investment, transaction, wallet, nil
}

// WithdrawInvestment credits the wallet from an active position. The
// principal portion (capped at the original stake) reduces total_invested;
// anything above it is realised returns.
func (s *investmentService) WithdrawInvestment(ctx context.Context, userID int64, investmentID uuid.UUID, amount decimal.Decimal) (*domain.Investment, *domain.Transaction, *domain.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("withdraw investment: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, nil, fmt.Errorf("withdraw investment: transaction controller does not implement DBExecutor")
	}

	investment, err := s.investmentRepo.GetInvestmentByIDForUpdate(ctx, txExecutor, investmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	if investment.UserID != userID {
		// Positions are private; an id belonging to someone else behaves
		// exactly like a missing one.
		return nil, nil, nil, util.ErrInvestmentNotFound
	}
	if amount.GreaterThan(investment.CurrentValue) {
		return nil, nil, nil, util.ErrInsufficientInvestmentBalance
	}

	principalPortion := decimal.Min(amount, investment.Amount)
	returnsPortion := amount.Sub(principalPortion)

	investment.CurrentValue = investment.CurrentValue.Sub(amount)
	if investment.CurrentValue.IsZero() {
		investment.Status = domain.InvestmentStatusWithdrawn
	}
	if err := s.investmentRepo.UpdateInvestmentPosition(ctx, txExecutor, investment); err != nil {
		return nil, nil, nil, err
	}

	if err := s.walletRepo.ApplyBalanceDelta(ctx, txExecutor, userID, amount); err != nil {
		return nil, nil, nil, err
	}
	if err := s.walletRepo.AdjustInvestmentTotals(ctx, txExecutor, userID, principalPortion.Neg(), returnsPortion); err != nil {
		return nil, nil, nil, err
	}

	transaction := domain.NewTransaction(userID, domain.TransactionTypeInvestmentWithdrawal, amount,
		fmt.Sprintf("Withdrawal from %s investment", investment.ProductType), domain.Metadata{
			"investment_id": investment.ID.String(),
			"product_type":  investment.ProductType,
		})
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return nil, nil, nil, fmt.Errorf("withdraw investment: failed to record transaction: %w", err)
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, txExecutor, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("withdraw investment: failed to re-fetch wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, nil, fmt.Errorf("withdraw investment: failed to commit transaction: %w", err)
	}

	s.notifier.Dispatch(userID, "investment.withdrawn", map[string]any{
		"amount":        amount.String(),
		"investment_id": investment.ID.String(),
	})
	return investment, transaction, wallet, nil
}

// GetInvestments lists a user's positions.
func (s *investmentService) GetInvestments(ctx context.Context, userID int64) ([]domain.Investment, error) {
	return s.investmentRepo.GetInvestmentsByUserID(ctx, s.dbExecutor, userID)
}
