// internal/repository/postgres/wallet_pg_test.go
package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payvault-ledger/internal/util"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestApplyBalanceDelta_Applied(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WalletRepository{}

	delta := decimal.NewFromInt(-250)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = balance + $1`)).
		WithArgs(delta, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyBalanceDelta(context.Background(), db, 1, delta)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBalanceDelta_GuardedOut(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WalletRepository{}

	// The guarded UPDATE touches no row; the probe finds the wallet, so the
	// zero-row outcome means the debit would have gone negative.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = balance + $1`)).
		WithArgs(decimal.NewFromInt(-500), sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.ApplyBalanceDelta(context.Background(), db, 1, decimal.NewFromInt(-500))
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBalanceDelta_WalletMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WalletRepository{}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET balance = balance + $1`)).
		WithArgs(decimal.NewFromInt(100), sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.ApplyBalanceDelta(context.Background(), db, 42, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, util.ErrWalletNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWalletByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WalletRepository{}

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"user_id", "balance", "total_invested", "total_returns", "created_at", "updated_at"}).
		AddRow(int64(7), "1250.50", "300", "12.75", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, balance, total_invested, total_returns, created_at, updated_at FROM wallets WHERE user_id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	wallet, err := repo.GetWalletByUserID(context.Background(), db, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), wallet.UserID)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, wallet.TotalReturns.Equal(decimal.RequireFromString("12.75")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWalletByUserID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WalletRepository{}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM wallets WHERE user_id = $1`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := repo.GetWalletByUserID(context.Background(), db, 99)
	assert.ErrorIs(t, err, util.ErrWalletNotFound)
}

func TestAdjustInvestmentTotals_WalletMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &WalletRepository{}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wallets SET total_invested = total_invested + $1`)).
		WithArgs(decimal.NewFromInt(100), decimal.Zero, sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AdjustInvestmentTotals(context.Background(), db, 5, decimal.NewFromInt(100), decimal.Zero)
	assert.ErrorIs(t, err, util.ErrWalletNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
