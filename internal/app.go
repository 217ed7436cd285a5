// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	router "payvault-ledger/internal/api"
	"payvault-ledger/internal/api/handler"
	"payvault-ledger/internal/config"
	"payvault-ledger/internal/notify"
	"payvault-ledger/internal/policy"
	"payvault-ledger/internal/repository"
	"payvault-ledger/internal/repository/postgres"
	"payvault-ledger/internal/service"
	"payvault-ledger/internal/util"
	"payvault-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	UserRepository        repository.UserRepository
	WalletRepository      repository.WalletRepository
	TransactionRepository repository.TransactionRepository
	InvestmentRepository  repository.InvestmentRepository

	// Services
	LedgerService     service.LedgerService
	TransferService   service.TransferService
	ReconcilerService service.ReconcilerService
	InvestmentService service.InvestmentService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Connect to Redis. The ledger stays correct without it (the unique
	// reference index is the source of truth), so a missing Redis only
	// disables the duplicate-check fast path and notifications.
	rdb := redis.NewClient(&redis.Options{
		Addr:     app.Config.Redis.Addr,
		Password: app.Config.Redis.Password,
		DB:       app.Config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		app.Logger.Warn("Redis connection failed, continuing without cache and notifications", "error", err)
		rdb = nil
	} else {
		app.Logger.Info("Redis connection established.")
	}
	app.Redis = rdb

	// 5. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository(app.DB)
	app.WalletRepository = postgres.NewWalletRepository(app.DB)
	app.TransactionRepository = postgres.NewTransactionRepository(app.DB)
	app.InvestmentRepository = postgres.NewInvestmentRepository(app.DB)
	app.Logger.Info("Repositories initialized.")

	// 6. Eligibility policy and notification dispatcher
	limits, err := policy.NewLimits(app.Config.Policy)
	if err != nil {
		return fmt.Errorf("failed to build eligibility policy: %w", err)
	}
	var notifier notify.Dispatcher = notify.NopDispatcher{}
	if app.Redis != nil {
		notifier = notify.NewRedisDispatcher(app.Redis, "ledger.notifications", app.Logger)
	}

	// 7. Initialize Services
	app.LedgerService = service.NewLedgerService(
		app.DB, app.DB,
		app.UserRepository, app.WalletRepository, app.TransactionRepository,
		db.BeginTx, db.CommitTx, db.RollbackTx,
		notifier,
	)
	app.TransferService = service.NewTransferService(
		app.DB, app.DB,
		app.UserRepository, app.WalletRepository, app.TransactionRepository,
		db.BeginTx, db.CommitTx, db.RollbackTx,
		limits, notifier,
	)
	app.ReconcilerService = service.NewReconcilerService(
		app.DB, app.DB,
		app.WalletRepository, app.TransactionRepository,
		db.BeginTx, db.CommitTx, db.RollbackTx,
		app.Redis, notifier, app.Logger,
	)
	app.InvestmentService = service.NewInvestmentService(
		app.DB, app.DB,
		app.UserRepository, app.WalletRepository, app.TransactionRepository, app.InvestmentRepository,
		db.BeginTx, db.CommitTx, db.RollbackTx,
		limits, notifier,
	)
	app.Logger.Info("Services initialized.")

	// 8. Initialize HTTP Handlers and Router
	walletHandler := handler.NewWalletHandler(app.LedgerService, app.Logger)
	transferHandler := handler.NewTransferHandler(app.TransferService, app.Logger)
	paymentHandler := handler.NewPaymentHandler(app.ReconcilerService, app.Logger)
	investmentHandler := handler.NewInvestmentHandler(app.InvestmentService, app.Logger)
	app.HTTPHandler = router.NewRouter(walletHandler, transferHandler, paymentHandler, investmentHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close Redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
