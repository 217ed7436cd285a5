// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"payvault-ledger/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(
	walletHandler *handler.WalletHandler,
	transferHandler *handler.TransferHandler,
	paymentHandler *handler.PaymentHandler,
	investmentHandler *handler.InvestmentHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/users", walletHandler.CreateUser)

	r.Route("/wallets/{userID}", func(r chi.Router) {
		r.Get("/", walletHandler.GetWallet)
		r.Get("/transactions", walletHandler.GetTransactionHistory)
		r.Get("/transactions/{transactionID}", walletHandler.GetTransaction)
		r.Post("/credit", walletHandler.Credit)
		r.Post("/debit", walletHandler.Debit)
	})

	r.Route("/users/{userID}/investments", func(r chi.Router) {
		r.Get("/", investmentHandler.List)
		r.Post("/", investmentHandler.Invest)
		r.Post("/{investmentID}/withdraw", investmentHandler.Withdraw)
	})

	// Transfer is a separate top-level endpoint as it involves two wallets
	r.Post("/transfers", transferHandler.Transfer)

	// Gateway charges: optional up-front registration, then the verified
	// outcome. Replays of an outcome are idempotent.
	r.Post("/payments/initiate", paymentHandler.Initiate)
	r.Post("/payments/reconcile", paymentHandler.Reconcile)

	return r
}
