// internal/api/handler/wallet.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/api/types"
	"payvault-ledger/internal/domain"
	"payvault-ledger/internal/service"
	"payvault-ledger/internal/util"
)

// WalletHandler handles HTTP requests for wallet state and single-wallet
// mutations. Handlers are glue only: decode, validate, call the service,
// encode.
type WalletHandler struct {
	ledger service.LedgerService
	logger *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger service.LedgerService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, logger: logger}
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

// CreateUserRequest represents the request body for user creation.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
}

// CreateUser handles user + wallet creation.
// POST /users
func (h *WalletHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	user, wallet, err := h.ledger.CreateUserAndWallet(r.Context(), req.Username)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"wallet": wallet,
	})
}

// GetWallet handles the wallet state request.
// GET /wallets/{userID}
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}

	wallet, err := h.ledger.GetWallet(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, wallet)
}

// MutationRequest represents the request body for a credit or debit.
type MutationRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description" validate:"max=200"`
}

// Credit handles a direct wallet credit.
// POST /wallets/{userID}/credit
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, false)
}

// Debit handles a direct wallet debit.
// POST /wallets/{userID}/debit
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, true)
}

func (h *WalletHandler) mutate(w http.ResponseWriter, r *http.Request, debit bool) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}

	var req MutationRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	meta := service.TxMeta{
		Type:        domain.TransactionType(req.Type),
		Description: req.Description,
	}

	var (
		wallet      *domain.Wallet
		transaction *domain.Transaction
	)
	if debit {
		wallet, transaction, err = h.ledger.Debit(r.Context(), userID, req.Amount, meta)
	} else {
		wallet, transaction, err = h.ledger.Credit(r.Context(), userID, req.Amount, meta)
	}
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"wallet":      wallet,
		"transaction": transaction,
	})
}

// GetTransaction handles the single-transaction detail request.
// GET /wallets/{userID}/transactions/{transactionID}
func (h *WalletHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}

	transaction, err := h.ledger.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, transaction)
}

// GetTransactionHistory handles the transaction history request.
// GET /wallets/{userID}/transactions?limit=&offset=
func (h *WalletHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}

	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	transactions, totalCount, err := h.ledger.GetTransactionHistory(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}
