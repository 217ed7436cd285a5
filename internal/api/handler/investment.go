// internal/api/handler/investment.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payvault-ledger/internal/service"
	"payvault-ledger/internal/util"
)

// InvestmentHandler handles HTTP requests for investment positions.
type InvestmentHandler struct {
	investments service.InvestmentService
	logger      *slog.Logger
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investments service.InvestmentService, logger *slog.Logger) *InvestmentHandler {
	return &InvestmentHandler{investments: investments, logger: logger}
}

// InvestRequest represents the request body for opening a position.
type InvestRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	ProductType string          `json:"product_type" validate:"required,max=64"`
}

// Invest handles the investment funding request.
// POST /users/{userID}/investments
func (h *InvestmentHandler) Invest(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}

	var req InvestRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	investment, transaction, wallet, err := h.investments.Invest(r.Context(), userID, req.Amount, req.ProductType)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, map[string]interface{}{
		"investment":  investment,
		"transaction": transaction,
		"wallet":      wallet,
	})
}

// WithdrawRequest represents the request body for withdrawing from a position.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// Withdraw handles the investment withdrawal request.
// POST /users/{userID}/investments/{investmentID}/withdraw
func (h *InvestmentHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}
	investmentID, err := uuid.Parse(chi.URLParam(r, "investmentID"))
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvestmentNotFound)
		return
	}

	var req WithdrawRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	investment, transaction, wallet, err := h.investments.WithdrawInvestment(r.Context(), userID, investmentID, req.Amount)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"investment":  investment,
		"transaction": transaction,
		"wallet":      wallet,
	})
}

// List handles the investment listing request.
// GET /users/{userID}/investments
func (h *InvestmentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidID)
		return
	}

	investments, err := h.investments.GetInvestments(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, investments)
}
