// internal/api/handler/transfer.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"payvault-ledger/internal/service"
)

// TransferHandler handles HTTP requests for wallet-to-wallet transfers.
type TransferHandler struct {
	transfers service.TransferService
	logger    *slog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transfers service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{transfers: transfers, logger: logger}
}

// TransferRequest represents the request body for a transfer.
type TransferRequest struct {
	FromUserID  int64           `json:"from_user_id" validate:"required,gt=0"`
	ToUserID    int64           `json:"to_user_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description" validate:"max=200"`
}

// Transfer handles the transfer request.
// POST /transfers
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	result, err := h.transfers.Transfer(r.Context(), req.FromUserID, req.ToUserID, req.Amount, req.Description, nil)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, result)
}
