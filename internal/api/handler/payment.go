// internal/api/handler/payment.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"payvault-ledger/internal/service"
)

// PaymentHandler handles HTTP requests from the payment gateway webhook
// relay. Gateway verification happens upstream; this endpoint only receives
// the verified outcome.
type PaymentHandler struct {
	reconciler service.ReconcilerService
	logger     *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(reconciler service.ReconcilerService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, logger: logger}
}

// InitiateRequest represents an external charge being registered before the
// gateway outcome is known.
type InitiateRequest struct {
	Reference string          `json:"reference" validate:"required,max=128"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	UserID    int64           `json:"user_id" validate:"required,gt=0"`
}

// Initiate handles registration of an initiated external charge. The
// reference is claimed with a pending record; the later verified outcome
// transitions it.
// POST /payments/initiate
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	transaction, err := h.reconciler.RegisterPending(r.Context(), req.Reference, req.Amount, req.UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, map[string]interface{}{
		"transaction": transaction,
	})
}

// ReconcileRequest represents the verified outcome of an external charge.
type ReconcileRequest struct {
	Reference string          `json:"reference" validate:"required,max=128"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	UserID    int64           `json:"user_id" validate:"required,gt=0"`
	Success   bool            `json:"success"`
	Reason    string          `json:"reason,omitempty" validate:"max=200"`
}

// Reconcile handles the payment reconciliation request. Replayed deliveries
// of the same reference return the original result.
// POST /payments/reconcile
func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !decodeAndValidate(w, r, h.logger, &req) {
		return
	}

	if !req.Success {
		transaction, err := h.reconciler.RecordFailed(r.Context(), req.Reference, req.Amount, req.UserID, req.Reason)
		if err != nil {
			respondWithError(w, h.logger, err)
			return
		}
		respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
			"transaction": transaction,
		})
		return
	}

	wallet, transaction, err := h.reconciler.Reconcile(r.Context(), req.Reference, req.Amount, req.UserID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"wallet":      wallet,
		"transaction": transaction,
	})
}
