// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"payvault-ledger/internal/util"
)

// DefaultTimeout is the per-request timeout applied by the router.
const DefaultTimeout = 30 * time.Second

// validate holds the shared request-payload validator.
var validate = validator.New()

// respondWithJSON writes a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors to HTTP status codes. Internal retry
// counts and storage error text never reach the caller.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidAmount),
		util.IsError(err, util.ErrSelfTransfer),
		util.IsError(err, util.ErrInvalidReference),
		util.IsError(err, util.ErrInvalidID),
		util.IsError(err, util.ErrInvalidTransactionType),
		util.IsError(err, util.ErrUnknownProduct):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrWalletNotFound),
		util.IsError(err, util.ErrUserNotFound),
		util.IsError(err, util.ErrInvestmentNotFound),
		util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient funds"
	case util.IsError(err, util.ErrInsufficientInvestmentBalance):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient investment balance"
	case util.IsError(err, util.ErrKYCRequired),
		util.IsError(err, util.ErrRecipientIneligible):
		statusCode = http.StatusForbidden
		message = err.Error()
	case util.IsError(err, util.ErrDuplicateEntry):
		statusCode = http.StatusConflict
		message = "Duplicate entry"
	case util.IsError(err, util.ErrConcurrentConflict):
		statusCode = http.StatusConflict
		message = "Operation conflicted with a concurrent request, please retry"
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(w, logger, statusCode, map[string]string{"error": message})
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. Returns false after writing the error response itself.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithJSON(w, logger, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondWithJSON(w, logger, http.StatusBadRequest, map[string]string{"error": "Validation failed: " + err.Error()})
		return false
	}
	return true
}
