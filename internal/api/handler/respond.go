// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wallet-ledger/internal/util"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// responder holds the JSON helpers shared by every handler.
type responder struct {
	logger *slog.Logger
}

// Helper function to send JSON responses.
func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps err to a status code and writes {"error": ...}
// plus any extra fields.
func (h responder) respondWithError(w http.ResponseWriter, err error, extra ...map[string]interface{}) {
	statusCode, message := h.classify(err)
	body := map[string]interface{}{"error": message}
	for _, fields := range extra {
		for k, v := range fields {
			body[k] = v
		}
	}
	h.respondWithJSON(w, statusCode, body)
}

func (h responder) classify(err error) (int, string) {
	var external *util.ExternalServiceError
	var reconciliation *util.ReconciliationRequiredError

	switch {
	case errors.As(err, &reconciliation):
		h.logger.Error("Reconciliation required", "transfer_code", reconciliation.TransferCode, "error", err)
		return http.StatusInternalServerError, "Transfer requires manual reconciliation"
	case util.IsError(err, util.ErrInvalidInput), util.IsError(err, util.ErrInvalidAmount):
		return http.StatusBadRequest, err.Error()
	case util.IsError(err, util.ErrSameAccountTransfer):
		return http.StatusBadRequest, "Cannot transfer to the same account"
	case util.IsError(err, util.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient funds"
	case util.IsError(err, util.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case util.IsError(err, util.ErrStatusConflict):
		return http.StatusConflict, "Resource is not in the expected status"
	case util.IsError(err, util.ErrAccountInactive):
		return http.StatusConflict, "Account is deactivated"
	case util.IsError(err, util.ErrNoStockAvailable):
		return http.StatusUnprocessableEntity, "No stock available"
	case util.IsError(err, util.ErrTransactionBlocked):
		return http.StatusUnprocessableEntity, "Transaction blocked"
	case errors.As(err, &external):
		h.logger.Warn("External service unavailable", "service", external.Service, "error", err)
		return http.StatusServiceUnavailable, "Service " + external.Service + " unavailable, request left pending"
	default:
		h.logger.Error("Unhandled service error", "error", err)
		return http.StatusInternalServerError, "Internal server error"
	}
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return util.ErrInvalidInput
	}
	return nil
}

// int64Param parses a positive integer URL parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, util.ErrInvalidInput
	}
	return id, nil
}

// durationQuery parses a Go duration query parameter, or returns fallback.
func durationQuery(r *http.Request, name string, fallback time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, util.ErrInvalidInput
	}
	return d, nil
}

// intQuery parses a non-negative integer query parameter, or returns fallback.
func intQuery(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
