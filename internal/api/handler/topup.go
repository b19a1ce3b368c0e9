// internal/api/handler/topup.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/gateway"
	"wallet-ledger/internal/service"
)

// TopUpHandler handles top-up requests and gateway callbacks.
type TopUpHandler struct {
	responder
	topUps *service.TopUpService
}

func NewTopUpHandler(topUps *service.TopUpService, logger *slog.Logger) *TopUpHandler {
	return &TopUpHandler{responder: responder{logger: logger}, topUps: topUps}
}

type SubmitTopUpRequest struct {
	AccountID     int64                `json:"account_id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	ProofURL      *string              `json:"proof_url,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
}

type ResolveTopUpRequest struct {
	ProcessedBy string `json:"processed_by"`
	Reason      string `json:"reason,omitempty"`
}

// Submit handles POST /topups.
func (h *TopUpHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitTopUpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	request, err := h.topUps.Submit(r.Context(), req.AccountID, req.Amount, req.PaymentMethod, req.ProofURL, req.Notes)
	if err != nil {
		if request != nil {
			h.respondWithError(w, err, map[string]interface{}{"topup": request})
			return
		}
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, request)
}

// Get handles GET /topups/{topupID}.
func (h *TopUpHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "topupID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	request, err := h.topUps.Get(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, request)
}

// Approve handles POST /topups/{topupID}/approve.
func (h *TopUpHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.resolution(w, r)
	if !ok {
		return
	}
	request, err := h.topUps.Approve(r.Context(), id, req.ProcessedBy)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, request)
}

// Reject handles POST /topups/{topupID}/reject.
func (h *TopUpHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, req, ok := h.resolution(w, r)
	if !ok {
		return
	}
	request, err := h.topUps.Reject(r.Context(), id, req.ProcessedBy, req.Reason)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, request)
}

func (h *TopUpHandler) resolution(w http.ResponseWriter, r *http.Request) (int64, ResolveTopUpRequest, bool) {
	var req ResolveTopUpRequest
	id, err := int64Param(r, "topupID")
	if err == nil {
		err = decodeJSON(r, &req)
	}
	if err != nil {
		h.respondWithError(w, err)
		return 0, req, false
	}
	return id, req, true
}

// GatewayCallback handles POST /topups/gateway/callback, the synchronous
// twin of the AMQP notification consumer.
func (h *TopUpHandler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	var n gateway.Notification
	if err := decodeJSON(r, &n); err != nil {
		h.respondWithError(w, err)
		return
	}
	if err := h.topUps.HandleGatewayNotification(r.Context(), n); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ListPending handles GET /topups/pending?older_than=1h&limit=100.
func (h *TopUpHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	age, err := durationQuery(r, "older_than", time.Hour)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	requests, err := h.topUps.ListStalePending(r.Context(), age, intQuery(r, "limit", 100))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": requests})
}
