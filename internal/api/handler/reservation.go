// internal/api/handler/reservation.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"wallet-ledger/internal/service"
)

// ReservationHandler handles stock reservations and PPOB purchases.
type ReservationHandler struct {
	responder
	reservations *service.ReservationManager
	purchases    *service.PurchaseService
}

func NewReservationHandler(reservations *service.ReservationManager, purchases *service.PurchaseService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{
		responder:    responder{logger: logger},
		reservations: reservations,
		purchases:    purchases,
	}
}

// ReserveRequest asks for a hold on product stock. TTLSeconds of zero uses
// the configured default.
type ReserveRequest struct {
	ProductID  int64  `json:"product_id"`
	Quantity   int64  `json:"quantity"`
	HolderID   string `json:"holder_id"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type PurchaseRequest struct {
	AccountID   int64           `json:"account_id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProviderRef *string         `json:"provider_ref,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// Reserve handles POST /reservations.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	reservation, err := h.reservations.Reserve(r.Context(), req.ProductID, req.Quantity, req.HolderID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, reservation)
}

// Release handles DELETE /reservations/{reservationID}.
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reservationID")
	if err := h.reservations.Release(r.Context(), id); err != nil {
		h.respondWithError(w, err)
		return
	}
	reservation, err := h.reservations.Get(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, reservation)
}

// Availability handles GET /products/{productID}/availability.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	available, err := h.reservations.Available(r.Context(), productID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]int64{"product_id": productID, "available": available})
}

// Purchase handles POST /ppob/purchases.
func (h *ReservationHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	result, err := h.purchases.Purchase(r.Context(), service.PurchaseRequest{
		AccountID:   req.AccountID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		ProviderRef: req.ProviderRef,
		Description: req.Description,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, result)
}
