// internal/api/handler/transfer.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"wallet-ledger/internal/service"
)

// TransferHandler handles wallet-to-wallet transfers.
type TransferHandler struct {
	responder
	transfers *service.TransferCoordinator
}

func NewTransferHandler(transfers *service.TransferCoordinator, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{responder: responder{logger: logger}, transfers: transfers}
}

// TransferRequest represents the request body for a transfer.
type TransferRequest struct {
	SenderAccountID   int64           `json:"sender_account_id"`
	ReceiverAccountID int64           `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Description       *string         `json:"description,omitempty"`
}

// Transfer handles POST /transfers. A failed transfer that was already
// recorded is echoed back under "transfer".
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	transfer, err := h.transfers.Transfer(r.Context(), req.SenderAccountID, req.ReceiverAccountID, req.Amount, req.Description)
	if err != nil {
		if transfer != nil {
			h.respondWithError(w, err, map[string]interface{}{"transfer": transfer})
			return
		}
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, transfer)
}

// GetTransfer handles GET /transfers/{code}.
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.transfers.GetTransfer(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transfer)
}
