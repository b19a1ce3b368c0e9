// internal/api/handler/account.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wallet-ledger/internal/api/types"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/service"
	"wallet-ledger/internal/util"
)

// AccountHandler handles account and ledger entry requests.
type AccountHandler struct {
	responder
	accounts *service.AccountService
	engine   *service.TransactionEngine
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, engine *service.TransactionEngine, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		responder: responder{logger: logger},
		accounts:  accounts,
		engine:    engine,
	}
}

// OpenAccountRequest represents the request body for opening an account.
type OpenAccountRequest struct {
	OwnerRef string `json:"owner_ref"`
}

// OpenAccount handles POST /accounts.
func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	account, err := h.accounts.OpenAccount(r.Context(), req.OwnerRef)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /accounts/{accountID}.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := int64Param(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, account)
}

// Deactivate handles POST /accounts/{accountID}/deactivate.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	accountID, err := int64Param(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	account, err := h.accounts.Deactivate(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, account)
}

// GetTransactionHistory handles GET /accounts/{accountID}/transactions.
// Query: limit, offset, from and to (RFC 3339).
func (h *AccountHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := int64Param(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	filter := repository.TransactionFilter{
		Limit:  intQuery(r, "limit", 10),
		Offset: intQuery(r, "offset", 0),
	}
	if filter.Limit == 0 {
		filter.Limit = 10
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		*dst = &at
	}

	transactions, total, err := h.engine.History(r.Context(), accountID, filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		TotalCount: total,
	})
}

// Audit handles GET /accounts/{accountID}/audit.
func (h *AccountHandler) Audit(w http.ResponseWriter, r *http.Request) {
	accountID, err := int64Param(r, "accountID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	report, err := h.engine.Audit(r.Context(), accountID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, report)
}

// GetTransaction handles GET /transactions/{code}.
func (h *AccountHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.engine.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, txn)
}

// CancelTransaction handles POST /transactions/{transactionID}/cancel.
func (h *AccountHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "transactionID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	txn, err := h.engine.CancelPending(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, txn)
}

// ListPendingTransactions handles GET /transactions/pending?older_than=15m&limit=100.
func (h *AccountHandler) ListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	age, err := durationQuery(r, "older_than", 15*time.Minute)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	txns, err := h.engine.ListStalePending(r.Context(), age, intQuery(r, "limit", 100))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": txns})
}
