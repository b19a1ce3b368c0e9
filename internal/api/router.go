// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wallet-ledger/internal/api/handler"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Accounts     *handler.AccountHandler
	Transfers    *handler.TransferHandler
	TopUps       *handler.TopUpHandler
	Reservations *handler.ReservationHandler
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Bound every request

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.Accounts.OpenAccount)
		r.Get("/{accountID}", h.Accounts.GetAccount)
		r.Post("/{accountID}/deactivate", h.Accounts.Deactivate)
		r.Get("/{accountID}/transactions", h.Accounts.GetTransactionHistory)
		r.Get("/{accountID}/audit", h.Accounts.Audit)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/pending", h.Accounts.ListPendingTransactions)
		r.Get("/{code}", h.Accounts.GetTransaction)
		r.Post("/{transactionID}/cancel", h.Accounts.CancelTransaction)
	})

	// Transfers involve two accounts, so they live outside /accounts
	r.Post("/transfers", h.Transfers.Transfer)
	r.Get("/transfers/{code}", h.Transfers.GetTransfer)

	r.Route("/topups", func(r chi.Router) {
		r.Post("/", h.TopUps.Submit)
		r.Get("/pending", h.TopUps.ListPending)
		r.Post("/gateway/callback", h.TopUps.GatewayCallback)
		r.Get("/{topupID}", h.TopUps.Get)
		r.Post("/{topupID}/approve", h.TopUps.Approve)
		r.Post("/{topupID}/reject", h.TopUps.Reject)
	})

	r.Post("/reservations", h.Reservations.Reserve)
	r.Delete("/reservations/{reservationID}", h.Reservations.Release)
	r.Get("/products/{productID}/availability", h.Reservations.Availability)
	r.Post("/ppob/purchases", h.Reservations.Purchase)

	return r
}
