package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if h.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)

	// WebSocket connections outlive the request timeout
	if h.Live != nil {
		r.Get("/ws", h.Live.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Contestants
		r.Get("/api/contestants", h.handleListContestants)
		r.Post("/api/contestants", h.handleRegisterContestant)
		r.Get("/api/contestants/{id}/photo", h.handleContestantPhoto)

		// Voting
		r.Post("/api/votes", h.handleCastVote)
		r.Get("/api/votes/results", h.handleGetResults)

		// Tickets
		r.Post("/api/tickets/pesepay", h.handleInitiatePurchase)
		r.Get("/api/tickets/status/{reference}", h.handleTicketStatus)
		r.Get("/api/tickets/stats", h.handleTicketStats)
		r.Get("/api/tickets/{reference}/qr", h.handleTicketQR)

		// Gateway callbacks
		r.Get("/api/payment/result", h.handlePaymentResult)
		r.Post("/api/payment/result", h.handlePaymentResult)
		r.Get("/api/payment/return", h.handlePaymentReturn)

		// Simulated hosted payment page
		if h.Checkout != nil {
			r.Get("/mockpay/pay/{reference}", h.handleMockCheckout)
		}
	})

	// Front-end assets
	if h.staticServer != nil {
		r.Handle("/*", h.staticServer)
	}

	return r
}
