package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/pageantvote/internal/services"
)

// handleInitiatePurchase starts a gateway payment for a ticket
func (h *Handlers) handleInitiatePurchase(w http.ResponseWriter, r *http.Request) {
	var req TicketPurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Payments.InitiatePurchase(r.Context(), services.PurchaseRequest{
		BuyerName:  req.BuyerName,
		BuyerEmail: req.BuyerEmail,
		Phone:      req.Phone,
		TicketType: req.TicketType,
		Price:      req.Price,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondOK(w, result)
}

// handleTicketStatus polls the gateway for a ticket's payment status
func (h *Handlers) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.Payments.PollStatus(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleTicketStats returns per-type ticket counts and revenue
func (h *Handlers) handleTicketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Payments.TicketStats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, stats)
}

// handleTicketQR returns the admission QR code for a paid ticket
func (h *Handlers) handleTicketQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Payments.TicketQR(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}
