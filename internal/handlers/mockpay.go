package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/pageantvote/pkg/pesepay"
)

var checkoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html><head><title>Mock payment</title></head>
<body>
<h1>Mock payment {{.}}</h1>
<p>No money moves on this page.</p>
<ul>
<li><a href="?outcome=success">Pay</a></li>
<li><a href="?outcome=failed">Fail</a></li>
<li><a href="?outcome=cancelled">Cancel</a></li>
</ul>
</body></html>
`))

// handleMockCheckout stands in for the gateway's hosted payment page.
// Without an outcome it shows the choices; with one it settles the payment,
// notifies the result handler like the gateway would and sends the buyer back.
func (h *Handlers) handleMockCheckout(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	outcome := r.URL.Query().Get("outcome")

	if outcome == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := checkoutPage.Execute(w, reference); err != nil {
			h.logger().Error("Failed to render checkout page", "error", err)
		}
		return
	}

	returnURL, err := h.Checkout.Checkout(reference, outcome)
	switch {
	case errors.Is(err, pesepay.ErrUnknownReference):
		h.respondError(w, r, NotFound("Transaction not found"))
		return
	case errors.Is(err, pesepay.ErrUnknownOutcome):
		h.respondError(w, r, BadRequest("Outcome must be success, failed or cancelled"))
		return
	case err != nil:
		h.respondError(w, r, err)
		return
	}

	h.logger().Info("Mock checkout completed", "reference", reference, "outcome", outcome)
	h.Payments.HandleCallback(r.Context(), reference)

	if returnURL == "" {
		returnURL = h.SuccessPage
	}
	http.Redirect(w, r, returnURL, http.StatusFound)
}
