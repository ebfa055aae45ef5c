package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
)

// handlePaymentResult is the gateway's server-to-server notification.
// It always answers 200 so the gateway does not retry; failures are logged by the service.
func (h *Handlers) handlePaymentResult(w http.ResponseWriter, r *http.Request) {
	h.Payments.HandleCallback(r.Context(), callbackReference(r))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// callbackReference finds the reference number in the query string, a form
// body or a JSON body, accepting both "reference" and "referenceNumber".
func callbackReference(r *http.Request) string {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" && r.Body != nil {
		var body struct {
			Reference       string `json:"reference"`
			ReferenceNumber string `json:"referenceNumber"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err == nil {
			if body.Reference != "" {
				return body.Reference
			}
			if body.ReferenceNumber != "" {
				return body.ReferenceNumber
			}
		}
		return firstNonEmpty(r.URL.Query().Get("reference"), r.URL.Query().Get("referenceNumber"))
	}

	// FormValue covers the query string and urlencoded or multipart bodies
	return firstNonEmpty(r.FormValue("reference"), r.FormValue("referenceNumber"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// handlePaymentReturn sends the buyer's browser back to the success page
func (h *Handlers) handlePaymentReturn(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.SuccessPage, http.StatusFound)
}
