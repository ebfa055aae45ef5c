package handlers

import (
	"net"
	"net/http"
	"strings"
)

// handleCastVote records a single vote; one per email and one per client IP
func (h *Handlers) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	receipt, err := h.Voting.CastVote(r.Context(), req.ContestantID, req.VoterEmail, clientIP(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondOK(w, receipt)
}

// handleGetResults returns the live tally
func (h *Handlers) handleGetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Voting.ComputeResults(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, results)
}

// clientIP returns the caller's address without the port.
// Behind a trusted proxy RemoteAddr has already been rewritten by middleware.RealIP.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
