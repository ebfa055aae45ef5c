package handlers

import (
	"net/http"

	"github.com/abrezinsky/pageantvote/internal/logger"
	"github.com/abrezinsky/pageantvote/internal/services"
)

// DefaultSuccessPage is where buyers land after the gateway hands them back
const DefaultSuccessPage = "/ticket-success.html"

// NewStaticServer creates a static file server rooted at dir
func NewStaticServer(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Contestants  services.ContestantServicer
	Voting       services.VotingServicer
	Payments     services.PaymentServicer
	Live         http.Handler // websocket endpoint
	Log          logger.Logger
	SuccessPage  string
	Checkout     Checkout // mock gateway checkout; nil with a live gateway
	TrustProxy   bool     // take the client address from X-Forwarded-For / X-Real-IP
	staticServer http.Handler
}

// Checkout settles a payment on a simulated gateway page.
// It returns the URL the buyer goes back to.
type Checkout interface {
	Checkout(reference, outcome string) (string, error)
}

// Options holds the optional parts of the HTTP surface
type Options struct {
	// Live serves /ws; the route is omitted when nil
	Live http.Handler
	// StaticDir is served under / when set
	StaticDir   string
	SuccessPage string
	// Checkout mounts /mockpay/pay/{reference} when set
	Checkout Checkout
	// TrustProxy honours proxy address headers; only enable behind a proxy that sets them
	TrustProxy bool
}

// New creates a new Handlers instance with all dependencies
func New(
	contestants services.ContestantServicer,
	voting services.VotingServicer,
	payments services.PaymentServicer,
	log logger.Logger,
	opts Options,
) *Handlers {
	h := &Handlers{
		Contestants: contestants,
		Voting:      voting,
		Payments:    payments,
		Live:        opts.Live,
		Log:         log,
		SuccessPage: opts.SuccessPage,
		Checkout:    opts.Checkout,
		TrustProxy:  opts.TrustProxy,
	}
	if h.SuccessPage == "" {
		h.SuccessPage = DefaultSuccessPage
	}
	if opts.StaticDir != "" {
		h.staticServer = NewStaticServer(opts.StaticDir)
	}
	return h
}
