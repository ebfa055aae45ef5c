package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/pageantvote/internal/config"
	"github.com/abrezinsky/pageantvote/internal/handlers"
	"github.com/abrezinsky/pageantvote/internal/logger"
	"github.com/abrezinsky/pageantvote/internal/repository"
	"github.com/abrezinsky/pageantvote/internal/services"
	"github.com/abrezinsky/pageantvote/internal/websocket"
	"github.com/abrezinsky/pageantvote/pkg/pesepay"
)

// shutdownTimeout bounds how long in-flight requests get on Close
const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      config.Config
	handlers *handlers.Handlers
	repo     *repository.Repository
	hub      *websocket.Hub
	gateway  pesepay.Client
	cancel   context.CancelFunc

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// New creates and initializes a new application instance.
// A nil gateway is built from cfg: the live Pesepay client, or the in-process fake with cfg.MockGateway.
func New(log logger.Logger, cfg config.Config, gateway pesepay.Client) (*App, error) {
	if gateway == nil {
		var err error
		gateway, err = newGateway(log, cfg, realNetworkProvider{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
		}
	}

	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Initialize services
	contestantService := services.NewContestantService(log, repo, cfg.UploadsDir)
	votingService := services.NewVotingService(log, repo)
	paymentConfig := services.DefaultPaymentConfig()
	if cfg.Currency != "" {
		paymentConfig.Currency = cfg.Currency
	}
	paymentService := services.NewPaymentService(log, repo, gateway, paymentConfig)

	ctx, cancel := context.WithCancel(context.Background())

	if err := prepareData(ctx, log, cfg, contestantService, votingService); err != nil {
		cancel()
		repo.Close()
		return nil, err
	}

	// Initialize WebSocket hub with DI
	hub := websocket.New(log, votingService)
	hub.Start(ctx)
	votingService.SetBroadcaster(hub)
	paymentService.SetBroadcaster(hub)
	go hub.StartResultsTicker(ctx, cfg.ResultsInterval)

	opts := handlers.Options{
		Live:        http.HandlerFunc(hub.ServeWs),
		StaticDir:   cfg.StaticDir,
		SuccessPage: cfg.SuccessPage,
		TrustProxy:  cfg.TrustProxy,
	}
	if mock, ok := gateway.(*pesepay.MockClient); ok {
		opts.Checkout = mock
	}
	h := handlers.New(contestantService, votingService, paymentService, log, opts)

	return &App{
		log:      log,
		cfg:      cfg,
		handlers: h,
		repo:     repo,
		hub:      hub,
		gateway:  gateway,
		cancel:   cancel,
	}, nil
}

// prepareData audits vote counters and seeds sample contestants into an empty store
func prepareData(ctx context.Context, log logger.Logger, cfg config.Config, contestants services.ContestantServicer, voting services.VotingServicer) error {
	mismatches, err := voting.AuditTallies(ctx)
	if err != nil {
		return fmt.Errorf("failed to audit vote tallies: %w", err)
	}
	if len(mismatches) > 0 {
		log.Warn("Vote counters disagree with recorded votes", "contestants", len(mismatches))
	}

	if !cfg.SeedSamples {
		return nil
	}
	added, err := contestants.SeedSamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed sample contestants: %w", err)
	}
	if added > 0 {
		log.Info("Sample contestants inserted", "count", added)
	}
	return nil
}

// newGateway builds the payment gateway client from configuration.
// Callback URLs left empty are pointed at this server's LAN address.
func newGateway(log logger.Logger, cfg config.Config, provider networkProvider) (pesepay.Client, error) {
	baseURL := fmt.Sprintf("http://%s:%d", getPreferredIP(provider), cfg.Port)

	if cfg.MockGateway {
		log.Warn("Using the in-process mock payment gateway; no real payments will be taken",
			"checkout", baseURL+"/mockpay/pay/{reference}")
		return pesepay.NewMockClient(
			pesepay.WithBaseURL(baseURL+"/mockpay"),
			pesepay.WithCallbackURLs(baseURL+"/api/payment/result", baseURL+"/api/payment/return"),
		), nil
	}

	pc := pesepay.Config{
		IntegrationKey: cfg.Pesepay.IntegrationKey,
		EncryptionKey:  cfg.Pesepay.EncryptionKey,
		BaseURL:        cfg.Pesepay.BaseURL,
		ResultURL:      cfg.Pesepay.ResultURL,
		ReturnURL:      cfg.Pesepay.ReturnURL,
	}
	if pc.ResultURL == "" {
		pc.ResultURL = baseURL + "/api/payment/result"
		log.Info("Default payment result URL set", "url", pc.ResultURL)
	}
	if pc.ReturnURL == "" {
		pc.ReturnURL = baseURL + "/api/payment/return"
		log.Info("Default payment return URL set", "url", pc.ReturnURL)
	}
	return pesepay.NewHTTPClient(pc, log)
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Run starts the HTTP server and blocks until it stops.
// A server stopped by Close returns nil.
func (a *App) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(ln)
}

// Serve accepts connections on ln until Close is called
func (a *App) Serve(ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		ln.Close()
		return nil
	}
	a.server = server
	a.mu.Unlock()

	a.log.Info("Server starting", "url", fmt.Sprintf("http://%s", displayAddr(ln.Addr())))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	server := a.server
	a.mu.Unlock()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.log.Warn("Server shutdown incomplete", "error", err)
		}
	}

	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}

// displayAddr swaps a wildcard listen address for the LAN address
func displayAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return addr.String()
	}
	return net.JoinHostPort(getPreferredIP(realNetworkProvider{}), fmt.Sprint(tcp.Port))
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access.
// Prefers private network addresses (192.168.x.x, 10.x.x.x, 172.16-31.x.x).
// Falls back to localhost if no suitable address is found.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Only consider IPv4 addresses
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
