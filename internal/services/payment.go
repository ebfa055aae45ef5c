package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/pageantvote/internal/errors"
	"github.com/abrezinsky/pageantvote/internal/logger"
	"github.com/abrezinsky/pageantvote/internal/models"
	"github.com/abrezinsky/pageantvote/internal/repository"
	"github.com/abrezinsky/pageantvote/pkg/pesepay"
)

// PaymentConfig holds the fixed parameters of every ticket transaction
type PaymentConfig struct {
	Currency      string
	PaymentMethod string
}

// DefaultPaymentConfig returns USD payments tagged as pesepay
func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{Currency: "USD", PaymentMethod: "pesepay"}
}

// PaymentService orchestrates ticket purchases through the payment gateway.
// It keeps no state between requests; every ticket lives in the store.
type PaymentService struct {
	log          logger.Logger
	repo         repository.TicketRepository
	gateway      pesepay.Client
	cfg          PaymentConfig
	broadcaster  Broadcaster
	newReference func() string
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(log logger.Logger, repo repository.TicketRepository, gateway pesepay.Client, cfg PaymentConfig) *PaymentService {
	defaults := DefaultPaymentConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = defaults.PaymentMethod
	}
	return &PaymentService{
		log:          log,
		repo:         repo,
		gateway:      gateway,
		cfg:          cfg,
		newReference: NewMerchantReference,
	}
}

// SetBroadcaster sets the broadcaster for sending ticket status updates to clients
func (s *PaymentService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// PurchaseRequest is a ticket purchase submitted by a buyer
type PurchaseRequest struct {
	BuyerName  string  `json:"buyerName"`
	BuyerEmail string  `json:"buyerEmail"`
	Phone      string  `json:"phone"`
	TicketType string  `json:"ticketType"`
	Price      float64 `json:"price"`
}

// PurchaseResult tells the buyer where to pay and how to follow up
type PurchaseResult struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
	Reference   string `json:"reference"`
	PollURL     string `json:"poll_url"`
}

// PaymentStatusResult is the stored status of a ticket after reconciliation
type PaymentStatusResult struct {
	Success   bool                 `json:"success"`
	Paid      bool                 `json:"paid"`
	Status    models.PaymentStatus `json:"status"`
	Reference string               `json:"reference"`
}

// NewMerchantReference returns a reference unique per purchase attempt:
// a nanosecond timestamp plus random hex, so concurrent attempts never collide.
func NewMerchantReference() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("TKT-%d-%s", time.Now().UnixNano(), suffix)
}

// MapGatewayStatus converts a gateway transaction status to a ticket status.
// Unknown and in-progress statuses map to pending.
func MapGatewayStatus(status string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case pesepay.StatusSuccess:
		return models.PaymentPaid
	case pesepay.StatusFailed, pesepay.StatusDeclined, pesepay.StatusError, pesepay.StatusTimeOut, pesepay.StatusTimedOut:
		return models.PaymentFailed
	case pesepay.StatusCancelled:
		return models.PaymentCancelled
	default:
		return models.PaymentPending
	}
}

// InitiatePurchase starts a gateway transaction and stores a pending ticket.
// Nothing is stored when the gateway fails or rejects the transaction.
func (s *PaymentService) InitiatePurchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	req.BuyerName = strings.TrimSpace(req.BuyerName)
	req.BuyerEmail = strings.TrimSpace(req.BuyerEmail)
	req.Phone = strings.TrimSpace(req.Phone)
	req.TicketType = strings.TrimSpace(req.TicketType)
	if req.BuyerName == "" || req.BuyerEmail == "" || req.Phone == "" || req.TicketType == "" || req.Price == 0 {
		return nil, ErrFieldsRequired
	}
	if req.Price < 0 {
		return nil, errors.Validation("Price must be greater than zero")
	}

	merchantRef := s.newReference()
	tx := s.gateway.CreateTransaction(req.Price, s.cfg.Currency, req.TicketType+" Ticket Purchase", merchantRef)

	resp, err := s.gateway.InitiateTransaction(ctx, tx)
	if err != nil {
		s.log.Error("Payment initiation failed", "merchant_reference", merchantRef, "error", err)
		return nil, errors.Gateway("PesePay error", err)
	}
	if !resp.Success {
		s.log.Warn("Payment initiation rejected", "merchant_reference", merchantRef, "message", resp.Message)
		return nil, errors.Gateway("Failed to initiate payment: "+resp.Message, nil)
	}
	if resp.ReferenceNumber == "" {
		return nil, errors.Gateway("Failed to initiate payment: gateway returned no reference number", nil)
	}

	ticket := models.Ticket{
		BuyerName:            req.BuyerName,
		BuyerEmail:           req.BuyerEmail,
		Phone:                req.Phone,
		TicketType:           req.TicketType,
		Price:                req.Price,
		PaymentMethod:        s.cfg.PaymentMethod,
		PaymentStatus:        models.PaymentPending,
		MerchantReference:    merchantRef,
		TransactionReference: resp.ReferenceNumber,
		PollURL:              resp.PollURL,
	}
	id, err := s.repo.CreateTicket(ctx, ticket)
	if err != nil {
		s.log.Error("Failed to save ticket after payment initiation",
			"merchant_reference", merchantRef, "reference", resp.ReferenceNumber, "error", err)
		return nil, errors.Internal(err)
	}

	s.log.Info("Ticket payment initiated", "ticket_id", id, "reference", resp.ReferenceNumber, "type", req.TicketType)

	return &PurchaseResult{
		Success:     true,
		RedirectURL: resp.RedirectURL,
		Reference:   resp.ReferenceNumber,
		PollURL:     resp.PollURL,
	}, nil
}

// HandleCallback reconciles a ticket after the gateway notifies us.
// It never fails: problems are logged and the notification is acknowledged anyway.
// Unknown references and tickets already in a terminal state are ignored.
func (s *PaymentService) HandleCallback(ctx context.Context, reference string) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		s.log.Warn("Payment callback without reference")
		return
	}

	ticket, err := s.repo.GetTicketByReference(ctx, reference)
	if err == repository.ErrNotFound {
		s.log.Warn("Payment callback for unknown reference", "reference", reference)
		return
	}
	if err != nil {
		s.log.Error("Payment callback lookup failed", "reference", reference, "error", err)
		return
	}
	if ticket.PaymentStatus.Terminal() {
		s.log.Debug("Payment callback for settled ticket", "reference", reference, "status", ticket.PaymentStatus)
		return
	}

	resp, err := s.gateway.CheckPayment(ctx, reference)
	if err != nil {
		s.log.Error("Error checking payment status", "reference", reference, "error", err)
		return
	}
	if !resp.Success {
		s.log.Warn("Gateway could not check payment", "reference", reference, "message", resp.Message)
		return
	}

	if _, err := s.applyStatus(ctx, reference, resp.TransactionStatus); err != nil {
		s.log.Error("Error updating payment status", "reference", reference, "error", err)
	}
}

// PollStatus asks the gateway for the latest status of a ticket and returns
// the stored status after applying it. A settled ticket never moves again.
func (s *PaymentService) PollStatus(ctx context.Context, reference string) (*PaymentStatusResult, error) {
	ticket, err := s.repo.GetTicketByReference(ctx, reference)
	if err == repository.ErrNotFound {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	if ticket.PollURL == "" {
		return nil, ErrTicketNotFound
	}

	resp, err := s.gateway.PollTransaction(ctx, ticket.PollURL)
	if err != nil {
		s.log.Error("Payment poll failed", "reference", reference, "error", err)
		return nil, errors.Gateway("PesePay error", err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to check payment status"
		}
		return nil, errors.Gateway(msg, nil)
	}

	status := ticket.PaymentStatus
	if !status.Terminal() {
		status, err = s.applyStatus(ctx, reference, resp.TransactionStatus)
		if err != nil {
			return nil, errors.Internal(err)
		}
	}

	return &PaymentStatusResult{
		Success:   true,
		Paid:      status == models.PaymentPaid,
		Status:    status,
		Reference: reference,
	}, nil
}

// applyStatus writes a gateway status to a pending ticket and returns the
// ticket's stored status afterwards
func (s *PaymentService) applyStatus(ctx context.Context, reference, gatewayStatus string) (models.PaymentStatus, error) {
	target := MapGatewayStatus(gatewayStatus)
	if target == models.PaymentPending {
		return s.storedStatus(ctx, reference)
	}

	changed, err := s.repo.UpdateTicketStatus(ctx, reference, target)
	if err != nil {
		return "", err
	}
	if !changed {
		// Another request settled it first
		return s.storedStatus(ctx, reference)
	}

	s.log.Info("Payment status updated", "reference", reference, "status", target)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTicketStatus(reference, target)
	}
	return target, nil
}

func (s *PaymentService) storedStatus(ctx context.Context, reference string) (models.PaymentStatus, error) {
	ticket, err := s.repo.GetTicketByReference(ctx, reference)
	if err != nil {
		return "", err
	}
	return ticket.PaymentStatus, nil
}

// TicketStats returns sales per ticket type
func (s *PaymentService) TicketStats(ctx context.Context) ([]models.TicketStats, error) {
	stats, err := s.repo.TicketStats(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return stats, nil
}

// TicketQR renders an admission QR code (PNG) for a paid ticket
func (s *PaymentService) TicketQR(ctx context.Context, reference string) ([]byte, error) {
	ticket, err := s.repo.GetTicketByReference(ctx, reference)
	if err == repository.ErrNotFound {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	if ticket.PaymentStatus != models.PaymentPaid {
		return nil, ErrTicketNotPaid
	}

	content := fmt.Sprintf("TICKET:%s:%s:%s", ticket.TransactionReference, ticket.TicketType, ticket.BuyerName)
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return png, nil
}
