// Package pesepay provides a client for the Pesepay payments engine.
package pesepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abrezinsky/pageantvote/internal/logger"
)

// DefaultBaseURL is the production payments engine endpoint
const DefaultBaseURL = "https://api.pesepay.com/api/payments-engine"

// Transaction statuses reported by the gateway
const (
	StatusSuccess   = "SUCCESS"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
	StatusDeclined  = "DECLINED"
	StatusError     = "ERROR"
	StatusCancelled = "CANCELLED"
	StatusTimeOut   = "TIME_OUT"
	StatusTimedOut  = "TIMED_OUT"
)

// Config holds the merchant credentials and callback URLs
type Config struct {
	IntegrationKey string
	EncryptionKey  string
	BaseURL        string
	ResultURL      string // server-to-server notification
	ReturnURL      string // browser redirect after payment
	Timeout        time.Duration
}

// AmountDetails is the amount block of a transaction
type AmountDetails struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

// Transaction is a payment request sent to the gateway
type Transaction struct {
	AmountDetails     AmountDetails `json:"amountDetails"`
	ReasonForPayment  string        `json:"reasonForPayment"`
	MerchantReference string        `json:"merchantReference"`
	ResultURL         string        `json:"resultUrl"`
	ReturnURL         string        `json:"returnUrl"`
}

// InitiateResponse is the outcome of initiating a transaction.
// Success is false when the gateway rejected the request; Message explains why.
type InitiateResponse struct {
	Success         bool
	Message         string
	ReferenceNumber string
	PollURL         string
	RedirectURL     string
}

// StatusResponse is the outcome of checking or polling a transaction
type StatusResponse struct {
	Success           bool
	Message           string
	ReferenceNumber   string
	TransactionStatus string
}

// Paid reports whether the gateway considers the transaction settled
func (s *StatusResponse) Paid() bool {
	return s.Success && strings.EqualFold(s.TransactionStatus, StatusSuccess)
}

// Client defines the interface for Pesepay operations
type Client interface {
	// CreateTransaction builds a transaction carrying the configured callback URLs
	CreateTransaction(amount float64, currency, reason, merchantReference string) Transaction
	// InitiateTransaction registers the transaction and returns the redirect and poll URLs
	InitiateTransaction(ctx context.Context, tx Transaction) (*InitiateResponse, error)
	// CheckPayment looks a transaction up by the gateway reference number
	CheckPayment(ctx context.Context, referenceNumber string) (*StatusResponse, error)
	// PollTransaction fetches transaction status from a poll URL returned at initiation
	PollTransaction(ctx context.Context, pollURL string) (*StatusResponse, error)
}

// payload is the decrypted body of a gateway response
type payload struct {
	ReferenceNumber   string `json:"referenceNumber"`
	PollURL           string `json:"pollUrl"`
	RedirectURL       string `json:"redirectUrl"`
	TransactionStatus string `json:"transactionStatus"`
}

// envelope wraps every request and successful response body
type envelope struct {
	Payload string `json:"payload"`
}

// errorBody is returned by the gateway on rejected requests
type errorBody struct {
	Message string `json:"message"`
}

// HTTPClient is a real HTTP client for Pesepay
type HTTPClient struct {
	cfg        Config
	cipher     *cipherBox
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new Pesepay client. The encryption key must be 32 bytes.
func NewHTTPClient(cfg Config, log logger.Logger) (*HTTPClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewHTTPClientWithHTTPClient(cfg, &http.Client{Timeout: timeout}, log)
}

// NewHTTPClientWithHTTPClient creates a new Pesepay client with a custom http.Client
func NewHTTPClientWithHTTPClient(cfg Config, httpClient *http.Client, log logger.Logger) (*HTTPClient, error) {
	if cfg.IntegrationKey == "" {
		return nil, fmt.Errorf("pesepay: integration key is required")
	}
	box, err := newCipherBox(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{cfg: cfg, cipher: box, httpClient: httpClient, log: log}, nil
}

// CreateTransaction builds a transaction carrying the configured callback URLs
func (c *HTTPClient) CreateTransaction(amount float64, currency, reason, merchantReference string) Transaction {
	return Transaction{
		AmountDetails:     AmountDetails{Amount: amount, CurrencyCode: currency},
		ReasonForPayment:  reason,
		MerchantReference: merchantReference,
		ResultURL:         c.cfg.ResultURL,
		ReturnURL:         c.cfg.ReturnURL,
	}
}

// InitiateTransaction registers the transaction with the gateway
func (c *HTTPClient) InitiateTransaction(ctx context.Context, tx Transaction) (*InitiateResponse, error) {
	plain, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	body, err := json.Marshal(envelope{Payload: c.cipher.encrypt(plain)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	p, msg, err := c.doRequest(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/payments/initiate", body)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &InitiateResponse{Success: false, Message: msg}, nil
	}
	return &InitiateResponse{
		Success:         true,
		ReferenceNumber: p.ReferenceNumber,
		PollURL:         p.PollURL,
		RedirectURL:     p.RedirectURL,
	}, nil
}

// CheckPayment looks a transaction up by the gateway reference number
func (c *HTTPClient) CheckPayment(ctx context.Context, referenceNumber string) (*StatusResponse, error) {
	apiURL := c.cfg.BaseURL + "/v1/payments/check-payment?referenceNumber=" + url.QueryEscape(referenceNumber)
	return c.status(ctx, apiURL)
}

// PollTransaction fetches transaction status from a poll URL
func (c *HTTPClient) PollTransaction(ctx context.Context, pollURL string) (*StatusResponse, error) {
	return c.status(ctx, pollURL)
}

func (c *HTTPClient) status(ctx context.Context, apiURL string) (*StatusResponse, error) {
	p, msg, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &StatusResponse{Success: false, Message: msg}, nil
	}
	return &StatusResponse{
		Success:           true,
		ReferenceNumber:   p.ReferenceNumber,
		TransactionStatus: p.TransactionStatus,
	}, nil
}

// doRequest executes a gateway request and decrypts the response payload.
// A rejected request yields a nil payload and the gateway message; transport
// and decoding problems are returned as errors.
func (c *HTTPClient) doRequest(ctx context.Context, method, apiURL string, body []byte) (*payload, string, error) {
	c.log.Debug("Pesepay request", "method", method, "url", apiURL)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.IntegrationKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to Pesepay: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Pesepay response", "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.Unmarshal(respBody, &eb); err != nil || eb.Message == "" {
			eb.Message = fmt.Sprintf("Pesepay returned status %d", resp.StatusCode)
		}
		return nil, eb.Message, nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, "", fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Payload == "" {
		return nil, "", fmt.Errorf("failed to parse response: missing payload")
	}

	plain, err := c.cipher.decrypt(env.Payload)
	if err != nil {
		return nil, "", err
	}

	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, "", fmt.Errorf("failed to parse payload: %w", err)
	}
	return &p, "", nil
}
