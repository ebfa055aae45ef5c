package pesepay

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MockBaseURL prefixes the poll and redirect URLs handed out by MockClient
const MockBaseURL = "https://mock.pesepay.test"

// Checkout errors
var (
	ErrUnknownReference = errors.New("pesepay: unknown reference number")
	ErrUnknownOutcome   = errors.New("pesepay: outcome must be success, failed or cancelled")
)

// MockClient is a mock Pesepay client for testing.
// Reference numbers are "PSP-" + merchant reference; every transaction starts PENDING.
type MockClient struct {
	mu sync.Mutex

	statuses   map[string]string // referenceNumber -> transaction status
	returnURLs map[string]string // referenceNumber -> buyer return URL

	baseURL   string
	resultURL string
	returnURL string

	initiateErr     error
	initiateFailure string
	checkErr        error
	checkFailure    string
	pollErr         error
	pollFailure     string

	initiateCalls int
	checkCalls    int
	pollCalls     int
	transactions  []Transaction
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithInitiateError makes InitiateTransaction fail with a transport error
func WithInitiateError(err error) MockOption {
	return func(m *MockClient) {
		m.initiateErr = err
	}
}

// WithInitiateFailure makes the gateway reject initiations with message
func WithInitiateFailure(message string) MockOption {
	return func(m *MockClient) {
		m.initiateFailure = message
	}
}

// WithCheckError makes CheckPayment fail with a transport error
func WithCheckError(err error) MockOption {
	return func(m *MockClient) {
		m.checkErr = err
	}
}

// WithCheckFailure makes the gateway reject status checks with message
func WithCheckFailure(message string) MockOption {
	return func(m *MockClient) {
		m.checkFailure = message
	}
}

// WithPollError makes PollTransaction fail with a transport error
func WithPollError(err error) MockOption {
	return func(m *MockClient) {
		m.pollErr = err
	}
}

// WithPollFailure makes the gateway reject polls with message
func WithPollFailure(message string) MockOption {
	return func(m *MockClient) {
		m.pollFailure = message
	}
}

// WithBaseURL makes poll and checkout URLs point at baseURL instead of MockBaseURL
func WithBaseURL(baseURL string) MockOption {
	return func(m *MockClient) {
		m.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCallbackURLs sets the result and return URLs put on new transactions
func WithCallbackURLs(resultURL, returnURL string) MockOption {
	return func(m *MockClient) {
		m.resultURL = resultURL
		m.returnURL = returnURL
	}
}

// WithStatus presets the transaction status for a reference number
func WithStatus(referenceNumber, status string) MockOption {
	return func(m *MockClient) {
		m.statuses[referenceNumber] = status
	}
}

// NewMockClient creates a new mock client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		statuses:   make(map[string]string),
		returnURLs: make(map[string]string),
		baseURL:    MockBaseURL,
		resultURL:  MockBaseURL + "/result",
		returnURL:  MockBaseURL + "/return",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReferenceFor returns the reference number the mock assigns to a merchant reference
func ReferenceFor(merchantReference string) string {
	return "PSP-" + merchantReference
}

// SetStatus changes the status the gateway reports for a reference number
func (m *MockClient) SetStatus(referenceNumber, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[referenceNumber] = status
}

// CreateTransaction builds a transaction with the mock's callback URLs
func (m *MockClient) CreateTransaction(amount float64, currency, reason, merchantReference string) Transaction {
	return Transaction{
		AmountDetails:     AmountDetails{Amount: amount, CurrencyCode: currency},
		ReasonForPayment:  reason,
		MerchantReference: merchantReference,
		ResultURL:         m.resultURL,
		ReturnURL:         m.returnURL,
	}
}

// InitiateTransaction records the transaction and hands out mock URLs
func (m *MockClient) InitiateTransaction(ctx context.Context, tx Transaction) (*InitiateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.initiateCalls++
	if m.initiateErr != nil {
		return nil, m.initiateErr
	}
	if m.initiateFailure != "" {
		return &InitiateResponse{Success: false, Message: m.initiateFailure}, nil
	}

	ref := ReferenceFor(tx.MerchantReference)
	if _, ok := m.statuses[ref]; !ok {
		m.statuses[ref] = StatusPending
	}
	m.returnURLs[ref] = tx.ReturnURL
	m.transactions = append(m.transactions, tx)

	return &InitiateResponse{
		Success:         true,
		ReferenceNumber: ref,
		PollURL:         m.baseURL + "/poll/" + ref,
		RedirectURL:     m.baseURL + "/pay/" + ref,
	}, nil
}

// Checkout plays the buyer's side of the hosted payment page: it settles the
// transaction with outcome (success, failed or cancelled) and returns the URL
// the buyer is sent back to.
func (m *MockClient) Checkout(referenceNumber, outcome string) (string, error) {
	var status string
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "success", "paid":
		status = StatusSuccess
	case "failed", "declined":
		status = StatusFailed
	case "cancelled", "canceled":
		status = StatusCancelled
	default:
		return "", ErrUnknownOutcome
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[referenceNumber]; !ok {
		return "", ErrUnknownReference
	}
	m.statuses[referenceNumber] = status
	return m.returnURLs[referenceNumber], nil
}

// CheckPayment reports the current status of a reference number
func (m *MockClient) CheckPayment(ctx context.Context, referenceNumber string) (*StatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkCalls++
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	if m.checkFailure != "" {
		return &StatusResponse{Success: false, Message: m.checkFailure}, nil
	}
	return m.statusLocked(referenceNumber), nil
}

// PollTransaction reports the status of the reference number encoded in pollURL
func (m *MockClient) PollTransaction(ctx context.Context, pollURL string) (*StatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pollCalls++
	if m.pollErr != nil {
		return nil, m.pollErr
	}
	if m.pollFailure != "" {
		return &StatusResponse{Success: false, Message: m.pollFailure}, nil
	}
	ref := pollURL[strings.LastIndex(pollURL, "/")+1:]
	return m.statusLocked(ref), nil
}

func (m *MockClient) statusLocked(ref string) *StatusResponse {
	status, ok := m.statuses[ref]
	if !ok {
		return &StatusResponse{Success: false, Message: "Transaction not found"}
	}
	return &StatusResponse{Success: true, ReferenceNumber: ref, TransactionStatus: status}
}

// InitiateCalls returns how many times InitiateTransaction was called
func (m *MockClient) InitiateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiateCalls
}

// CheckCalls returns how many times CheckPayment was called
func (m *MockClient) CheckCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkCalls
}

// PollCalls returns how many times PollTransaction was called
func (m *MockClient) PollCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollCalls
}

// Transactions returns the successfully initiated transactions
func (m *MockClient) Transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transaction(nil), m.transactions...)
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
