package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/abrezinsky/pageantvote/internal/handlers"
	"github.com/abrezinsky/pageantvote/internal/logger"
	"github.com/abrezinsky/pageantvote/internal/models"
	"github.com/abrezinsky/pageantvote/internal/services"
	"github.com/abrezinsky/pageantvote/internal/testutil"
	"github.com/abrezinsky/pageantvote/pkg/pesepay"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func registration() map[string]interface{} {
	return map[string]interface{}{
		"fullName": "Rudo Makoni",
		"email":    "rudo@example.com",
		"phone":    "+263772000000",
		"age":      22,
		"bio":      "Law student",
	}
}

// multipartRegistration builds a multipart body with an optional photo part
func multipartRegistration(t *testing.T, fields map[string]string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "rudo.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(photo)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func formFields() map[string]string {
	return map[string]string{
		"fullName": "Rudo Makoni",
		"email":    "rudo@example.com",
		"phone":    "+263772000000",
		"age":      "22",
		"bio":      "Law student",
	}
}

// Contestants

func TestHandleRegisterContestant_JSON(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(http.MethodPost, "/api/contestants", mustJSON(t, registration()))
	expectStatus(t, rec, http.StatusOK)

	var resp handlers.ContestantRegisteredResponse
	decodeBody(t, rec, &resp)
	if resp.ID <= 0 || resp.Contestant == nil || resp.Contestant.FullName != "Rudo Makoni" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message != "Contestant registered successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestHandleRegisterContestant_MultipartWithPhoto(t *testing.T) {
	s := newTestSetup(t)

	body, contentType := multipartRegistration(t, formFields(), pngHeader)
	req := httptest.NewRequest(http.MethodPost, "/api/contestants", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	var resp handlers.ContestantRegisteredResponse
	decodeBody(t, rec, &resp)
	if !resp.Contestant.HasPhotoBlob {
		t.Error("expected the uploaded photo to be stored")
	}

	photo := s.do(http.MethodGet, "/api/contestants/"+itoa(resp.ID)+"/photo", nil)
	expectStatus(t, photo, http.StatusOK)
	if ct := photo.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(photo.Body.Bytes(), pngHeader) {
		t.Error("photo bytes do not round-trip")
	}
}

func TestHandleRegisterContestant_MultipartWithoutPhoto(t *testing.T) {
	s := newTestSetup(t)

	body, contentType := multipartRegistration(t, formFields(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/contestants", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	var resp handlers.ContestantRegisteredResponse
	decodeBody(t, rec, &resp)
	if resp.Contestant.HasPhotoBlob {
		t.Error("expected no photo")
	}
}

func TestHandleRegisterContestant_URLEncoded(t *testing.T) {
	s := newTestSetup(t)

	form := url.Values{}
	for k, v := range formFields() {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/contestants", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
}

func TestHandleRegisterContestant_BadAge(t *testing.T) {
	s := newTestSetup(t)

	fields := formFields()
	fields["age"] = "twenty"
	body, contentType := multipartRegistration(t, fields, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/contestants", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestHandleRegisterContestant_MissingFields(t *testing.T) {
	s := newTestSetup(t)

	req := registration()
	delete(req, "bio")
	rec := s.do(http.MethodPost, "/api/contestants", mustJSON(t, req))

	body := expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeValidation)
	if body.Error != "All fields are required" {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHandleRegisterContestant_DuplicateEmail(t *testing.T) {
	s := newTestSetup(t)

	s.do(http.MethodPost, "/api/contestants", mustJSON(t, registration()))
	rec := s.do(http.MethodPost, "/api/contestants", mustJSON(t, registration()))

	body := expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeDuplicate)
	if body.Error != "Email already registered" {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHandleRegisterContestant_InvalidJSON(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(http.MethodPost, "/api/contestants", []byte("{nope"))
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)

	rec = s.do(http.MethodPost, "/api/contestants", []byte{})
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestHandleListContestants(t *testing.T) {
	s := newTestSetup(t)
	ctx := context.Background()

	// Empty table encodes as an array, not null
	rec := s.do(http.MethodGet, "/api/contestants", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rec.Body.String())
	}

	a := testutil.CreateContestant(t, s.repo, "Alpha")
	b := testutil.CreateContestant(t, s.repo, "Beta")
	testutil.CastVotes(t, s.repo, b, 2)
	if _, err := s.repo.CastVote(ctx, a, "solo@voters.test", ""); err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}

	rec = s.do(http.MethodGet, "/api/contestants", nil)
	expectStatus(t, rec, http.StatusOK)

	var list []models.Contestant
	decodeBody(t, rec, &list)
	if len(list) != 2 || list[0].ID != b || list[0].Votes != 2 {
		t.Errorf("expected Beta first with 2 votes, got %+v", list)
	}
}

func TestHandleListContestants_StoreError(t *testing.T) {
	s := newTestSetup(t)
	s.repo.ListContestantsError = errors.New("disk on fire")

	rec := s.do(http.MethodGet, "/api/contestants", nil)
	body := expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeInternalServer)
	if strings.Contains(body.Error, "disk") {
		t.Errorf("internal error leaked to client: %q", body.Error)
	}
}

func TestHandleContestantPhoto_NotFound(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "No Photo")

	for _, path := range []string{
		"/api/contestants/" + itoa(id) + "/photo",
		"/api/contestants/999/photo",
		"/api/contestants/abc/photo",
	} {
		rec := s.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "Image not found" {
			t.Errorf("%s: unexpected body %q", path, rec.Body.String())
		}
	}
}

func TestHandleContestantPhoto_FromUploads(t *testing.T) {
	s := newTestSetup(t)
	if err := writeFile(s.uploadsDir, "grace.png", string(pngHeader)); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
	id, err := s.repo.CreateContestant(context.Background(), models.Contestant{
		FullName: "Grace", Email: "grace@example.com", Phone: "1", Age: 24, Bio: "x",
	}, &models.ContestantPhoto{Filename: "grace.png"})
	if err != nil {
		t.Fatalf("CreateContestant failed: %v", err)
	}

	rec := s.do(http.MethodGet, "/api/contestants/"+itoa(id)+"/photo", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("expected a cache header on photos")
	}
}

// Voting

func voteBody(t *testing.T, id int64, email string) []byte {
	return mustJSON(t, map[string]interface{}{"contestantId": id, "voterEmail": email})
}

func TestHandleCastVote_Success(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "Sarah")

	rec := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "fan@example.com"))
	expectStatus(t, rec, http.StatusOK)

	var receipt services.VoteReceipt
	decodeBody(t, rec, &receipt)
	if receipt.Message != "Vote submitted successfully" || receipt.ContestantID != id {
		t.Errorf("unexpected receipt %+v", receipt)
	}
}

func TestHandleCastVote_DuplicateEmail(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "Sarah")

	s.do(http.MethodPost, "/api/votes", voteBody(t, id, "fan@example.com"), "X-Forwarded-For", "10.0.0.1")
	rec := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "FAN@example.com"), "X-Forwarded-For", "10.0.0.2")

	body := expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeAlreadyVoted)
	if body.Error != "You have already voted. One vote per email address or IP." {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHandleCastVote_DuplicateIP(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "Sarah")

	first := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "a@example.com"), "X-Real-IP", "203.0.113.9")
	expectStatus(t, first, http.StatusOK)

	rec := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "b@example.com"), "X-Real-IP", "203.0.113.9")
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeAlreadyVoted)

	// A different address is still welcome
	rec = s.do(http.MethodPost, "/api/votes", voteBody(t, id, "b@example.com"), "X-Real-IP", "203.0.113.10")
	expectStatus(t, rec, http.StatusOK)
}

func TestHandleCastVote_ConcurrentSameEmail(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "Sarah")

	const workers = 20
	var ok, dup int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "race@example.com"),
				"X-Real-IP", "198.51.100."+itoa(int64(i+1)))
			switch rec.Code {
			case http.StatusOK:
				atomic.AddInt32(&ok, 1)
			case http.StatusBadRequest:
				atomic.AddInt32(&dup, 1)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || dup != workers-1 {
		t.Errorf("expected exactly one accepted vote, got %d ok / %d duplicate", ok, dup)
	}
	c, err := s.contestants.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c.Votes != 1 {
		t.Errorf("expected counter 1, got %d", c.Votes)
	}
}

func TestHandleCastVote_Validation(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "Sarah")

	tests := []struct {
		name   string
		body   []byte
		status int
		code   string
	}{
		{"missing email", voteBody(t, id, ""), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"missing contestant", voteBody(t, 0, "x@example.com"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"bad email", voteBody(t, id, "not-an-email"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"unknown contestant", voteBody(t, 999, "x@example.com"), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"invalid json", []byte("nope"), http.StatusBadRequest, handlers.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/votes", tt.body)
			expectError(t, rec, tt.status, tt.code)
		})
	}
}

func TestHandleCastVote_StoreError(t *testing.T) {
	s := newTestSetup(t)
	id := testutil.CreateContestant(t, s.repo, "Sarah")
	s.repo.CastVoteError = errors.New("locked")

	rec := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "x@example.com"))
	expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeInternalServer)
}

func TestHandleGetResults(t *testing.T) {
	s := newTestSetup(t)
	a := testutil.CreateContestant(t, s.repo, "Amanda")
	b := testutil.CreateContestant(t, s.repo, "Sarah")
	testutil.CastVotes(t, s.repo, a, 3)
	testutil.CastVotes(t, s.repo, b, 1)

	rec := s.do(http.MethodGet, "/api/votes/results", nil)
	expectStatus(t, rec, http.StatusOK)

	var results []models.ContestantResult
	decodeBody(t, rec, &results)
	if len(results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(results))
	}
	if results[0].ContestantID != a || results[0].Percentage != 75 || results[1].Percentage != 25 {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestHandleGetResults_StoreError(t *testing.T) {
	s := newTestSetup(t)
	s.repo.ListTalliesError = errors.New("boom")

	rec := s.do(http.MethodGet, "/api/votes/results", nil)
	expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeInternalServer)
}

// Tickets

func ticketBody(t *testing.T) []byte {
	return mustJSON(t, map[string]interface{}{
		"buyerName":  "Chipo Dube",
		"buyerEmail": "chipo@example.com",
		"phone":      "0772000111",
		"ticketType": "VIP",
		"price":      25,
	})
}

func initiate(t *testing.T, s *testSetup) services.PurchaseResult {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/tickets/pesepay", ticketBody(t))
	expectStatus(t, rec, http.StatusOK)
	var res services.PurchaseResult
	decodeBody(t, rec, &res)
	return res
}

func TestHandleInitiatePurchase_Success(t *testing.T) {
	s := newTestSetup(t)

	res := initiate(t, s)
	if !res.Success || res.Reference == "" || res.RedirectURL == "" || res.PollURL == "" {
		t.Errorf("unexpected result %+v", res)
	}

	ticket, err := s.repo.GetTicketByReference(context.Background(), res.Reference)
	if err != nil {
		t.Fatalf("ticket not stored: %v", err)
	}
	if ticket.PaymentStatus != models.PaymentPending || ticket.PaymentMethod != "pesepay" {
		t.Errorf("unexpected ticket %+v", ticket)
	}
}

func TestHandleInitiatePurchase_MissingFields(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(http.MethodPost, "/api/tickets/pesepay", mustJSON(t, map[string]interface{}{"buyerName": "X"}))
	body := expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeValidation)
	if body.Error != "All fields are required" {
		t.Errorf("unexpected message %q", body.Error)
	}
	if s.gateway.InitiateCalls() != 0 {
		t.Errorf("expected no gateway calls, got %d", s.gateway.InitiateCalls())
	}
}

func TestHandleInitiatePurchase_GatewayRejects(t *testing.T) {
	s := newTestSetup(t, pesepay.WithInitiateFailure("Invalid currency"))

	rec := s.do(http.MethodPost, "/api/tickets/pesepay", ticketBody(t))
	body := expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeGateway)
	if body.Error != "Failed to initiate payment: Invalid currency" {
		t.Errorf("unexpected message %q", body.Error)
	}

	stats, _ := s.repo.TicketStats(context.Background())
	if len(stats) != 0 {
		t.Errorf("expected no ticket rows, got %+v", stats)
	}
}

func TestHandleInitiatePurchase_GatewayUnreachable(t *testing.T) {
	s := newTestSetup(t, pesepay.WithInitiateError(errors.New("connection refused")))

	rec := s.do(http.MethodPost, "/api/tickets/pesepay", ticketBody(t))
	body := expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeGateway)
	if !strings.HasPrefix(body.Error, "PesePay error") || !strings.Contains(body.Error, "connection refused") {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHandleTicketStatus_Lifecycle(t *testing.T) {
	s := newTestSetup(t)
	res := initiate(t, s)

	rec := s.do(http.MethodGet, "/api/tickets/status/"+res.Reference, nil)
	expectStatus(t, rec, http.StatusOK)
	var status services.PaymentStatusResult
	decodeBody(t, rec, &status)
	if status.Paid || status.Status != models.PaymentPending {
		t.Errorf("expected pending, got %+v", status)
	}

	s.gateway.SetStatus(res.Reference, pesepay.StatusSuccess)
	for i := 0; i < 2; i++ {
		rec = s.do(http.MethodGet, "/api/tickets/status/"+res.Reference, nil)
		expectStatus(t, rec, http.StatusOK)
		decodeBody(t, rec, &status)
		if !status.Paid || status.Status != models.PaymentPaid {
			t.Errorf("poll %d: expected paid, got %+v", i, status)
		}
	}
}

func TestHandleTicketStatus_Unknown(t *testing.T) {
	s := newTestSetup(t)

	rec := s.do(http.MethodGet, "/api/tickets/status/PSP-nope", nil)
	body := expectError(t, rec, http.StatusNotFound, handlers.ErrCodeNotFound)
	if body.Error != "Transaction not found" {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHandleTicketStatus_GatewayError(t *testing.T) {
	s := newTestSetup(t, pesepay.WithPollError(errors.New("timeout")))
	res := initiate(t, s)

	rec := s.do(http.MethodGet, "/api/tickets/status/"+res.Reference, nil)
	expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeGateway)
}

func TestHandleTicketStats(t *testing.T) {
	s := newTestSetup(t)
	res := initiate(t, s)
	initiate(t, s)
	s.gateway.SetStatus(res.Reference, pesepay.StatusSuccess)
	s.do(http.MethodGet, "/api/tickets/status/"+res.Reference, nil)

	rec := s.do(http.MethodGet, "/api/tickets/stats", nil)
	expectStatus(t, rec, http.StatusOK)

	var stats []models.TicketStats
	decodeBody(t, rec, &stats)
	if len(stats) != 1 || stats[0].Count != 2 || stats[0].PaidCount != 1 || stats[0].PaidRevenue != 25 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHandleTicketStats_StoreError(t *testing.T) {
	s := newTestSetup(t)
	s.repo.TicketStatsError = errors.New("boom")

	rec := s.do(http.MethodGet, "/api/tickets/stats", nil)
	expectError(t, rec, http.StatusInternalServerError, handlers.ErrCodeInternalServer)
}

func TestHandleTicketQR(t *testing.T) {
	s := newTestSetup(t)
	res := initiate(t, s)

	// Unpaid tickets get no admission code
	rec := s.do(http.MethodGet, "/api/tickets/"+res.Reference+"/qr", nil)
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeValidation)

	s.gateway.SetStatus(res.Reference, pesepay.StatusSuccess)
	s.do(http.MethodGet, "/api/tickets/status/"+res.Reference, nil)

	rec = s.do(http.MethodGet, "/api/tickets/"+res.Reference+"/qr", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("expected image/png, got %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), pngHeader[:8]) {
		t.Error("expected a PNG body")
	}

	rec = s.do(http.MethodGet, "/api/tickets/PSP-unknown/qr", nil)
	expectError(t, rec, http.StatusNotFound, handlers.ErrCodeNotFound)
}

// Gateway callbacks

func TestHandlePaymentResult_MarksPaid(t *testing.T) {
	s := newTestSetup(t)
	res := initiate(t, s)
	s.gateway.SetStatus(res.Reference, pesepay.StatusSuccess)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := s.do(method, "/api/payment/result?reference="+url.QueryEscape(res.Reference), nil)
		expectStatus(t, rec, http.StatusOK)
		if rec.Body.String() != "OK" {
			t.Errorf("expected OK body, got %q", rec.Body.String())
		}
	}

	ticket, _ := s.repo.GetTicketByReference(context.Background(), res.Reference)
	if ticket.PaymentStatus != models.PaymentPaid {
		t.Errorf("expected paid, got %s", ticket.PaymentStatus)
	}
	// The second callback found a terminal ticket and skipped the gateway
	if s.gateway.CheckCalls() != 1 {
		t.Errorf("expected 1 gateway check, got %d", s.gateway.CheckCalls())
	}
}

func TestHandlePaymentResult_AlwaysOK(t *testing.T) {
	s := newTestSetup(t, pesepay.WithCheckError(errors.New("down")))
	res := initiate(t, s)

	for _, path := range []string{
		"/api/payment/result",
		"/api/payment/result?reference=",
		"/api/payment/result?reference=PSP-unknown",
		"/api/payment/result?reference=" + url.QueryEscape(res.Reference),
		"/api/payment/result?referenceNumber=" + url.QueryEscape(res.Reference),
	} {
		rec := s.do(http.MethodGet, path, nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Errorf("%s: expected 200 OK, got %d %q", path, rec.Code, rec.Body.String())
		}
	}

	ticket, _ := s.repo.GetTicketByReference(context.Background(), res.Reference)
	if ticket.PaymentStatus != models.PaymentPending {
		t.Errorf("expected pending after failed checks, got %s", ticket.PaymentStatus)
	}
}

func TestHandlePaymentReturn(t *testing.T) {
	s := newTestSetupWithOptions(t, handlers.Options{SuccessPage: "/thanks.html"})

	rec := s.do(http.MethodGet, "/api/payment/return", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/thanks.html" {
		t.Errorf("expected redirect to /thanks.html, got %q", loc)
	}
}

func TestHandlePaymentResult_ReferenceInBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        func(ref string) string
	}{
		{"form reference", "application/x-www-form-urlencoded", func(ref string) string { return "reference=" + url.QueryEscape(ref) }},
		{"form referenceNumber", "application/x-www-form-urlencoded", func(ref string) string { return "referenceNumber=" + url.QueryEscape(ref) }},
		{"json referenceNumber", "application/json", func(ref string) string { return `{"referenceNumber":"` + ref + `"}` }},
		{"json reference", "application/json; charset=utf-8", func(ref string) string { return `{"reference":"` + ref + `"}` }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSetup(t)
			res := initiate(t, s)
			s.gateway.SetStatus(res.Reference, pesepay.StatusSuccess)

			req := httptest.NewRequest(http.MethodPost, "/api/payment/result", strings.NewReader(tt.body(res.Reference)))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
				t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
			}
			ticket, _ := s.repo.GetTicketByReference(context.Background(), res.Reference)
			if ticket.PaymentStatus != models.PaymentPaid {
				t.Errorf("expected paid, got %s", ticket.PaymentStatus)
			}
		})
	}
}

func TestHandlePaymentResult_MalformedJSONStillOK(t *testing.T) {
	s := newTestSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payment/result", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
	if s.gateway.CheckCalls() != 0 {
		t.Errorf("expected no gateway check, got %d", s.gateway.CheckCalls())
	}
}

// Client address

func TestHandleCastVote_ProxyHeadersIgnoredByDefault(t *testing.T) {
	s := newTestSetupWithOptions(t, handlers.Options{})
	id := testutil.CreateContestant(t, s.repo, "Sarah")

	first := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "a@example.com"), "X-Forwarded-For", "10.9.0.1")
	expectStatus(t, first, http.StatusOK)

	// A forged header does not make the same client look new
	rec := s.do(http.MethodPost, "/api/votes", voteBody(t, id, "b@example.com"), "X-Forwarded-For", "10.9.0.2")
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeAlreadyVoted)
}

// Mock checkout

func newCheckoutSetup(t *testing.T) *testSetup {
	t.Helper()
	s := newTestSetup(t, pesepay.WithCallbackURLs("http://pageant.test/api/payment/result", "http://pageant.test/api/payment/return"))
	h := handlers.New(s.contestants, s.voting, s.payments, logger.Nop(), handlers.Options{Checkout: s.gateway})
	s.router = h.Router()
	return s
}

func TestHandleMockCheckout_Pay(t *testing.T) {
	s := newCheckoutSetup(t)
	res := initiate(t, s)

	page := s.do(http.MethodGet, "/mockpay/pay/"+res.Reference, nil)
	expectStatus(t, page, http.StatusOK)
	if !strings.Contains(page.Body.String(), "outcome=success") {
		t.Errorf("expected outcome links, got %q", page.Body.String())
	}

	rec := s.do(http.MethodGet, "/mockpay/pay/"+res.Reference+"?outcome=success", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "http://pageant.test/api/payment/return" {
		t.Errorf("unexpected redirect %q", loc)
	}

	// The result notification already reconciled the ticket
	ticket, _ := s.repo.GetTicketByReference(context.Background(), res.Reference)
	if ticket.PaymentStatus != models.PaymentPaid {
		t.Errorf("expected paid, got %s", ticket.PaymentStatus)
	}
	status := s.do(http.MethodGet, "/api/tickets/status/"+res.Reference, nil)
	expectStatus(t, status, http.StatusOK)
	var body services.PaymentStatusResult
	decodeBody(t, status, &body)
	if !body.Paid {
		t.Errorf("expected paid status, got %+v", body)
	}
}

func TestHandleMockCheckout_Cancel(t *testing.T) {
	s := newCheckoutSetup(t)
	res := initiate(t, s)

	s.do(http.MethodGet, "/mockpay/pay/"+res.Reference+"?outcome=cancelled", nil)

	ticket, _ := s.repo.GetTicketByReference(context.Background(), res.Reference)
	if ticket.PaymentStatus != models.PaymentCancelled {
		t.Errorf("expected cancelled, got %s", ticket.PaymentStatus)
	}
}

func TestHandleMockCheckout_Errors(t *testing.T) {
	s := newCheckoutSetup(t)
	res := initiate(t, s)

	rec := s.do(http.MethodGet, "/mockpay/pay/PSP-unknown?outcome=success", nil)
	expectError(t, rec, http.StatusNotFound, handlers.ErrCodeNotFound)

	rec = s.do(http.MethodGet, "/mockpay/pay/"+res.Reference+"?outcome=maybe", nil)
	expectError(t, rec, http.StatusBadRequest, handlers.ErrCodeBadRequest)
}

func TestHandleMockCheckout_NotMountedWithoutMock(t *testing.T) {
	s := newTestSetup(t)
	res := initiate(t, s)

	rec := s.do(http.MethodGet, "/mockpay/pay/"+res.Reference+"?outcome=success", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a mock checkout, got %d", rec.Code)
	}
}
