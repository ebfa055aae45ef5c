package mock

import (
	"context"

	"github.com/abrezinsky/pageantvote/internal/models"
	"github.com/abrezinsky/pageantvote/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.CreateTicketError = errors.New("database error")
//	svc := services.NewPaymentService(log, mockRepo, gateway, cfg)
//	_, err := svc.InitiatePurchase(ctx, req)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Contestant Errors =====
	CreateContestantError   error
	GetContestantError      error
	ListContestantsError    error
	GetContestantPhotoError error
	CountContestantsError   error

	// ===== Vote Errors =====
	CastVoteError     error
	ListTalliesError  error
	RecountVotesError error
	CountVotesError   error

	// ===== Ticket Errors =====
	CreateTicketError         error
	GetTicketByReferenceError error
	UpdateTicketStatusError   error
	TicketStatsError          error

	// UpdateTicketStatusCalls counts status writes, including injected failures
	UpdateTicketStatusCalls int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Contestant Methods =====

func (m *Repository) CreateContestant(ctx context.Context, c models.Contestant, photo *models.ContestantPhoto) (int64, error) {
	if m.CreateContestantError != nil {
		return 0, m.CreateContestantError
	}
	return m.FullRepository.CreateContestant(ctx, c, photo)
}

func (m *Repository) GetContestant(ctx context.Context, id int64) (*models.Contestant, error) {
	if m.GetContestantError != nil {
		return nil, m.GetContestantError
	}
	return m.FullRepository.GetContestant(ctx, id)
}

func (m *Repository) ListContestants(ctx context.Context) ([]models.Contestant, error) {
	if m.ListContestantsError != nil {
		return nil, m.ListContestantsError
	}
	return m.FullRepository.ListContestants(ctx)
}

func (m *Repository) GetContestantPhoto(ctx context.Context, id int64) (*models.ContestantPhoto, error) {
	if m.GetContestantPhotoError != nil {
		return nil, m.GetContestantPhotoError
	}
	return m.FullRepository.GetContestantPhoto(ctx, id)
}

func (m *Repository) CountContestants(ctx context.Context) (int, error) {
	if m.CountContestantsError != nil {
		return 0, m.CountContestantsError
	}
	return m.FullRepository.CountContestants(ctx)
}

// ===== Vote Methods =====

func (m *Repository) CastVote(ctx context.Context, contestantID int64, voterEmail, ipAddress string) (int64, error) {
	if m.CastVoteError != nil {
		return 0, m.CastVoteError
	}
	return m.FullRepository.CastVote(ctx, contestantID, voterEmail, ipAddress)
}

func (m *Repository) ListTallies(ctx context.Context) ([]models.ContestantResult, error) {
	if m.ListTalliesError != nil {
		return nil, m.ListTalliesError
	}
	return m.FullRepository.ListTallies(ctx)
}

func (m *Repository) RecountVotes(ctx context.Context) ([]models.TallyMismatch, error) {
	if m.RecountVotesError != nil {
		return nil, m.RecountVotesError
	}
	return m.FullRepository.RecountVotes(ctx)
}

func (m *Repository) CountVotes(ctx context.Context) (int, error) {
	if m.CountVotesError != nil {
		return 0, m.CountVotesError
	}
	return m.FullRepository.CountVotes(ctx)
}

// ===== Ticket Methods =====

func (m *Repository) CreateTicket(ctx context.Context, t models.Ticket) (int64, error) {
	if m.CreateTicketError != nil {
		return 0, m.CreateTicketError
	}
	return m.FullRepository.CreateTicket(ctx, t)
}

func (m *Repository) GetTicketByReference(ctx context.Context, reference string) (*models.Ticket, error) {
	if m.GetTicketByReferenceError != nil {
		return nil, m.GetTicketByReferenceError
	}
	return m.FullRepository.GetTicketByReference(ctx, reference)
}

func (m *Repository) UpdateTicketStatus(ctx context.Context, reference string, status models.PaymentStatus) (bool, error) {
	m.UpdateTicketStatusCalls++
	if m.UpdateTicketStatusError != nil {
		return false, m.UpdateTicketStatusError
	}
	return m.FullRepository.UpdateTicketStatus(ctx, reference, status)
}

func (m *Repository) TicketStats(ctx context.Context) ([]models.TicketStats, error) {
	if m.TicketStatsError != nil {
		return nil, m.TicketStatsError
	}
	return m.FullRepository.TicketStats(ctx)
}
