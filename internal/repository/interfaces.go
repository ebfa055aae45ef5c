package repository

import (
	"context"

	"github.com/abrezinsky/pageantvote/internal/models"
)

// ContestantRepository defines contestant data operations
type ContestantRepository interface {
	CreateContestant(ctx context.Context, c models.Contestant, photo *models.ContestantPhoto) (int64, error)
	GetContestant(ctx context.Context, id int64) (*models.Contestant, error)
	ListContestants(ctx context.Context) ([]models.Contestant, error)
	GetContestantPhoto(ctx context.Context, id int64) (*models.ContestantPhoto, error)
	CountContestants(ctx context.Context) (int, error)
}

// VoteRepository defines vote data operations
type VoteRepository interface {
	CastVote(ctx context.Context, contestantID int64, voterEmail, ipAddress string) (int64, error)
	ListTallies(ctx context.Context) ([]models.ContestantResult, error)
	RecountVotes(ctx context.Context) ([]models.TallyMismatch, error)
	CountVotes(ctx context.Context) (int, error)
}

// TicketRepository defines ticket data operations
type TicketRepository interface {
	CreateTicket(ctx context.Context, t models.Ticket) (int64, error)
	GetTicketByReference(ctx context.Context, reference string) (*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, reference string, status models.PaymentStatus) (bool, error)
	TicketStats(ctx context.Context) ([]models.TicketStats, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	ContestantRepository
	VoteRepository
	TicketRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
