package services

import (
	"context"

	"github.com/abrezinsky/pageantvote/internal/models"
)

// Broadcaster defines the interface for pushing live updates to clients
type Broadcaster interface {
	BroadcastResults(results []models.ContestantResult)
	BroadcastTicketStatus(reference string, status models.PaymentStatus)
}

// ContestantServicer defines the interface for contestant operations
type ContestantServicer interface {
	Register(ctx context.Context, input ContestantInput) (*models.Contestant, error)
	List(ctx context.Context) ([]models.Contestant, error)
	Get(ctx context.Context, id int64) (*models.Contestant, error)
	Photo(ctx context.Context, id int64) (*PhotoData, error)
	SeedSamples(ctx context.Context) (int, error)
}

// VotingServicer defines the interface for voting operations
type VotingServicer interface {
	CastVote(ctx context.Context, contestantID int64, voterEmail, voterIP string) (*VoteReceipt, error)
	ComputeResults(ctx context.Context) ([]models.ContestantResult, error)
	AuditTallies(ctx context.Context) ([]models.TallyMismatch, error)
	SetBroadcaster(b Broadcaster)
}

// PaymentServicer defines the interface for ticket payment operations
type PaymentServicer interface {
	InitiatePurchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	HandleCallback(ctx context.Context, reference string)
	PollStatus(ctx context.Context, reference string) (*PaymentStatusResult, error)
	TicketStats(ctx context.Context) ([]models.TicketStats, error)
	TicketQR(ctx context.Context, reference string) ([]byte, error)
	SetBroadcaster(b Broadcaster)
}

// Ensure concrete types implement interfaces
var (
	_ ContestantServicer = (*ContestantService)(nil)
	_ VotingServicer     = (*VotingService)(nil)
	_ PaymentServicer    = (*PaymentService)(nil)
)
