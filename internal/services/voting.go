package services

import (
	"context"
	"math"
	"net/mail"
	"strings"

	"github.com/abrezinsky/pageantvote/internal/errors"
	"github.com/abrezinsky/pageantvote/internal/logger"
	"github.com/abrezinsky/pageantvote/internal/models"
	"github.com/abrezinsky/pageantvote/internal/repository"
)

// VotingService is the vote ledger: it records ballots and derives the live tally
type VotingService struct {
	log         logger.Logger
	repo        repository.VoteRepository
	broadcaster Broadcaster
}

// NewVotingService creates a new VotingService
func NewVotingService(log logger.Logger, repo repository.VoteRepository) *VotingService {
	return &VotingService{log: log, repo: repo}
}

// SetBroadcaster sets the broadcaster for sending result updates to clients
func (s *VotingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// VoteReceipt is returned for an accepted vote
type VoteReceipt struct {
	VoteID       int64  `json:"voteId"`
	ContestantID int64  `json:"contestantId"`
	Message      string `json:"message"`
}

// CastVote records one vote for a contestant. Each voter email and each
// client IP may vote once; the store's unique constraints decide races.
func (s *VotingService) CastVote(ctx context.Context, contestantID int64, voterEmail, voterIP string) (*VoteReceipt, error) {
	email := normalizeEmail(voterEmail)
	if contestantID <= 0 || email == "" {
		return nil, ErrVoteFieldsRequired
	}
	if !validEmail(email) {
		return nil, errors.Validation("Voter email is not a valid address")
	}
	ip := strings.TrimSpace(voterIP)

	voteID, err := s.repo.CastVote(ctx, contestantID, email, ip)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrContestantNotFound
		}
		if dup, ok := repository.IsDuplicate(err); ok {
			s.log.Info("Duplicate vote rejected", "contestant_id", contestantID, "key", dup.Key)
			return nil, ErrDuplicateVote
		}
		s.log.Error("Failed to record vote", "contestant_id", contestantID, "error", err)
		return nil, errors.Internal(err)
	}

	s.log.Info("Vote recorded", "vote_id", voteID, "contestant_id", contestantID)
	s.broadcastResults(ctx)

	return &VoteReceipt{
		VoteID:       voteID,
		ContestantID: contestantID,
		Message:      "Vote submitted successfully",
	}, nil
}

// ComputeResults returns every contestant with its vote share, highest first.
// Shares are rounded to whole percent and are all zero before the first vote.
func (s *VotingService) ComputeResults(ctx context.Context) ([]models.ContestantResult, error) {
	results, err := s.repo.ListTallies(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}

	total := 0
	for _, r := range results {
		total += r.Votes
	}
	for i := range results {
		results[i].Percentage = percentage(results[i].Votes, total)
	}
	return results, nil
}

// AuditTallies reports contestants whose vote counter drifted from their vote rows
func (s *VotingService) AuditTallies(ctx context.Context) ([]models.TallyMismatch, error) {
	mismatches, err := s.repo.RecountVotes(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	for _, m := range mismatches {
		s.log.Warn("Vote counter out of sync", "contestant_id", m.ContestantID, "counter", m.Counter, "actual", m.Actual)
	}
	return mismatches, nil
}

func (s *VotingService) broadcastResults(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	results, err := s.ComputeResults(ctx)
	if err != nil {
		s.log.Warn("Failed to compute results for broadcast", "error", err)
		return
	}
	s.broadcaster.BroadcastResults(results)
}

func percentage(votes, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(votes) / float64(total) * 100))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts bare addresses only, not "Name <addr>" forms
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
