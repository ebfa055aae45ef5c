package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/abrezinsky/pageantvote/internal/models"
	"github.com/abrezinsky/pageantvote/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// CreateContestant inserts a contestant with placeholder details and returns its ID
func CreateContestant(t *testing.T, repo repository.ContestantRepository, name string) int64 {
	t.Helper()

	id, err := repo.CreateContestant(context.Background(), models.Contestant{
		FullName: name,
		Email:    fmt.Sprintf("%s@contestants.test", slug(name)),
		Phone:    "+263770000000",
		Age:      21,
		Bio:      name + " bio",
	}, nil)
	if err != nil {
		t.Fatalf("failed to create contestant %q: %v", name, err)
	}
	return id
}

// CastVotes records n votes for a contestant using unique synthetic voters
func CastVotes(t *testing.T, repo repository.VoteRepository, contestantID int64, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		email := fmt.Sprintf("c%d-v%d@voters.test", contestantID, i)
		if _, err := repo.CastVote(context.Background(), contestantID, email, ""); err != nil {
			t.Fatalf("failed to cast vote %d for contestant %d: %v", i, contestantID, err)
		}
	}
}

func slug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '.')
		}
	}
	return string(out)
}
