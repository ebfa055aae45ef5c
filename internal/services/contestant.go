package services

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/abrezinsky/pageantvote/internal/errors"
	"github.com/abrezinsky/pageantvote/internal/logger"
	"github.com/abrezinsky/pageantvote/internal/models"
	"github.com/abrezinsky/pageantvote/internal/repository"
)

// ContestantService handles contestant registration and lookup
type ContestantService struct {
	log        logger.Logger
	repo       repository.ContestantRepository
	uploadsDir string
}

// NewContestantService creates a new ContestantService.
// Photos stored by filename are resolved against uploadsDir.
func NewContestantService(log logger.Logger, repo repository.ContestantRepository, uploadsDir string) *ContestantService {
	return &ContestantService{log: log, repo: repo, uploadsDir: uploadsDir}
}

// ContestantInput is a registration request
type ContestantInput struct {
	FullName      string
	Email         string
	Phone         string
	Age           int
	Bio           string
	Photo         []byte
}

// PhotoData contains photo bytes and content type
type PhotoData struct {
	Data        []byte
	ContentType string
}

// Register validates and stores a new contestant
func (s *ContestantService) Register(ctx context.Context, input ContestantInput) (*models.Contestant, error) {
	c := models.Contestant{
		FullName: strings.TrimSpace(input.FullName),
		Email:    normalizeEmail(input.Email),
		Phone:    strings.TrimSpace(input.Phone),
		Age:      input.Age,
		Bio:      strings.TrimSpace(input.Bio),
	}
	if c.FullName == "" || c.Email == "" || c.Phone == "" || c.Bio == "" || input.Age == 0 {
		return nil, ErrFieldsRequired
	}
	if c.Age < 0 {
		return nil, errors.Validation("Age must be a positive number")
	}
	if !validEmail(c.Email) {
		return nil, errors.Validation("Email is not a valid address")
	}

	var photo *models.ContestantPhoto
	if len(input.Photo) > 0 {
		contentType := http.DetectContentType(input.Photo)
		if !strings.HasPrefix(contentType, "image/") {
			return nil, errors.Validationf("Photo must be an image, got %s", contentType)
		}
		photo = &models.ContestantPhoto{Blob: input.Photo, ContentType: contentType}
	}

	id, err := s.repo.CreateContestant(ctx, c, photo)
	if err != nil {
		if _, ok := repository.IsDuplicate(err); ok {
			return nil, ErrEmailRegistered
		}
		return nil, errors.Internal(err)
	}

	s.log.Info("Contestant registered", "contestant_id", id, "has_photo", photo != nil)

	created, err := s.repo.GetContestant(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return created, nil
}

// List returns all contestants ordered by votes
func (s *ContestantService) List(ctx context.Context) ([]models.Contestant, error) {
	contestants, err := s.repo.ListContestants(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return contestants, nil
}

// Get returns a single contestant
func (s *ContestantService) Get(ctx context.Context, id int64) (*models.Contestant, error) {
	c, err := s.repo.GetContestant(ctx, id)
	if err == repository.ErrNotFound {
		return nil, ErrContestantNotFound
	}
	if err != nil {
		return nil, errors.Internal(err)
	}
	return c, nil
}

// Photo returns the contestant photo, either the stored blob or a file from the uploads directory
func (s *ContestantService) Photo(ctx context.Context, id int64) (*PhotoData, error) {
	photo, err := s.repo.GetContestantPhoto(ctx, id)
	if err == repository.ErrNotFound {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, errors.Internal(err)
	}

	if len(photo.Blob) > 0 {
		contentType := photo.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(photo.Blob)
		}
		return &PhotoData{Data: photo.Blob, ContentType: contentType}, nil
	}

	// Base() keeps stored names from escaping the uploads directory
	path := filepath.Join(s.uploadsDir, filepath.Base(photo.Filename))
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug("Photo file unavailable", "contestant_id", id, "path", path, "error", err)
		return nil, ErrPhotoNotFound
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &PhotoData{Data: data, ContentType: contentType}, nil
}

// sampleContestants are inserted into an empty database when seeding is enabled
var sampleContestants = []models.Contestant{
	{
		FullName: "Sarah Johnson",
		Email:    "sarah@example.com",
		Phone:    "+1-555-0101",
		Age:      22,
		Bio:      "A passionate advocate for women's education and empowerment. Studying International Relations at University of Zimbabwe.",
		Photo:    "1753794724933-services4.jpg",
	},
	{
		FullName: "Grace Moyo",
		Email:    "grace@example.com",
		Phone:    "+1-555-0102",
		Age:      24,
		Bio:      "Dedicated to environmental conservation and sustainable development. Holds a degree in Environmental Science.",
		Photo:    "1753792836812-IMG-20250715-WA0009.jpg",
	},
	{
		FullName: "Amanda Chitepo",
		Email:    "amanda@example.com",
		Phone:    "+1-555-0103",
		Age:      21,
		Bio:      "Aspiring medical professional with a heart for community health. Currently studying Medicine at UZ.",
		Photo:    "1753785954565-me2.jpg",
	},
}

// SeedSamples inserts the sample contestants into an empty table and returns
// how many were added. Samples start at zero votes.
func (s *ContestantService) SeedSamples(ctx context.Context) (int, error) {
	count, err := s.repo.CountContestants(ctx)
	if err != nil {
		return 0, errors.Internal(err)
	}
	if count > 0 {
		return 0, nil
	}

	added := 0
	for _, c := range sampleContestants {
		photo := &models.ContestantPhoto{Filename: c.Photo}
		if _, err := s.repo.CreateContestant(ctx, c, photo); err != nil {
			return added, errors.Internal(err)
		}
		added++
	}

	s.log.Info("Seeded sample contestants", "count", added)
	return added, nil
}
