package services

import "github.com/abrezinsky/pageantvote/internal/errors"

// Service errors
var (
	ErrDuplicateVote      = errors.Duplicate("You have already voted. One vote per email address or IP.")
	ErrEmailRegistered    = errors.Duplicate("Email already registered")
	ErrContestantNotFound = errors.NotFound("Contestant not found")
	ErrPhotoNotFound      = errors.NotFound("Image not found")
	ErrTicketNotFound     = errors.NotFound("Transaction not found")
	ErrTicketNotPaid      = errors.Validation("Ticket has not been paid")
	ErrVoteFieldsRequired = errors.Validation("Contestant ID and voter email are required")
	ErrFieldsRequired     = errors.Validation("All fields are required")
)
