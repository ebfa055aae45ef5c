package handlers

import "github.com/abrezinsky/pageantvote/internal/models"

// ContestantRegisteredResponse is the response for a successful registration
type ContestantRegisteredResponse struct {
	ID         int64              `json:"id"`
	Message    string             `json:"message"`
	Contestant *models.Contestant `json:"contestant"`
}
