package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/abrezinsky/pageantvote/internal/services"
)

// maxPhotoBytes bounds a multipart registration, photo included
const maxPhotoBytes = 5 << 20

// handleListContestants returns all contestants, most voted first
func (h *Handlers) handleListContestants(w http.ResponseWriter, r *http.Request) {
	contestants, err := h.Contestants.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, contestants)
}

// handleRegisterContestant accepts a multipart form with an optional photo, or JSON
func (h *Handlers) handleRegisterContestant(w http.ResponseWriter, r *http.Request) {
	var (
		input services.ContestantInput
		err   error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		input, err = parseContestantForm(w, r)
	default:
		var req ContestantRegisterRequest
		err = decodeJSON(r, &req)
		input = services.ContestantInput{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Age:      req.Age,
			Bio:      req.Bio,
		}
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	contestant, err := h.Contestants.Register(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondOK(w, ContestantRegisteredResponse{
		ID:         contestant.ID,
		Message:    "Contestant registered successfully",
		Contestant: contestant,
	})
}

func parseContestantForm(w http.ResponseWriter, r *http.Request) (services.ContestantInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			return services.ContestantInput{}, BadRequest("Invalid form: " + err.Error())
		}
	} else if err := r.ParseForm(); err != nil {
		return services.ContestantInput{}, BadRequest("Invalid form: " + err.Error())
	}

	input := services.ContestantInput{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Phone:    r.FormValue("phone"),
		Bio:      r.FormValue("bio"),
	}
	if age := strings.TrimSpace(r.FormValue("age")); age != "" {
		n, err := strconv.Atoi(age)
		if err != nil {
			return services.ContestantInput{}, BadRequest("Age must be a number")
		}
		input.Age = n
	}

	file, _, err := r.FormFile("photo")
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return input, nil
	}
	if err != nil {
		return services.ContestantInput{}, BadRequest("Invalid photo upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return services.ContestantInput{}, BadRequest("Invalid photo upload")
	}
	if len(data) > 0 {
		input.Photo = data
	}
	return input, nil
}

// handleContestantPhoto serves a contestant's photo
func (h *Handlers) handleContestantPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	photo, err := h.Contestants.Photo(r.Context(), id)
	if err != nil {
		// The front-end falls back to a placeholder on any miss
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(photo.Data)
}
