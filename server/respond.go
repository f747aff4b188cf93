package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	apperrors "trenchsocial/errors"
)

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("Response encoding failed", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Message: message})
}

// decodeAndValidate parses the request body into target and runs the struct
// validation tags. On failure it has already written the 400 response.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			s.sendError(w, http.StatusBadRequest, "Invalid field: "+invalid[0].Field())
			return false
		}
		s.sendError(w, http.StatusBadRequest, "All fields are required.")
		return false
	}
	return true
}

// fail maps domain errors onto HTTP statuses. Unrecognized errors are logged
// and reported as a bare 500 so store internals never leak to clients.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrReceiverNotFound):
		s.sendError(w, http.StatusBadRequest, "Receiver not found.")
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.sendError(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, apperrors.ErrPostNotFound):
		s.sendError(w, http.StatusNotFound, "Post not found.")
	case errors.Is(err, apperrors.ErrCommentNotFound):
		s.sendError(w, http.StatusNotFound, "Comment not found.")
	case errors.Is(err, apperrors.ErrConflict):
		s.sendError(w, http.StatusConflict, "Username already taken.")
	default:
		s.log.Error("Request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Something went wrong.")
	}
}
