package server

import (
	"net/http"

	"trenchsocial/domain"
)

type submitReportRequest struct {
	Type     string `json:"type" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var request submitReportRequest
	if !s.decodeAndValidate(w, r, &request) {
		return
	}
	id, err := s.reports.Submit(domain.Report{
		Type:     request.Type,
		Message:  request.Message,
		Name:     request.Name,
		Username: request.Username,
		Email:    request.Email,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	reports, err := s.reports.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reports)
}
