package domain

import (
	"time"

	"github.com/google/uuid"
)

// Report is a user-submitted abuse or bug report. Reports are append-only;
// triage happens outside this backend.
type Report struct {
	ID       uuid.UUID `json:"id"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Date     time.Time `json:"date"`
}
