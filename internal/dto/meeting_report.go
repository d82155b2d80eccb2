package dto

import (
	"time"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

// SubmitMeetingReportRequest files a fiche de suivi for validation.
type SubmitMeetingReportRequest struct {
	ThemeID     string    `json:"theme_id" validate:"required"`
	MeetingDate time.Time `json:"meeting_date" validate:"required"`
	Summary     string    `json:"summary" validate:"required,min=10"`
}

// HeadValidationRequest carries the department head decision.
type HeadValidationRequest struct {
	Decision models.HeadDecision `json:"decision" validate:"required,head_decision"`
	Comments string              `json:"comments"`
}

// AppendReportNoteRequest adds a note to an already validated report.
type AppendReportNoteRequest struct {
	Note string `json:"note" validate:"required,min=1"`
}

// MeetingReportQuery filters report listings.
type MeetingReportQuery struct {
	ThemeID      string
	StudentID    string
	SupervisorID string
	Status       []models.MeetingReportStatus
	Limit        int
	Offset       int
}
