package dto

import (
	"time"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

// RecordJuryDecisionRequest files the final evaluation for a theme.
type RecordJuryDecisionRequest struct {
	ThemeID             string             `json:"theme_id" validate:"required"`
	Verdict             models.JuryVerdict `json:"verdict" validate:"required,jury_verdict"`
	Grade               *float64           `json:"grade" validate:"omitempty,min=0,max=20"`
	Remarks             string             `json:"remarks"`
	RequiredCorrections string             `json:"required_corrections"`
	CorrectionsDeadline *time.Time         `json:"corrections_deadline"`
}

// MarkCorrectionsCompletedRequest flags the student corrections as done.
type MarkCorrectionsCompletedRequest struct {
	Note string `json:"note"`
}
