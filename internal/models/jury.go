package models

import "time"

// JuryVerdict enumerates the final evaluation outcomes.
type JuryVerdict string

const (
	JuryVerdictAccepted                JuryVerdict = "ACCEPTED"
	JuryVerdictAcceptedWithCorrections JuryVerdict = "ACCEPTED_WITH_CORRECTIONS"
	JuryVerdictRejected                JuryVerdict = "REJECTED"
)

// Valid reports whether the verdict is a known one.
func (v JuryVerdict) Valid() bool {
	switch v {
	case JuryVerdictAccepted, JuryVerdictAcceptedWithCorrections, JuryVerdictRejected:
		return true
	default:
		return false
	}
}

// JuryDecision is the single final decision for a theme. Recording it locks
// the theme. corrections_validated_at is set only once corrections_completed
// is true.
type JuryDecision struct {
	ID                      string      `db:"id" json:"id"`
	ThemeID                 string      `db:"theme_id" json:"theme_id"`
	StudentID               string      `db:"student_id" json:"student_id"`
	Verdict                 JuryVerdict `db:"verdict" json:"verdict"`
	Grade                   *float64    `db:"grade" json:"grade,omitempty"`
	Remarks                 *string     `db:"remarks" json:"remarks,omitempty"`
	RequiredCorrections     *string     `db:"required_corrections" json:"required_corrections,omitempty"`
	CorrectionsDeadline     *time.Time  `db:"corrections_deadline" json:"corrections_deadline,omitempty"`
	CorrectionsCompleted    bool        `db:"corrections_completed" json:"corrections_completed"`
	CorrectionsValidatedAt  *time.Time  `db:"corrections_validated_at" json:"corrections_validated_at,omitempty"`
	CorrectionsValidatedBy  *string     `db:"corrections_validated_by" json:"corrections_validated_by,omitempty"`
	MinutesFile             *string     `db:"minutes_file" json:"minutes_file,omitempty"`
	DecidedBy               string      `db:"decided_by" json:"decided_by"`
	DecidedAt               time.Time   `db:"decided_at" json:"decided_at"`
	CreatedAt               time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at" json:"updated_at"`
}
