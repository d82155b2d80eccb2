package models

import "time"

// PlagiarismStatus captures the lifecycle of one originality check.
type PlagiarismStatus string

const (
	PlagiarismStatusPending    PlagiarismStatus = "PENDING"
	PlagiarismStatusInProgress PlagiarismStatus = "IN_PROGRESS"
	PlagiarismStatusPassed     PlagiarismStatus = "PASSED"
	PlagiarismStatusFailed     PlagiarismStatus = "FAILED"
)

// Valid reports whether the status is a known one.
func (s PlagiarismStatus) Valid() bool {
	switch s {
	case PlagiarismStatusPending, PlagiarismStatusInProgress, PlagiarismStatusPassed, PlagiarismStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the check reached its frozen outcome.
func (s PlagiarismStatus) Terminal() bool {
	return s == PlagiarismStatusPassed || s == PlagiarismStatusFailed
}

// PlagiarismCheck records one scoring request against an external oracle.
// ThresholdUsed is frozen at creation; a re-score is always a brand-new row.
type PlagiarismCheck struct {
	ID            string           `db:"id" json:"id"`
	DocumentID    string           `db:"document_id" json:"document_id"`
	ThemeID       string           `db:"theme_id" json:"theme_id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	Status        PlagiarismStatus `db:"status" json:"status"`
	ThresholdUsed float64          `db:"threshold_used" json:"threshold_used"`
	Score         *float64         `db:"score" json:"score,omitempty"`
	SourcesFound  *int             `db:"sources_found" json:"sources_found,omitempty"`
	Details       *string          `db:"details" json:"details,omitempty"`
	RequestedBy   string           `db:"requested_by" json:"requested_by"`
	ScoredAt      *time.Time       `db:"scored_at" json:"scored_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// Passed reports the frozen outcome: score strictly below the threshold.
// A score at or above the threshold fails the check.
func (p *PlagiarismCheck) Passed() bool {
	return p.Score != nil && *p.Score < p.ThresholdUsed
}

// PlagiarismFilter constrains listing queries.
type PlagiarismFilter struct {
	DocumentID string
	ThemeID    string
	StudentID  string
	Status     []PlagiarismStatus
	Limit      int
	Offset     int
}
