package models

import "time"

// MeetingReportStatus captures the two-stage validation chain of a fiche de suivi.
type MeetingReportStatus string

const (
	MeetingReportStatusDraft     MeetingReportStatus = "DRAFT"
	MeetingReportStatusSubmitted MeetingReportStatus = "SUBMITTED"
	MeetingReportStatusValidated MeetingReportStatus = "VALIDATED"
	MeetingReportStatusRejected  MeetingReportStatus = "REJECTED"
)

// Valid reports whether the status is a known one.
func (s MeetingReportStatus) Valid() bool {
	switch s {
	case MeetingReportStatusDraft, MeetingReportStatusSubmitted, MeetingReportStatusValidated, MeetingReportStatusRejected:
		return true
	default:
		return false
	}
}

// MeetingReport records a student/supervisor meeting requiring supervisor
// sign-off followed by department head sign-off. The head flag is only ever
// set while the supervisor flag is already true; once VALIDATED the record
// is immutable except for appended notes.
type MeetingReport struct {
	ID                       string              `db:"id" json:"id"`
	ThemeID                  string              `db:"theme_id" json:"theme_id"`
	StudentID                string              `db:"student_id" json:"student_id"`
	SupervisorID             string              `db:"supervisor_id" json:"supervisor_id"`
	MeetingDate              time.Time           `db:"meeting_date" json:"meeting_date"`
	Summary                  string              `db:"summary" json:"summary"`
	Status                   MeetingReportStatus `db:"status" json:"status"`
	SupervisorValidated      bool                `db:"supervisor_validated" json:"supervisor_validated"`
	DepartmentHeadValidated  bool                `db:"department_head_validated" json:"department_head_validated"`
	SubmittedAt              *time.Time          `db:"submitted_at" json:"submitted_at,omitempty"`
	ValidatedAt              *time.Time          `db:"validated_at" json:"validated_at,omitempty"`
	ValidatedBy              *string             `db:"validated_by" json:"validated_by,omitempty"`
	RejectionReason          *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AppendedNotes            *string             `db:"appended_notes" json:"appended_notes,omitempty"`
	CreatedAt                time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time           `db:"updated_at" json:"updated_at"`
}

// MeetingReportFilter constrains listing queries.
type MeetingReportFilter struct {
	ThemeID      string
	StudentID    string
	SupervisorID string
	Status       []MeetingReportStatus
	Limit        int
	Offset       int
}

// HeadDecision enumerates the department head outcomes on a meeting report.
type HeadDecision string

const (
	HeadDecisionValidate HeadDecision = "VALIDATED"
	HeadDecisionReject   HeadDecision = "REJECTED"
)
