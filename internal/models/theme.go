package models

import "time"

// ThemeStatus captures the lifecycle of a thesis topic.
type ThemeStatus string

const (
	ThemeStatusPending           ThemeStatus = "PENDING"
	ThemeStatusApproved          ThemeStatus = "APPROVED"
	ThemeStatusRejected          ThemeStatus = "REJECTED"
	ThemeStatusRevisionRequested ThemeStatus = "REVISION_REQUESTED"
	ThemeStatusLocked            ThemeStatus = "LOCKED"
)

// Valid reports whether the status is a known one.
func (s ThemeStatus) Valid() bool {
	switch s {
	case ThemeStatusPending, ThemeStatusApproved, ThemeStatusRejected, ThemeStatusRevisionRequested, ThemeStatusLocked:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves this status.
func (s ThemeStatus) Terminal() bool {
	return s == ThemeStatusRejected || s == ThemeStatusLocked
}

// themeGraph is the transition graph enforced by the workflow engine.
var themeGraph = map[ThemeStatus][]ThemeStatus{
	ThemeStatusPending:           {ThemeStatusApproved, ThemeStatusRejected, ThemeStatusRevisionRequested},
	ThemeStatusRevisionRequested: {ThemeStatusPending},
	ThemeStatusApproved:          {ThemeStatusLocked},
}

// CanTransition reports whether to is reachable from s in one step.
func (s ThemeStatus) CanTransition(to ThemeStatus) bool {
	for _, next := range themeGraph[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Theme is the thesis topic a student proposes and a supervisor reviews.
// A theme is never hard-deleted: it is superseded by a newer one or locked
// by the jury decision.
type Theme struct {
	ID              string      `db:"id" json:"id"`
	StudentID       string      `db:"student_id" json:"student_id"`
	SupervisorID    *string     `db:"supervisor_id" json:"supervisor_id,omitempty"`
	Title           string      `db:"title" json:"title"`
	Description     string      `db:"description" json:"description"`
	Status          ThemeStatus `db:"status" json:"status"`
	RejectionReason *string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RevisionNotes   *string     `db:"revision_notes" json:"revision_notes,omitempty"`
	ReviewedAt      *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy      *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// ThemeFilter constrains listing queries.
type ThemeFilter struct {
	StudentID    string
	SupervisorID string
	Status       []ThemeStatus
	Limit        int
	Offset       int
}

// ThemeDecision enumerates the supervisor review outcomes.
type ThemeDecision string

const (
	ThemeDecisionApprove         ThemeDecision = "APPROVED"
	ThemeDecisionReject          ThemeDecision = "REJECTED"
	ThemeDecisionRequestRevision ThemeDecision = "REVISION_REQUESTED"
)
