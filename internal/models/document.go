package models

import "time"

// DocumentType distinguishes the deliverables attached to a theme.
type DocumentType string

const (
	DocumentTypePlan    DocumentType = "PLAN"
	DocumentTypeChapter DocumentType = "CHAPTER"
	DocumentTypeFinal   DocumentType = "FINAL"
)

// Valid reports whether the document type is a known one.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypePlan, DocumentTypeChapter, DocumentTypeFinal:
		return true
	default:
		return false
	}
}

// DocumentStatus captures the review lifecycle of one document version.
type DocumentStatus string

const (
	DocumentStatusSubmitted         DocumentStatus = "SUBMITTED"
	DocumentStatusUnderReview       DocumentStatus = "UNDER_REVIEW"
	DocumentStatusApproved          DocumentStatus = "APPROVED"
	DocumentStatusRejected          DocumentStatus = "REJECTED"
	DocumentStatusRevisionRequested DocumentStatus = "REVISION_REQUESTED"
)

// Valid reports whether the status is a known one.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusSubmitted, DocumentStatusUnderReview, DocumentStatusApproved, DocumentStatusRejected, DocumentStatusRevisionRequested:
		return true
	default:
		return false
	}
}

var documentGraph = map[DocumentStatus][]DocumentStatus{
	DocumentStatusSubmitted: {
		DocumentStatusUnderReview,
		DocumentStatusApproved,
		DocumentStatusRejected,
		DocumentStatusRevisionRequested,
	},
	DocumentStatusUnderReview: {
		DocumentStatusApproved,
		DocumentStatusRejected,
		DocumentStatusRevisionRequested,
	},
}

// CanTransition reports whether to is reachable from s in one step.
// Leaving REVISION_REQUESTED happens only by submitting a new version,
// never by mutating this row.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	for _, next := range documentGraph[s] {
		if next == to {
			return true
		}
	}
	return false
}

// PlagiarismEligible reports whether a document in this status may be
// submitted for an originality check.
func (s DocumentStatus) PlagiarismEligible() bool {
	return s == DocumentStatusApproved || s == DocumentStatusUnderReview
}

// Document is one immutable version of a deliverable. Versions are strictly
// increasing per (theme_id, document_type) and never reused.
type Document struct {
	ID            string         `db:"id" json:"id"`
	ThemeID       string         `db:"theme_id" json:"theme_id"`
	StudentID     string         `db:"student_id" json:"student_id"`
	DocumentType  DocumentType   `db:"document_type" json:"document_type"`
	ChapterNumber *int           `db:"chapter_number" json:"chapter_number,omitempty"`
	Version       int            `db:"version" json:"version"`
	FileReference string         `db:"file_reference" json:"file_reference"`
	SizeBytes     int64          `db:"size_bytes" json:"size_bytes"`
	Status        DocumentStatus `db:"status" json:"status"`
	Feedback      *string        `db:"feedback" json:"feedback,omitempty"`
	ReviewedAt    *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy    *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentFilter constrains listing queries.
type DocumentFilter struct {
	ThemeID      string
	StudentID    string
	DocumentType DocumentType
	Status       []DocumentStatus
	Limit        int
	Offset       int
}

// DocumentDecision enumerates the supervisor review outcomes.
type DocumentDecision string

const (
	DocumentDecisionStartReview     DocumentDecision = "UNDER_REVIEW"
	DocumentDecisionApprove         DocumentDecision = "APPROVED"
	DocumentDecisionReject          DocumentDecision = "REJECTED"
	DocumentDecisionRequestRevision DocumentDecision = "REVISION_REQUESTED"
)
