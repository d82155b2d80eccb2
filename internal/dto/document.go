package dto

import "github.com/uh2c-dev/memoire-api/internal/models"

// SubmitDocumentRequest registers a new document version. The file itself
// lives in an external blob store; only its reference and size arrive here.
type SubmitDocumentRequest struct {
	ThemeID       string              `json:"theme_id" validate:"required"`
	DocumentType  models.DocumentType `json:"document_type" validate:"required,document_type"`
	ChapterNumber *int                `json:"chapter_number" validate:"omitempty,min=1,max=20"`
	FileReference string              `json:"file_reference" validate:"required"`
	SizeBytes     int64               `json:"size_bytes" validate:"required,min=1"`
}

// ReviewDocumentRequest carries the supervisor decision on a version.
type ReviewDocumentRequest struct {
	Decision models.DocumentDecision `json:"decision" validate:"required,document_decision"`
	Feedback string                  `json:"feedback"`
}

// DocumentQuery filters document listings.
type DocumentQuery struct {
	ThemeID      string
	StudentID    string
	DocumentType models.DocumentType
	Status       []models.DocumentStatus
	Limit        int
	Offset       int
}
