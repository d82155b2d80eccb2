package dto

// RequestPlagiarismCheckRequest opens a new originality check for a document.
type RequestPlagiarismCheckRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

// RecordPlagiarismResultRequest delivers the oracle score for a check.
// The scoring itself happens in an external service.
type RecordPlagiarismResultRequest struct {
	Score        float64 `json:"score" validate:"min=0,max=100"`
	SourcesFound int     `json:"sources_found" validate:"min=0"`
	Details      string  `json:"details"`
}
