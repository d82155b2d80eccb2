package dto

import "github.com/uh2c-dev/memoire-api/internal/models"

// SubmitThemeRequest proposes a new thesis topic.
type SubmitThemeRequest struct {
	Title       string `json:"title" validate:"required,min=5,max=255"`
	Description string `json:"description" validate:"required,min=20"`
}

// ResubmitThemeRequest updates a theme after a revision request.
type ResubmitThemeRequest struct {
	Title       string `json:"title" validate:"required,min=5,max=255"`
	Description string `json:"description" validate:"required,min=20"`
}

// ReviewThemeRequest carries the supervisor decision.
type ReviewThemeRequest struct {
	Decision models.ThemeDecision `json:"decision" validate:"required,theme_decision"`
	Notes    string               `json:"notes"`
}

// ThemeQuery filters theme listings.
type ThemeQuery struct {
	StudentID    string
	SupervisorID string
	Status       []models.ThemeStatus
	Limit        int
	Offset       int
}
