package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

// NewValidator returns a validator with the workflow enum tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("theme_decision", func(fl validator.FieldLevel) bool {
		switch models.ThemeDecision(fl.Field().String()) {
		case models.ThemeDecisionApprove, models.ThemeDecisionReject, models.ThemeDecisionRequestRevision:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("document_type", func(fl validator.FieldLevel) bool {
		return models.DocumentType(fl.Field().String()).Valid()
	})

	_ = v.RegisterValidation("document_decision", func(fl validator.FieldLevel) bool {
		switch models.DocumentDecision(fl.Field().String()) {
		case models.DocumentDecisionStartReview, models.DocumentDecisionApprove, models.DocumentDecisionReject, models.DocumentDecisionRequestRevision:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("head_decision", func(fl validator.FieldLevel) bool {
		switch models.HeadDecision(fl.Field().String()) {
		case models.HeadDecisionValidate, models.HeadDecisionReject:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("jury_verdict", func(fl validator.FieldLevel) bool {
		return models.JuryVerdict(fl.Field().String()).Valid()
	})

	return v
}
