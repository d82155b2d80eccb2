package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/service"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
	"github.com/uh2c-dev/memoire-api/pkg/response"
)

// SettingsHandler exposes workflow tuning knobs.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// GetPlagiarismThreshold godoc
// @Summary Current similarity threshold
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/plagiarism-threshold [get]
func (h *SettingsHandler) GetPlagiarismThreshold(c *gin.Context) {
	threshold, err := h.service.PlagiarismThreshold(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"threshold": threshold}, nil)
}

// UpdatePlagiarismThreshold godoc
// @Summary Update similarity threshold
// @Description Applies to future checks only; open checks keep their frozen value
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body object true "Threshold payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /settings/plagiarism-threshold [put]
func (h *SettingsHandler) UpdatePlagiarismThreshold(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Threshold float64 `json:"threshold" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid threshold payload"))
		return
	}

	if err := h.service.UpdatePlagiarismThreshold(c.Request.Context(), payload.Threshold, actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
