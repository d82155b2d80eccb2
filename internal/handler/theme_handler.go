package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/models"
	"github.com/uh2c-dev/memoire-api/internal/service"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
	"github.com/uh2c-dev/memoire-api/pkg/response"
)

// ThemeHandler handles thesis topic endpoints.
type ThemeHandler struct {
	service *service.ThemeService
}

// NewThemeHandler constructs a theme handler.
func NewThemeHandler(svc *service.ThemeService) *ThemeHandler {
	return &ThemeHandler{service: svc}
}

// Submit godoc
// @Summary Propose a thesis topic
// @Tags Themes
// @Accept json
// @Produce json
// @Param payload body dto.SubmitThemeRequest true "Theme payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /themes [post]
func (h *ThemeHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid theme payload"))
		return
	}

	theme, err := h.service.Submit(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, theme)
}

// Review godoc
// @Summary Review a pending topic
// @Description Approve, reject, or request a revision as the active supervisor
// @Tags Themes
// @Accept json
// @Produce json
// @Param id path string true "Theme ID"
// @Param payload body dto.ReviewThemeRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /themes/{id}/review [post]
func (h *ThemeHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReviewThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	theme, err := h.service.Review(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, theme, nil)
}

// Resubmit godoc
// @Summary Resubmit a revised topic
// @Tags Themes
// @Accept json
// @Produce json
// @Param id path string true "Theme ID"
// @Param payload body dto.ResubmitThemeRequest true "Revised payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /themes/{id}/resubmit [post]
func (h *ThemeHandler) Resubmit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ResubmitThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resubmission payload"))
		return
	}

	theme, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, theme, nil)
}

// Get godoc
// @Summary Get theme by id
// @Tags Themes
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} response.Envelope
// @Router /themes/{id} [get]
func (h *ThemeHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	theme, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, theme, nil)
}

// List godoc
// @Summary List themes
// @Tags Themes
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param supervisor_id query string false "Filter by supervisor"
// @Param status query string false "Comma-separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /themes [get]
func (h *ThemeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.ThemeQuery{
		StudentID:    c.Query("student_id"),
		SupervisorID: c.Query("supervisor_id"),
		Limit:        queryInt(c, "limit", 20),
		Offset:       queryInt(c, "offset", 0),
	}
	for _, s := range splitQuery(c.Query("status")) {
		query.Status = append(query.Status, models.ThemeStatus(s))
	}

	themes, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, themes, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}
