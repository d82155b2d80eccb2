package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/models"
	"github.com/uh2c-dev/memoire-api/internal/service"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
	"github.com/uh2c-dev/memoire-api/pkg/response"
)

// PlagiarismHandler handles originality check endpoints.
type PlagiarismHandler struct {
	service *service.PlagiarismService
}

// NewPlagiarismHandler constructs a plagiarism handler.
func NewPlagiarismHandler(svc *service.PlagiarismService) *PlagiarismHandler {
	return &PlagiarismHandler{service: svc}
}

// Request godoc
// @Summary Open an originality check
// @Description Freezes the similarity threshold in force at request time
// @Tags Plagiarism
// @Accept json
// @Produce json
// @Param payload body dto.RequestPlagiarismCheckRequest true "Check payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /plagiarism-checks [post]
func (h *PlagiarismHandler) Request(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RequestPlagiarismCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check payload"))
		return
	}

	check, err := h.service.Request(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, check)
}

// RecordResult godoc
// @Summary Record the oracle score
// @Tags Plagiarism
// @Accept json
// @Produce json
// @Param id path string true "Check ID"
// @Param payload body dto.RecordPlagiarismResultRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plagiarism-checks/{id}/result [post]
func (h *PlagiarismHandler) RecordResult(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RecordPlagiarismResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid result payload"))
		return
	}

	check, err := h.service.RecordResult(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}

// Finalize godoc
// @Summary Finalize a check
// @Description Compares the recorded score against the frozen threshold
// @Tags Plagiarism
// @Produce json
// @Param id path string true "Check ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /plagiarism-checks/{id}/finalize [post]
func (h *PlagiarismHandler) Finalize(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	check, err := h.service.Finalize(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}

// Get godoc
// @Summary Get check by id
// @Tags Plagiarism
// @Produce json
// @Param id path string true "Check ID"
// @Success 200 {object} response.Envelope
// @Router /plagiarism-checks/{id} [get]
func (h *PlagiarismHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	check, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}

// List godoc
// @Summary List checks
// @Tags Plagiarism
// @Produce json
// @Param document_id query string false "Filter by document"
// @Param theme_id query string false "Filter by theme"
// @Param student_id query string false "Filter by student"
// @Param status query string false "Comma-separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /plagiarism-checks [get]
func (h *PlagiarismHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PlagiarismFilter{
		DocumentID: c.Query("document_id"),
		ThemeID:    c.Query("theme_id"),
		StudentID:  c.Query("student_id"),
		Limit:      queryInt(c, "limit", 20),
		Offset:     queryInt(c, "offset", 0),
	}
	for _, s := range splitQuery(c.Query("status")) {
		filter.Status = append(filter.Status, models.PlagiarismStatus(s))
	}

	checks, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, checks, nil)
}
