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

// MeetingReportHandler handles fiche de suivi endpoints.
type MeetingReportHandler struct {
	service *service.ReportService
}

// NewMeetingReportHandler constructs a meeting report handler.
func NewMeetingReportHandler(svc *service.ReportService) *MeetingReportHandler {
	return &MeetingReportHandler{service: svc}
}

// Submit godoc
// @Summary File a meeting report
// @Tags MeetingReports
// @Accept json
// @Produce json
// @Param payload body dto.SubmitMeetingReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /meeting-reports [post]
func (h *MeetingReportHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitMeetingReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	report, err := h.service.Submit(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Resubmit godoc
// @Summary Resubmit a rejected report
// @Tags MeetingReports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meeting-reports/{id}/resubmit [post]
func (h *MeetingReportHandler) Resubmit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ValidateBySupervisor godoc
// @Summary Supervisor validation
// @Description First of the two validations a report needs
// @Tags MeetingReports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /meeting-reports/{id}/validate-supervisor [post]
func (h *MeetingReportHandler) ValidateBySupervisor(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, err := h.service.ValidateBySupervisor(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ValidateByHead godoc
// @Summary Department head decision
// @Description Validate or reject a supervisor-validated report
// @Tags MeetingReports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.HeadValidationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /meeting-reports/{id}/validate-head [post]
func (h *MeetingReportHandler) ValidateByHead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.HeadValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	report, err := h.service.ValidateByHead(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// AppendNote godoc
// @Summary Append a follow-up note
// @Description Notes can only be attached once the report is fully validated
// @Tags MeetingReports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.AppendReportNoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meeting-reports/{id}/notes [post]
func (h *MeetingReportHandler) AppendNote(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AppendReportNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}

	report, err := h.service.AppendNote(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get godoc
// @Summary Get report by id
// @Tags MeetingReports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /meeting-reports/{id} [get]
func (h *MeetingReportHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// List godoc
// @Summary List meeting reports
// @Tags MeetingReports
// @Produce json
// @Param theme_id query string false "Filter by theme"
// @Param student_id query string false "Filter by student"
// @Param supervisor_id query string false "Filter by supervisor"
// @Param status query string false "Comma-separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /meeting-reports [get]
func (h *MeetingReportHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.MeetingReportFilter{
		ThemeID:      c.Query("theme_id"),
		StudentID:    c.Query("student_id"),
		SupervisorID: c.Query("supervisor_id"),
		Limit:        queryInt(c, "limit", 20),
		Offset:       queryInt(c, "offset", 0),
	}
	for _, s := range splitQuery(c.Query("status")) {
		filter.Status = append(filter.Status, models.MeetingReportStatus(s))
	}

	reports, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}
