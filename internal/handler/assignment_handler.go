package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/service"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
	"github.com/uh2c-dev/memoire-api/pkg/response"
)

// AssignmentHandler handles supervisor assignment endpoints.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Assign godoc
// @Summary Assign a supervisor
// @Description Supersedes any currently active binding for the student
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignSupervisorRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AssignSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Assign(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Unassign godoc
// @Summary End a student's active supervision
// @Description Deactivates the current binding; a no-op when none is active
// @Tags Assignments
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/assignment [delete]
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Unassign(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Active godoc
// @Summary Active assignment for a student
// @Tags Assignments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/assignment [get]
func (h *AssignmentHandler) Active(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	assignment, err := h.service.Active(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// History godoc
// @Summary Assignment history for a student
// @Tags Assignments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/assignments [get]
func (h *AssignmentHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	history, err := h.service.History(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
