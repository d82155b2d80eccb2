package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/service"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
	"github.com/uh2c-dev/memoire-api/pkg/response"
	"github.com/uh2c-dev/memoire-api/pkg/storage"
)

// JuryHandler handles defense decision endpoints.
type JuryHandler struct {
	service *service.JuryService
	signer  *storage.SignedURLSigner
	files   *storage.LocalStorage
}

// NewJuryHandler constructs a jury handler. The signer and file store serve
// the signed minutes download endpoint.
func NewJuryHandler(svc *service.JuryService, signer *storage.SignedURLSigner, files *storage.LocalStorage) *JuryHandler {
	return &JuryHandler{service: svc, signer: signer, files: files}
}

// RecordDecision godoc
// @Summary Record the jury verdict
// @Description Locks the theme and generates the defense minutes
// @Tags Jury
// @Accept json
// @Produce json
// @Param payload body dto.RecordJuryDecisionRequest true "Decision payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /jury-decisions [post]
func (h *JuryHandler) RecordDecision(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RecordJuryDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	decision, err := h.service.RecordDecision(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, decision)
}

// MarkCorrectionsCompleted godoc
// @Summary Flag corrections as done
// @Tags Jury
// @Produce json
// @Param id path string true "Decision ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /jury-decisions/{id}/corrections-completed [post]
func (h *JuryHandler) MarkCorrectionsCompleted(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	decision, err := h.service.MarkCorrectionsCompleted(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// ValidateCorrections godoc
// @Summary Validate completed corrections
// @Tags Jury
// @Produce json
// @Param id path string true "Decision ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /jury-decisions/{id}/validate-corrections [post]
func (h *JuryHandler) ValidateCorrections(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	decision, err := h.service.ValidateCorrections(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// GetByTheme godoc
// @Summary Get decision for a theme
// @Tags Jury
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} response.Envelope
// @Router /themes/{id}/decision [get]
func (h *JuryHandler) GetByTheme(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	decision, err := h.service.GetByTheme(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// MinutesURL godoc
// @Summary Signed minutes link
// @Description Returns a short-lived token for downloading the defense minutes
// @Tags Jury
// @Produce json
// @Param id path string true "Decision ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jury-decisions/{id}/minutes-url [get]
func (h *JuryHandler) MinutesURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.service.MinutesDownloadURL(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"download_url": "/minutes/download?token=" + token,
		"expires_at":   expiresAt,
	}, nil)
}

// DownloadMinutes godoc
// @Summary Download defense minutes
// @Description Serves the PDF referenced by a valid signed token
// @Tags Jury
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /minutes/download [get]
func (h *JuryHandler) DownloadMinutes(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(h.files.Path(relPath), filepath.Base(relPath))
}
