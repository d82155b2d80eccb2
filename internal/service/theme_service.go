package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/gate"
	"github.com/uh2c-dev/memoire-api/internal/models"
	"github.com/uh2c-dev/memoire-api/internal/repository"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type themeStore interface {
	Create(ctx context.Context, theme *models.Theme) error
	GetByID(ctx context.Context, id string) (*models.Theme, error)
	List(ctx context.Context, filter models.ThemeFilter) ([]models.Theme, error)
	CountOpenByStudent(ctx context.Context, studentID string) (int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateThemeStatusParams) error
	SetSupervisor(ctx context.Context, themeID, supervisorID string) error
}

type supervisorResolver interface {
	ActiveSupervisorOf(ctx context.Context, studentID string) (string, error)
}

// ThemeService runs the theme proposal and review workflow.
type ThemeService struct {
	repo      themeStore
	resolver  supervisorResolver
	notifier  Notifier
	audit     auditStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewThemeService constructs the theme service.
func NewThemeService(repo themeStore, resolver supervisorResolver, notifier Notifier, audit auditStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ThemeService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThemeService{
		repo:      repo,
		resolver:  resolver,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit proposes a new theme for the acting student. A student may hold at
// most one non-terminal theme at a time.
func (s *ThemeService) Submit(ctx context.Context, req dto.SubmitThemeRequest, actor gate.Actor) (*models.Theme, error) {
	if err := gate.Authorize(actor, gate.Request{
		Entity:     gate.EntityTheme,
		Transition: gate.TransitionSubmit,
		OwnerID:    actor.ID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid theme payload")
	}

	open, err := s.repo.CountOpenByStudent(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open themes")
	}
	if open > 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "an open theme already exists for this student")
	}

	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	theme := &models.Theme{
		ID:          uuid.NewString(),
		StudentID:   actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ThemeStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if supervisorID != "" {
		theme.SupervisorID = &supervisorID
	}
	if err := s.repo.Create(ctx, theme); err != nil {
		s.metrics.RecordTransition("theme", "submit", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create theme")
	}

	s.metrics.RecordTransition("theme", "submit", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionThemeSubmit, "theme", theme.ID)
	if s.notifier != nil && supervisorID != "" {
		s.notifier.Notify(models.Notification{
			RecipientID:   supervisorID,
			Title:         "Nouveau thème proposé",
			Message:       fmt.Sprintf("A theme awaits your review: %s", theme.Title),
			Severity:      models.NotificationSeverityInfo,
			RelatedEntity: "theme",
			RelatedID:     theme.ID,
		})
	}
	return theme, nil
}

// Review applies the supervisor decision to a pending theme. A lost race
// against a concurrent reviewer surfaces as a conflicting update, never as
// a silent double-apply.
func (s *ThemeService) Review(ctx context.Context, themeID string, req dto.ReviewThemeRequest, actor gate.Actor) (*models.Theme, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	theme, err := s.getTheme(ctx, themeID)
	if err != nil {
		return nil, err
	}

	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, theme.StudentID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityTheme,
		Transition:         gate.TransitionReview,
		OwnerID:            theme.StudentID,
		ActiveSupervisorID: supervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}

	target := models.ThemeStatus(req.Decision)
	if !theme.Status.CanTransition(target) {
		s.metrics.RecordTransition("theme", "review", "rejected")
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("theme is %s, cannot move to %s", theme.Status, target))
	}
	if req.Notes == "" && (req.Decision == models.ThemeDecisionReject || req.Decision == models.ThemeDecisionRequestRevision) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "notes are required when rejecting or requesting revision")
	}

	now := time.Now().UTC()
	params := repository.UpdateThemeStatusParams{
		ID:         theme.ID,
		FromStatus: theme.Status,
		ToStatus:   target,
		ReviewedBy: &actor.ID,
		ReviewedAt: &now,
	}
	switch req.Decision {
	case models.ThemeDecisionReject:
		params.RejectionReason = &req.Notes
	case models.ThemeDecisionRequestRevision:
		params.RevisionNotes = &req.Notes
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition("theme", "review", "conflict")
			return nil, appErrors.ErrConflictingUpdate
		}
		s.metrics.RecordTransition("theme", "review", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply theme decision")
	}

	s.metrics.RecordTransition("theme", "review", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionThemeReview, "theme", theme.ID)
	s.notifyStudentOfReview(theme, req)
	return s.getTheme(ctx, themeID)
}

// Resubmit reworks a theme after a revision request, returning it to the
// review queue. Title and description may change; history stays intact.
func (s *ThemeService) Resubmit(ctx context.Context, themeID string, req dto.ResubmitThemeRequest, actor gate.Actor) (*models.Theme, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid theme payload")
	}
	theme, err := s.getTheme(ctx, themeID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:     gate.EntityTheme,
		Transition: gate.TransitionResubmit,
		OwnerID:    theme.StudentID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if theme.Status != models.ThemeStatusRevisionRequested {
		s.metrics.RecordTransition("theme", "resubmit", "rejected")
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("theme is %s, only revision-requested themes can be resubmitted", theme.Status))
	}

	params := repository.UpdateThemeStatusParams{
		ID:          theme.ID,
		FromStatus:  models.ThemeStatusRevisionRequested,
		ToStatus:    models.ThemeStatusPending,
		Title:       &req.Title,
		Description: &req.Description,
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition("theme", "resubmit", "conflict")
			return nil, appErrors.ErrConflictingUpdate
		}
		s.metrics.RecordTransition("theme", "resubmit", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resubmit theme")
	}

	s.metrics.RecordTransition("theme", "resubmit", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionThemeSubmit, "theme", theme.ID)

	// The supervisor may have been reassigned while the revision was pending;
	// refresh the snapshot so the review lands with the current one.
	if supervisorID, rerr := s.resolver.ActiveSupervisorOf(ctx, theme.StudentID); rerr == nil && supervisorID != "" {
		if theme.SupervisorID == nil || *theme.SupervisorID != supervisorID {
			if serr := s.repo.SetSupervisor(ctx, theme.ID, supervisorID); serr != nil {
				s.logger.Warn("failed to refresh theme supervisor",
					zap.String("theme_id", theme.ID), zap.Error(serr))
			} else {
				theme.SupervisorID = &supervisorID
			}
		}
	}

	if s.notifier != nil && theme.SupervisorID != nil {
		s.notifier.Notify(models.Notification{
			RecipientID:   *theme.SupervisorID,
			Title:         "Thème resoumis",
			Message:       fmt.Sprintf("A revised theme awaits your review: %s", req.Title),
			Severity:      models.NotificationSeverityInfo,
			RelatedEntity: "theme",
			RelatedID:     theme.ID,
		})
	}
	return s.getTheme(ctx, themeID)
}

// Get returns one theme, visible to its student, its supervisor and admins.
func (s *ThemeService) Get(ctx context.Context, themeID string, actor gate.Actor) (*models.Theme, error) {
	theme, err := s.getTheme(ctx, themeID)
	if err != nil {
		return nil, err
	}
	if s.canSee(ctx, theme, actor) {
		return theme, nil
	}
	return nil, appErrors.ErrForbidden
}

// List returns themes scoped to what the actor may see.
func (s *ThemeService) List(ctx context.Context, query dto.ThemeQuery, actor gate.Actor) ([]models.Theme, error) {
	filter := models.ThemeFilter{
		StudentID:    query.StudentID,
		SupervisorID: query.SupervisorID,
		Status:       query.Status,
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleSupervisor:
		filter.SupervisorID = actor.ID
	}
	themes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list themes")
	}
	return themes, nil
}

func (s *ThemeService) getTheme(ctx context.Context, id string) (*models.Theme, error) {
	theme, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}
	return theme, nil
}

func (s *ThemeService) canSee(ctx context.Context, theme *models.Theme, actor gate.Actor) bool {
	if actor.Role.IsAdmin() || actor.Role == models.RoleDepartmentHead || actor.Role == models.RoleJury {
		return true
	}
	if actor.ID == theme.StudentID {
		return true
	}
	if theme.SupervisorID != nil && actor.ID == *theme.SupervisorID {
		return true
	}
	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, theme.StudentID)
	return err == nil && supervisorID != "" && supervisorID == actor.ID
}

func (s *ThemeService) notifyStudentOfReview(theme *models.Theme, req dto.ReviewThemeRequest) {
	if s.notifier == nil {
		return
	}
	n := models.Notification{
		RecipientID:   theme.StudentID,
		RelatedEntity: "theme",
		RelatedID:     theme.ID,
	}
	switch req.Decision {
	case models.ThemeDecisionApprove:
		n.Title = "Thème approuvé"
		n.Message = fmt.Sprintf("Your theme %q was approved", theme.Title)
		n.Severity = models.NotificationSeveritySuccess
	case models.ThemeDecisionReject:
		n.Title = "Thème rejeté"
		n.Message = fmt.Sprintf("Your theme %q was rejected: %s", theme.Title, req.Notes)
		n.Severity = models.NotificationSeverityError
	case models.ThemeDecisionRequestRevision:
		n.Title = "Révision demandée"
		n.Message = fmt.Sprintf("Your theme %q needs revision: %s", theme.Title, req.Notes)
		n.Severity = models.NotificationSeverityWarning
	}
	s.notifier.Notify(n)
}
