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
	"github.com/uh2c-dev/memoire-api/pkg/export"
)

type juryStore interface {
	Create(ctx context.Context, decision *models.JuryDecision) error
	GetByID(ctx context.Context, id string) (*models.JuryDecision, error)
	GetByTheme(ctx context.Context, themeID string) (*models.JuryDecision, error)
	MarkCorrectionsCompleted(ctx context.Context, id string) error
	ValidateCorrections(ctx context.Context, id, validatorID string, validatedAt time.Time) error
	SetMinutesFile(ctx context.Context, id, filename string) error
}

type juryThemeStore interface {
	GetByID(ctx context.Context, id string) (*models.Theme, error)
	UpdateStatus(ctx context.Context, params repository.UpdateThemeStatusParams) error
}

type juryDocumentStore interface {
	LatestVersion(ctx context.Context, themeID string, docType models.DocumentType, chapter *int) (*models.Document, error)
}

type juryPlagiarismStore interface {
	List(ctx context.Context, filter models.PlagiarismFilter) ([]models.PlagiarismCheck, error)
}

type minutesRenderer interface {
	Render(m export.DefenseMinutes) ([]byte, error)
}

type minutesStorage interface {
	Save(filename string, data []byte) (string, error)
}

type minutesSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
}

// JuryService records the final defense verdict, locks the theme and runs
// the corrections follow-up. Recording the decision also produces the
// procès-verbal de soutenance as a PDF artifact.
type JuryService struct {
	repo       juryStore
	themes     juryThemeStore
	documents  juryDocumentStore
	plagiarism juryPlagiarismStore
	users      userDirectory
	renderer   minutesRenderer
	storage    minutesStorage
	signer     minutesSigner
	notifier   Notifier
	audit      auditStore
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewJuryService constructs the jury service. renderer, storage and signer
// may be nil; minutes generation is then skipped.
func NewJuryService(repo juryStore, themes juryThemeStore, documents juryDocumentStore, plagiarism juryPlagiarismStore, users userDirectory, renderer minutesRenderer, storage minutesStorage, signer minutesSigner, notifier Notifier, audit auditStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *JuryService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JuryService{
		repo:       repo,
		themes:     themes,
		documents:  documents,
		plagiarism: plagiarism,
		users:      users,
		renderer:   renderer,
		storage:    storage,
		signer:     signer,
		notifier:   notifier,
		audit:      audit,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
	}
}

// RecordDecision files the single final verdict for a theme and locks it.
// The theme must be in its final stage: approved, with an approved FINAL
// document that passed the originality check.
func (s *JuryService) RecordDecision(ctx context.Context, req dto.RecordJuryDecisionRequest, actor gate.Actor) (*models.JuryDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if req.Verdict == models.JuryVerdictAcceptedWithCorrections && req.RequiredCorrections == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "required corrections must be spelled out for this verdict")
	}

	theme, err := s.themes.GetByID(ctx, req.ThemeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}

	finalStage, err := s.isFinalStage(ctx, theme)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:          gate.EntityJuryDecision,
		Transition:      gate.TransitionRecordDecision,
		OwnerID:         theme.StudentID,
		ThemeFinalStage: finalStage,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}

	if existing, gerr := s.repo.GetByTheme(ctx, req.ThemeID); gerr == nil && existing != nil {
		s.metrics.RecordTransition("jury_decision", "record", "conflict")
		return nil, appErrors.Clone(appErrors.ErrConflictingUpdate, "a decision is already recorded for this theme")
	}

	decision := &models.JuryDecision{
		ID:        uuid.NewString(),
		ThemeID:   theme.ID,
		StudentID: theme.StudentID,
		Verdict:   req.Verdict,
		Grade:     req.Grade,
		DecidedBy: actor.ID,
		DecidedAt: time.Now().UTC(),
	}
	if req.Remarks != "" {
		decision.Remarks = &req.Remarks
	}
	if req.RequiredCorrections != "" {
		decision.RequiredCorrections = &req.RequiredCorrections
	}
	decision.CorrectionsDeadline = req.CorrectionsDeadline

	if err := s.repo.Create(ctx, decision); err != nil {
		if existing, gerr := s.repo.GetByTheme(ctx, req.ThemeID); gerr == nil && existing != nil {
			s.metrics.RecordTransition("jury_decision", "record", "conflict")
			return nil, appErrors.Clone(appErrors.ErrConflictingUpdate, "a decision is already recorded for this theme")
		}
		s.metrics.RecordTransition("jury_decision", "record", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.lockTheme(ctx, theme)
	s.metrics.RecordTransition("jury_decision", "record", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionJuryDecision, "jury_decision", decision.ID)
	s.generateMinutes(ctx, decision, theme)
	s.notifyVerdict(decision, theme)
	return decision, nil
}

// MarkCorrectionsCompleted flags the required corrections as handed in.
func (s *JuryService) MarkCorrectionsCompleted(ctx context.Context, decisionID string, actor gate.Actor) (*models.JuryDecision, error) {
	decision, err := s.getDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	// The owning student hands the corrections in; oversight roles may do it
	// on their behalf.
	if !actor.Role.IsAdmin() && actor.ID != decision.StudentID && actor.Role != models.RoleJury {
		return nil, appErrors.ErrForbidden
	}
	if decision.Verdict != models.JuryVerdictAcceptedWithCorrections {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "this verdict does not require corrections")
	}
	if decision.CorrectionsCompleted {
		return decision, nil
	}
	if err := s.repo.MarkCorrectionsCompleted(ctx, decisionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.getDecision(ctx, decisionID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark corrections")
	}
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionCorrectionsValidate, "jury_decision", decisionID)
	return s.getDecision(ctx, decisionID)
}

// ValidateCorrections stamps the jury validation of handed-in corrections.
// The stamp can only land on a decision whose corrections are completed.
func (s *JuryService) ValidateCorrections(ctx context.Context, decisionID string, actor gate.Actor) (*models.JuryDecision, error) {
	decision, err := s.getDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:          gate.EntityJuryDecision,
		Transition:      gate.TransitionValidateCorrections,
		OwnerID:         decision.StudentID,
		ThemeFinalStage: true,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if decision.CorrectionsValidatedAt != nil {
		return decision, nil
	}
	if err := s.repo.ValidateCorrections(ctx, decisionID, actor.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fresh, ferr := s.getDecision(ctx, decisionID)
			if ferr != nil {
				return nil, ferr
			}
			if fresh.CorrectionsValidatedAt != nil {
				return fresh, nil
			}
			s.metrics.RecordTransition("jury_decision", "validate_corrections", "rejected")
			return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "corrections have not been handed in yet")
		}
		s.metrics.RecordTransition("jury_decision", "validate_corrections", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate corrections")
	}

	s.metrics.RecordTransition("jury_decision", "validate_corrections", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionCorrectionsValidate, "jury_decision", decisionID)
	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			RecipientID:   decision.StudentID,
			Title:         "Corrections validées",
			Message:       "Your corrections were validated by the jury",
			Severity:      models.NotificationSeveritySuccess,
			RelatedEntity: "jury_decision",
			RelatedID:     decisionID,
		})
	}
	return s.getDecision(ctx, decisionID)
}

// MinutesDownloadURL returns a short-lived signed link to the defense
// minutes PDF.
func (s *JuryService) MinutesDownloadURL(ctx context.Context, decisionID string, actor gate.Actor) (string, time.Time, error) {
	decision, err := s.getDecision(ctx, decisionID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !s.canSee(decision, actor) {
		return "", time.Time{}, appErrors.ErrForbidden
	}
	if decision.MinutesFile == nil || s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "no minutes have been generated for this decision")
	}
	token, expiresAt, err := s.signer.Generate(decision.ID, *decision.MinutesFile)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// GetByTheme returns the decision recorded for a theme.
func (s *JuryService) GetByTheme(ctx context.Context, themeID string, actor gate.Actor) (*models.JuryDecision, error) {
	decision, err := s.repo.GetByTheme(ctx, themeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no decision recorded for this theme")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load decision")
	}
	if !s.canSee(decision, actor) {
		return nil, appErrors.ErrForbidden
	}
	return decision, nil
}

func (s *JuryService) getDecision(ctx context.Context, id string) (*models.JuryDecision, error) {
	decision, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "jury decision not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load decision")
	}
	return decision, nil
}

func (s *JuryService) canSee(decision *models.JuryDecision, actor gate.Actor) bool {
	return actor.Role.IsAdmin() || actor.Role == models.RoleJury ||
		actor.Role == models.RoleDepartmentHead || actor.ID == decision.StudentID
}

// isFinalStage checks that the theme reached the defense: approved theme,
// approved final manuscript, passed originality check. A locked theme is
// already past the defense.
func (s *JuryService) isFinalStage(ctx context.Context, theme *models.Theme) (bool, error) {
	if theme.Status == models.ThemeStatusLocked {
		return true, nil
	}
	if theme.Status != models.ThemeStatusApproved {
		return false, nil
	}
	final, err := s.documents.LatestVersion(ctx, theme.ID, models.DocumentTypeFinal, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load final document")
	}
	if final.Status != models.DocumentStatusApproved {
		return false, nil
	}
	passed, err := s.plagiarism.List(ctx, models.PlagiarismFilter{
		DocumentID: final.ID,
		Status:     []models.PlagiarismStatus{models.PlagiarismStatusPassed},
		Limit:      1,
	})
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plagiarism checks")
	}
	return len(passed) > 0, nil
}

// lockTheme moves the theme to LOCKED. Losing the race against another
// locker is fine; the theme ends up locked either way.
func (s *JuryService) lockTheme(ctx context.Context, theme *models.Theme) {
	if theme.Status == models.ThemeStatusLocked {
		return
	}
	err := s.themes.UpdateStatus(ctx, repository.UpdateThemeStatusParams{
		ID:         theme.ID,
		FromStatus: models.ThemeStatusApproved,
		ToStatus:   models.ThemeStatusLocked,
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Sugar().Errorw("failed to lock theme after decision", "theme_id", theme.ID, "error", err)
	}
}

// generateMinutes renders and stores the procès-verbal. Failures are logged,
// never returned: the decision itself already committed.
func (s *JuryService) generateMinutes(ctx context.Context, decision *models.JuryDecision, theme *models.Theme) {
	if s.renderer == nil || s.storage == nil {
		return
	}
	minutes := export.DefenseMinutes{
		ThemeTitle: theme.Title,
		Verdict:    string(decision.Verdict),
		Grade:      decision.Grade,
		DecidedAt:  decision.DecidedAt,
	}
	if decision.Remarks != nil {
		minutes.Remarks = *decision.Remarks
	}
	if decision.RequiredCorrections != nil {
		minutes.RequiredCorrections = *decision.RequiredCorrections
	}
	minutes.CorrectionsDeadline = decision.CorrectionsDeadline
	if student, err := s.users.FindByID(ctx, theme.StudentID); err == nil {
		minutes.StudentName = student.FullName
	}
	if theme.SupervisorID != nil {
		if supervisor, err := s.users.FindByID(ctx, *theme.SupervisorID); err == nil {
			minutes.SupervisorName = supervisor.FullName
		}
	}
	if president, err := s.users.FindByID(ctx, decision.DecidedBy); err == nil {
		minutes.JuryPresident = president.FullName
	}

	data, err := s.renderer.Render(minutes)
	if err != nil {
		s.logger.Sugar().Errorw("failed to render defense minutes", "decision_id", decision.ID, "error", err)
		return
	}
	filename := fmt.Sprintf("pv-%s.pdf", decision.ID)
	if _, err := s.storage.Save(filename, data); err != nil {
		s.logger.Sugar().Errorw("failed to store defense minutes", "decision_id", decision.ID, "error", err)
		return
	}
	if err := s.repo.SetMinutesFile(ctx, decision.ID, filename); err != nil {
		s.logger.Sugar().Errorw("failed to link defense minutes", "decision_id", decision.ID, "error", err)
		return
	}
	decision.MinutesFile = &filename
}

func (s *JuryService) notifyVerdict(decision *models.JuryDecision, theme *models.Theme) {
	if s.notifier == nil {
		return
	}
	n := models.Notification{
		RelatedEntity: "jury_decision",
		RelatedID:     decision.ID,
	}
	switch decision.Verdict {
	case models.JuryVerdictAccepted:
		n.Title = "Mémoire accepté"
		n.Message = fmt.Sprintf("The jury accepted %q", theme.Title)
		n.Severity = models.NotificationSeveritySuccess
	case models.JuryVerdictAcceptedWithCorrections:
		n.Title = "Mémoire accepté sous réserve de corrections"
		n.Message = fmt.Sprintf("The jury accepted %q pending corrections", theme.Title)
		n.Severity = models.NotificationSeverityWarning
	case models.JuryVerdictRejected:
		n.Title = "Mémoire rejeté"
		n.Message = fmt.Sprintf("The jury rejected %q", theme.Title)
		n.Severity = models.NotificationSeverityError
	}
	recipients := []string{theme.StudentID}
	if theme.SupervisorID != nil {
		recipients = append(recipients, *theme.SupervisorID)
	}
	for _, recipient := range recipients {
		n.RecipientID = recipient
		s.notifier.Notify(n)
	}
}
