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
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type meetingReportStore interface {
	Create(ctx context.Context, report *models.MeetingReport) error
	GetByID(ctx context.Context, id string) (*models.MeetingReport, error)
	List(ctx context.Context, filter models.MeetingReportFilter) ([]models.MeetingReport, error)
	Submit(ctx context.Context, id string, submittedAt time.Time) error
	MarkSupervisorValidated(ctx context.Context, id string) error
	MarkHeadValidated(ctx context.Context, id, validatedBy string, validatedAt time.Time) error
	RejectByHead(ctx context.Context, id, reason string) error
	AppendNote(ctx context.Context, id, note string) error
}

// ReportService runs the fiche de suivi validation chain: submission,
// supervisor sign-off, then department head sign-off. The head can only
// ever act after the supervisor; the store re-checks that ordering inside
// the same statement that sets the head flag.
type ReportService struct {
	repo      meetingReportStore
	themes    documentThemeStore
	users     userDirectory
	resolver  supervisorResolver
	notifier  Notifier
	audit     auditStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewReportService constructs the meeting report service.
func NewReportService(repo meetingReportStore, themes documentThemeStore, users userDirectory, resolver supervisorResolver, notifier Notifier, audit auditStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		themes:    themes,
		users:     users,
		resolver:  resolver,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit files a meeting report for a theme and puts it straight into the
// validation cycle. Either the student or the active supervisor may file it.
func (s *ReportService) Submit(ctx context.Context, req dto.SubmitMeetingReportRequest, actor gate.Actor) (*models.MeetingReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	theme, err := s.themes.GetByID(ctx, req.ThemeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}

	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, theme.StudentID)
	if err != nil {
		return nil, err
	}
	if supervisorID == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "no active supervisor is assigned to this student")
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityMeetingReport,
		Transition:         gate.TransitionSubmit,
		OwnerID:            theme.StudentID,
		ActiveSupervisorID: supervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}

	now := time.Now().UTC()
	report := &models.MeetingReport{
		ID:           uuid.NewString(),
		ThemeID:      theme.ID,
		StudentID:    theme.StudentID,
		SupervisorID: supervisorID,
		MeetingDate:  req.MeetingDate,
		Summary:      req.Summary,
		Status:       models.MeetingReportStatusSubmitted,
		SubmittedAt:  &now,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		s.metrics.RecordTransition("meeting_report", "submit", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}

	s.metrics.RecordTransition("meeting_report", "submit", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionReportSubmit, "meeting_report", report.ID)
	if s.notifier != nil && actor.ID != supervisorID {
		s.notifier.Notify(models.Notification{
			RecipientID:   supervisorID,
			Title:         "Fiche de suivi soumise",
			Message:       fmt.Sprintf("A meeting report of %s awaits your validation", req.MeetingDate.Format("2006-01-02")),
			Severity:      models.NotificationSeverityInfo,
			RelatedEntity: "meeting_report",
			RelatedID:     report.ID,
		})
	}
	return report, nil
}

// Resubmit puts a head-rejected report back into the validation cycle,
// clearing both validation flags and the rejection reason.
func (s *ReportService) Resubmit(ctx context.Context, reportID string, actor gate.Actor) (*models.MeetingReport, error) {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityMeetingReport,
		Transition:         gate.TransitionResubmit,
		OwnerID:            report.StudentID,
		ActiveSupervisorID: report.SupervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if err := s.repo.Submit(ctx, reportID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition("meeting_report", "resubmit", "rejected")
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("report is %s, only drafts or rejected reports can be submitted", report.Status))
		}
		s.metrics.RecordTransition("meeting_report", "resubmit", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resubmit report")
	}
	s.metrics.RecordTransition("meeting_report", "resubmit", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionReportSubmit, "meeting_report", reportID)
	return s.getReport(ctx, reportID)
}

// ValidateBySupervisor records the supervisor sign-off. Validating a report
// already carrying the flag is a no-op, not an error.
func (s *ReportService) ValidateBySupervisor(ctx context.Context, reportID string, actor gate.Actor) (*models.MeetingReport, error) {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityMeetingReport,
		Transition:         gate.TransitionValidateBySupervisor,
		OwnerID:            report.StudentID,
		ActiveSupervisorID: report.SupervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if report.SupervisorValidated {
		return report, nil
	}
	if err := s.repo.MarkSupervisorValidated(ctx, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Re-read to tell an idempotent replay apart from a state error.
			fresh, ferr := s.getReport(ctx, reportID)
			if ferr == nil && fresh.SupervisorValidated {
				return fresh, nil
			}
			s.metrics.RecordTransition("meeting_report", "validate_supervisor", "rejected")
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("report is %s, only submitted reports can be validated", report.Status))
		}
		s.metrics.RecordTransition("meeting_report", "validate_supervisor", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate report")
	}

	s.metrics.RecordTransition("meeting_report", "validate_supervisor", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionReportValidate, "meeting_report", reportID)
	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			RecipientID:   report.StudentID,
			Title:         "Fiche validée par l'encadreur",
			Message:       "Your meeting report was validated by your supervisor",
			Severity:      models.NotificationSeveritySuccess,
			RelatedEntity: "meeting_report",
			RelatedID:     reportID,
		})
	}
	return s.getReport(ctx, reportID)
}

// ValidateByHead records the department head decision. Validation requires
// the supervisor flag to already be set; the store re-checks it in the same
// conditional update so the ordering can never be violated by a race.
func (s *ReportService) ValidateByHead(ctx context.Context, reportID string, req dto.HeadValidationRequest, actor gate.Actor) (*models.MeetingReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	student, err := s.users.FindByID(ctx, report.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:              gate.EntityMeetingReport,
		Transition:          gate.TransitionValidateByHead,
		OwnerID:             report.StudentID,
		StudentDepartment:   student.Department,
		SupervisorValidated: report.SupervisorValidated,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}

	switch req.Decision {
	case models.HeadDecisionValidate:
		if report.DepartmentHeadValidated {
			return report, nil
		}
		if err := s.repo.MarkHeadValidated(ctx, reportID, actor.ID, time.Now().UTC()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return s.explainHeadValidationFailure(ctx, reportID)
			}
			s.metrics.RecordTransition("meeting_report", "validate_head", "error")
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate report")
		}
		s.metrics.RecordTransition("meeting_report", "validate_head", "accepted")
	case models.HeadDecisionReject:
		if req.Comments == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required when rejecting a report")
		}
		if err := s.repo.RejectByHead(ctx, reportID, req.Comments); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.metrics.RecordTransition("meeting_report", "validate_head", "conflict")
				return nil, appErrors.ErrConflictingUpdate
			}
			s.metrics.RecordTransition("meeting_report", "validate_head", "error")
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject report")
		}
		s.metrics.RecordTransition("meeting_report", "validate_head", "accepted")
	}

	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionReportValidate, "meeting_report", reportID)
	s.notifyHeadDecision(report, req)
	return s.getReport(ctx, reportID)
}

// AppendNote attaches a note to an already validated report. The report
// itself stays immutable; only the note trail grows.
func (s *ReportService) AppendNote(ctx context.Context, reportID string, req dto.AppendReportNoteRequest, actor gate.Actor) (*models.MeetingReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && actor.ID != report.SupervisorID && actor.Role != models.RoleDepartmentHead {
		return nil, appErrors.ErrForbidden
	}
	if err := s.repo.AppendNote(ctx, reportID, req.Note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "notes can only be appended to validated reports")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append note")
	}
	return s.getReport(ctx, reportID)
}

// Get returns one report, visible to its participants and oversight roles.
func (s *ReportService) Get(ctx context.Context, reportID string, actor gate.Actor) (*models.MeetingReport, error) {
	report, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsAdmin() || actor.Role == models.RoleDepartmentHead || actor.ID == report.StudentID || actor.ID == report.SupervisorID {
		return report, nil
	}
	return nil, appErrors.ErrForbidden
}

// List returns reports scoped to what the actor may see.
func (s *ReportService) List(ctx context.Context, filter models.MeetingReportFilter, actor gate.Actor) ([]models.MeetingReport, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleSupervisor:
		filter.SupervisorID = actor.ID
	}
	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}

func (s *ReportService) getReport(ctx context.Context, id string) (*models.MeetingReport, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

// explainHeadValidationFailure disambiguates a zero-row head validation:
// the supervisor flag may have been cleared, the row may already be
// validated (idempotent replay, return the fresh report), or a concurrent
// actor won the race.
func (s *ReportService) explainHeadValidationFailure(ctx context.Context, reportID string) (*models.MeetingReport, error) {
	fresh, err := s.getReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if fresh.DepartmentHeadValidated {
		return fresh, nil
	}
	if !fresh.SupervisorValidated {
		s.metrics.RecordTransition("meeting_report", "validate_head", "rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "report not yet validated by the supervisor")
	}
	s.metrics.RecordTransition("meeting_report", "validate_head", "conflict")
	return nil, appErrors.ErrConflictingUpdate
}

func (s *ReportService) notifyHeadDecision(report *models.MeetingReport, req dto.HeadValidationRequest) {
	if s.notifier == nil {
		return
	}
	n := models.Notification{
		RelatedEntity: "meeting_report",
		RelatedID:     report.ID,
	}
	switch req.Decision {
	case models.HeadDecisionValidate:
		n.Title = "Fiche validée par le chef de département"
		n.Message = "Your meeting report is fully validated"
		n.Severity = models.NotificationSeveritySuccess
	case models.HeadDecisionReject:
		n.Title = "Fiche rejetée"
		n.Message = fmt.Sprintf("Your meeting report was rejected: %s", req.Comments)
		n.Severity = models.NotificationSeverityError
	}
	for _, recipient := range []string{report.StudentID, report.SupervisorID} {
		n.RecipientID = recipient
		s.notifier.Notify(n)
	}
}
