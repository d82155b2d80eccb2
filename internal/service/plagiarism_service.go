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

type plagiarismStore interface {
	Create(ctx context.Context, check *models.PlagiarismCheck) error
	GetByID(ctx context.Context, id string) (*models.PlagiarismCheck, error)
	List(ctx context.Context, filter models.PlagiarismFilter) ([]models.PlagiarismCheck, error)
	RecordResult(ctx context.Context, id string, score float64, sourcesFound int, details *string, scoredAt time.Time) error
	Finalize(ctx context.Context, id string) error
}

type plagiarismDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type thresholdProvider interface {
	PlagiarismThreshold(ctx context.Context) (float64, error)
}

// PlagiarismService runs originality checks against an external oracle.
// The scoring happens elsewhere; this service owns the check lifecycle and
// freezes the similarity threshold the moment a check is opened, so later
// threshold changes never alter a check in flight.
type PlagiarismService struct {
	repo       plagiarismStore
	documents  plagiarismDocumentStore
	thresholds thresholdProvider
	resolver   supervisorResolver
	notifier   Notifier
	audit      auditStore
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewPlagiarismService constructs the plagiarism service.
func NewPlagiarismService(repo plagiarismStore, documents plagiarismDocumentStore, thresholds thresholdProvider, resolver supervisorResolver, notifier Notifier, audit auditStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *PlagiarismService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlagiarismService{
		repo:       repo,
		documents:  documents,
		thresholds: thresholds,
		resolver:   resolver,
		notifier:   notifier,
		audit:      audit,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
	}
}

// Request opens a new check for a document. At most one non-terminal check
// may exist per document; a re-score after a terminal outcome is always a
// brand-new check with the threshold in force at that moment.
func (s *PlagiarismService) Request(ctx context.Context, req dto.RequestPlagiarismCheckRequest, actor gate.Actor) (*models.PlagiarismCheck, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check payload")
	}
	doc, err := s.documents.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, doc.StudentID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityPlagiarism,
		Transition:         gate.TransitionRequestCheck,
		OwnerID:            doc.StudentID,
		ActiveSupervisorID: supervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if !doc.Status.PlagiarismEligible() {
		s.metrics.RecordTransition("plagiarism_check", "request", "rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet,
			fmt.Sprintf("document is %s, only approved or under-review documents can be checked", doc.Status))
	}

	open, err := s.repo.List(ctx, models.PlagiarismFilter{
		DocumentID: req.DocumentID,
		Status:     []models.PlagiarismStatus{models.PlagiarismStatusPending, models.PlagiarismStatusInProgress},
		Limit:      1,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open requests")
	}
	if len(open) > 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "a check is already open for this document")
	}

	threshold, err := s.thresholds.PlagiarismThreshold(ctx)
	if err != nil {
		return nil, err
	}
	check := &models.PlagiarismCheck{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		ThemeID:       doc.ThemeID,
		StudentID:     doc.StudentID,
		Status:        models.PlagiarismStatusPending,
		ThresholdUsed: threshold,
		RequestedBy:   actor.ID,
	}
	if err := s.repo.Create(ctx, check); err != nil {
		s.metrics.RecordTransition("plagiarism_check", "request", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create check")
	}

	s.metrics.RecordTransition("plagiarism_check", "request", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionPlagiarismRequest, "plagiarism_check", check.ID)
	return check, nil
}

// RecordResult stores the oracle score for an open check. The outcome is
// not decided here; Finalize freezes it separately.
func (s *PlagiarismService) RecordResult(ctx context.Context, checkID string, req dto.RecordPlagiarismResultRequest, actor gate.Actor) (*models.PlagiarismCheck, error) {
	if err := gate.Authorize(actor, gate.Request{
		Entity:     gate.EntityPlagiarism,
		Transition: gate.TransitionRecordResult,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}

	var details *string
	if req.Details != "" {
		details = &req.Details
	}
	if err := s.repo.RecordResult(ctx, checkID, req.Score, req.SourcesFound, details, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			check, gerr := s.getCheck(ctx, checkID)
			if gerr != nil {
				return nil, gerr
			}
			s.metrics.RecordTransition("plagiarism_check", "record_result", "rejected")
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("check is %s, its outcome is frozen", check.Status))
		}
		s.metrics.RecordTransition("plagiarism_check", "record_result", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record result")
	}

	s.metrics.RecordTransition("plagiarism_check", "record_result", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionPlagiarismResult, "plagiarism_check", checkID)
	return s.getCheck(ctx, checkID)
}

// Finalize freezes the check outcome by comparing the recorded score to the
// threshold frozen at creation: strictly below passes, at or above fails.
func (s *PlagiarismService) Finalize(ctx context.Context, checkID string, actor gate.Actor) (*models.PlagiarismCheck, error) {
	check, err := s.getCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, check.StudentID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityPlagiarism,
		Transition:         gate.TransitionFinalizeCheck,
		OwnerID:            check.StudentID,
		ActiveSupervisorID: supervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if check.Status.Terminal() {
		return check, nil
	}
	if check.Status != models.PlagiarismStatusInProgress || check.Score == nil {
		s.metrics.RecordTransition("plagiarism_check", "finalize", "rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "no score recorded for this check yet")
	}

	// The store computes the verdict from the row it actually updates; the
	// snapshot read above only serves the precondition checks, so a result
	// recorded in between cannot desynchronize status and score.
	if err := s.repo.Finalize(ctx, checkID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fresh, ferr := s.getCheck(ctx, checkID)
			if ferr == nil && fresh.Status.Terminal() {
				return fresh, nil
			}
			s.metrics.RecordTransition("plagiarism_check", "finalize", "conflict")
			return nil, appErrors.ErrConflictingUpdate
		}
		s.metrics.RecordTransition("plagiarism_check", "finalize", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize check")
	}

	fresh, err := s.getCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition("plagiarism_check", "finalize", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionPlagiarismResult, "plagiarism_check", checkID)
	s.notifyOutcome(fresh, fresh.Status)
	return fresh, nil
}

// Get returns one check, visible to its student, the requester, the active
// supervisor and oversight roles.
func (s *PlagiarismService) Get(ctx context.Context, checkID string, actor gate.Actor) (*models.PlagiarismCheck, error) {
	check, err := s.getCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsAdmin() || actor.Role == models.RoleDepartmentHead || actor.Role == models.RoleJury ||
		actor.ID == check.StudentID || actor.ID == check.RequestedBy {
		return check, nil
	}
	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, check.StudentID)
	if err == nil && supervisorID != "" && supervisorID == actor.ID {
		return check, nil
	}
	return nil, appErrors.ErrForbidden
}

// List returns checks scoped to what the actor may see.
func (s *PlagiarismService) List(ctx context.Context, filter models.PlagiarismFilter, actor gate.Actor) ([]models.PlagiarismCheck, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	checks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list checks")
	}
	return checks, nil
}

func (s *PlagiarismService) getCheck(ctx context.Context, id string) (*models.PlagiarismCheck, error) {
	check, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plagiarism check not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load check")
	}
	return check, nil
}

func (s *PlagiarismService) notifyOutcome(check *models.PlagiarismCheck, outcome models.PlagiarismStatus) {
	if s.notifier == nil {
		return
	}
	n := models.Notification{
		RelatedEntity: "plagiarism_check",
		RelatedID:     check.ID,
	}
	if outcome == models.PlagiarismStatusPassed {
		n.Title = "Contrôle anti-plagiat réussi"
		n.Message = "The originality check passed"
		n.Severity = models.NotificationSeveritySuccess
	} else {
		n.Title = "Contrôle anti-plagiat échoué"
		n.Message = "The originality check failed; a corrected version must be submitted"
		n.Severity = models.NotificationSeverityWarning
	}
	recipients := []string{check.StudentID}
	if check.RequestedBy != check.StudentID {
		recipients = append(recipients, check.RequestedBy)
	}
	for _, recipient := range recipients {
		n.RecipientID = recipient
		s.notifier.Notify(n)
	}
}
