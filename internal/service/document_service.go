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

type documentStore interface {
	CreateVersion(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	LatestVersion(ctx context.Context, themeID string, docType models.DocumentType, chapter *int) (*models.Document, error)
	UpdateStatus(ctx context.Context, params repository.UpdateDocumentStatusParams) error
}

type documentThemeStore interface {
	GetByID(ctx context.Context, id string) (*models.Theme, error)
}

// DocumentService runs the deliverable submission and review workflow.
// Every submission creates a fresh immutable version; review decisions
// mutate only the status of the version they target.
type DocumentService struct {
	repo      documentStore
	themes    documentThemeStore
	resolver  supervisorResolver
	notifier  Notifier
	audit     auditStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(repo documentStore, themes documentThemeStore, resolver supervisorResolver, notifier Notifier, audit auditStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:      repo,
		themes:    themes,
		resolver:  resolver,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit registers a new document version under an approved theme. The
// version number is allocated inside the store transaction, so concurrent
// submissions for the same slot never collide.
func (s *DocumentService) Submit(ctx context.Context, req dto.SubmitDocumentRequest, actor gate.Actor) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if req.DocumentType == models.DocumentTypeChapter && req.ChapterNumber == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "chapter_number is required for chapter documents")
	}
	if req.DocumentType != models.DocumentTypeChapter && req.ChapterNumber != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "chapter_number only applies to chapter documents")
	}

	theme, err := s.themes.GetByID(ctx, req.ThemeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "theme not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load theme")
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:     gate.EntityDocument,
		Transition: gate.TransitionSubmit,
		OwnerID:    theme.StudentID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if theme.Status != models.ThemeStatusApproved {
		s.metrics.RecordTransition("document", "submit", "rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet,
			fmt.Sprintf("theme is %s, documents require an approved theme", theme.Status))
	}

	latest, err := s.repo.LatestVersion(ctx, req.ThemeID, req.DocumentType, req.ChapterNumber)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest version")
	}
	if latest != nil && (latest.Status == models.DocumentStatusSubmitted || latest.Status == models.DocumentStatusUnderReview) {
		s.metrics.RecordTransition("document", "submit", "rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionNotMet, "the previous version is still under review")
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:            uuid.NewString(),
		ThemeID:       req.ThemeID,
		StudentID:     theme.StudentID,
		DocumentType:  req.DocumentType,
		ChapterNumber: req.ChapterNumber,
		FileReference: req.FileReference,
		SizeBytes:     req.SizeBytes,
		Status:        models.DocumentStatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateVersion(ctx, doc); err != nil {
		s.metrics.RecordTransition("document", "submit", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document version")
	}

	s.metrics.RecordTransition("document", "submit", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionDocumentSubmit, "document", doc.ID)
	if supervisorID, rerr := s.resolver.ActiveSupervisorOf(ctx, theme.StudentID); rerr == nil && supervisorID != "" && s.notifier != nil {
		s.notifier.Notify(models.Notification{
			RecipientID:   supervisorID,
			Title:         "Nouveau document soumis",
			Message:       fmt.Sprintf("%s v%d awaits your review", doc.DocumentType, doc.Version),
			Severity:      models.NotificationSeverityInfo,
			RelatedEntity: "document",
			RelatedID:     doc.ID,
		})
	}
	return doc, nil
}

// Review applies the supervisor decision to one document version.
func (s *DocumentService) Review(ctx context.Context, documentID string, req dto.ReviewDocumentRequest, actor gate.Actor) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, doc.StudentID)
	if err != nil {
		return nil, err
	}
	if err := gate.Authorize(actor, gate.Request{
		Entity:             gate.EntityDocument,
		Transition:         gate.TransitionReview,
		OwnerID:            doc.StudentID,
		ActiveSupervisorID: supervisorID,
	}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}

	target := models.DocumentStatus(req.Decision)
	if !doc.Status.CanTransition(target) {
		s.metrics.RecordTransition("document", "review", "rejected")
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("document is %s, cannot move to %s", doc.Status, target))
	}
	if req.Feedback == "" && (req.Decision == models.DocumentDecisionReject || req.Decision == models.DocumentDecisionRequestRevision) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "feedback is required when rejecting or requesting revision")
	}

	params := repository.UpdateDocumentStatusParams{
		ID:         doc.ID,
		FromStatus: doc.Status,
		ToStatus:   target,
		ReviewedBy: actor.ID,
		ReviewedAt: time.Now().UTC(),
	}
	if req.Feedback != "" {
		params.Feedback = &req.Feedback
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition("document", "review", "conflict")
			return nil, appErrors.ErrConflictingUpdate
		}
		s.metrics.RecordTransition("document", "review", "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply document decision")
	}

	s.metrics.RecordTransition("document", "review", "accepted")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionDocumentReview, "document", doc.ID)
	s.notifyStudentOfReview(doc, req)
	return s.getDocument(ctx, documentID)
}

// Get returns one document version, visible to its student, the active
// supervisor, department heads, the jury and admins.
func (s *DocumentService) Get(ctx context.Context, documentID string, actor gate.Actor) (*models.Document, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsAdmin() || actor.Role == models.RoleDepartmentHead || actor.Role == models.RoleJury || actor.ID == doc.StudentID {
		return doc, nil
	}
	supervisorID, err := s.resolver.ActiveSupervisorOf(ctx, doc.StudentID)
	if err == nil && supervisorID != "" && supervisorID == actor.ID {
		return doc, nil
	}
	return nil, appErrors.ErrForbidden
}

// List returns document versions scoped to what the actor may see.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentQuery, actor gate.Actor) ([]models.Document, error) {
	filter := models.DocumentFilter{
		ThemeID:      query.ThemeID,
		StudentID:    query.StudentID,
		DocumentType: query.DocumentType,
		Status:       query.Status,
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.ID
	}
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

func (s *DocumentService) getDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) notifyStudentOfReview(doc *models.Document, req dto.ReviewDocumentRequest) {
	if s.notifier == nil {
		return
	}
	n := models.Notification{
		RecipientID:   doc.StudentID,
		RelatedEntity: "document",
		RelatedID:     doc.ID,
	}
	label := fmt.Sprintf("%s v%d", doc.DocumentType, doc.Version)
	switch req.Decision {
	case models.DocumentDecisionStartReview:
		n.Title = "Document en cours de lecture"
		n.Message = fmt.Sprintf("%s is under review", label)
		n.Severity = models.NotificationSeverityInfo
	case models.DocumentDecisionApprove:
		n.Title = "Document approuvé"
		n.Message = fmt.Sprintf("%s was approved", label)
		n.Severity = models.NotificationSeveritySuccess
	case models.DocumentDecisionReject:
		n.Title = "Document rejeté"
		n.Message = fmt.Sprintf("%s was rejected: %s", label, req.Feedback)
		n.Severity = models.NotificationSeverityError
	case models.DocumentDecisionRequestRevision:
		n.Title = "Révision demandée"
		n.Message = fmt.Sprintf("%s needs revision: %s", label, req.Feedback)
		n.Severity = models.NotificationSeverityWarning
	}
	s.notifier.Notify(n)
}
