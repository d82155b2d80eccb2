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

type assignmentStore interface {
	ActiveByStudent(ctx context.Context, studentID string) (*models.SupervisorAssignment, error)
	HistoryByStudent(ctx context.Context, studentID string) ([]models.SupervisorAssignment, error)
	Assign(ctx context.Context, assignment *models.SupervisorAssignment) error
	Deactivate(ctx context.Context, studentID string) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AssignmentService manages student/supervisor bindings and answers the
// "who actively supervises this student" question the gate depends on.
type AssignmentService struct {
	repo      assignmentStore
	users     userDirectory
	cache     cacheStore
	cacheTTL  time.Duration
	notifier  Notifier
	audit     auditStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAssignmentService constructs the assignment service. cache may be nil
// when Redis is unavailable; lookups then always hit the store.
func NewAssignmentService(repo assignmentStore, users userDirectory, cache cacheStore, cacheTTL time.Duration, notifier Notifier, audit auditStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AssignmentService{
		repo:      repo,
		users:     users,
		cache:     cache,
		cacheTTL:  cacheTTL,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

func activeAssignmentCacheKey(studentID string) string {
	return fmt.Sprintf("assignments:active:%s", studentID)
}

// Assign binds a supervisor to a student, deactivating any previous binding
// in the same transaction. Re-assigning the current supervisor is a no-op.
func (s *AssignmentService) Assign(ctx context.Context, req dto.AssignSupervisorRequest, actor gate.Actor) (*models.SupervisorAssignment, error) {
	if err := gate.Authorize(actor, gate.Request{Entity: gate.EntityAssignment, Transition: gate.TransitionAssign}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	student, err := s.lookupUser(ctx, req.StudentID, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	supervisor, err := s.lookupUser(ctx, req.SupervisorID, models.RoleSupervisor)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.ActiveByStudent(ctx, req.StudentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignment")
	}
	if current != nil && current.SupervisorID == req.SupervisorID {
		return current, nil
	}

	now := time.Now().UTC()
	assignment := &models.SupervisorAssignment{
		ID:           uuid.NewString(),
		StudentID:    req.StudentID,
		SupervisorID: req.SupervisorID,
		IsActive:     true,
		AssignedBy:   actor.ID,
		AssignedAt:   now,
	}
	if req.Notes != "" {
		assignment.Notes = &req.Notes
	}
	if err := s.repo.Assign(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record assignment")
	}

	s.invalidate(ctx, req.StudentID)
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSupervisorAssign, "supervisor_assignment", assignment.ID)

	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			RecipientID:   student.ID,
			Title:         "Encadreur assigné",
			Message:       fmt.Sprintf("%s is now your supervisor", supervisor.FullName),
			Severity:      models.NotificationSeverityInfo,
			RelatedEntity: "supervisor_assignment",
			RelatedID:     assignment.ID,
		})
		s.notifier.Notify(models.Notification{
			RecipientID:   supervisor.ID,
			Title:         "Nouvel étudiant encadré",
			Message:       fmt.Sprintf("You now supervise %s", student.FullName),
			Severity:      models.NotificationSeverityInfo,
			RelatedEntity: "supervisor_assignment",
			RelatedID:     assignment.ID,
		})
	}
	return assignment, nil
}

// Unassign deactivates a student's active supervisor binding without
// creating a new one. Unassigning a student with no active binding is a no-op.
func (s *AssignmentService) Unassign(ctx context.Context, studentID string, actor gate.Actor) error {
	if err := gate.Authorize(actor, gate.Request{Entity: gate.EntityAssignment, Transition: gate.TransitionAssign}); err != nil {
		s.metrics.RecordGateDenial(string(actor.Role))
		return err
	}

	current, err := s.repo.ActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignment")
	}

	if err := s.repo.Deactivate(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with a concurrent unassign; the end state is the same.
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate assignment")
	}

	s.invalidate(ctx, studentID)
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSupervisorUnassign, "supervisor_assignment", current.ID)

	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			RecipientID:   studentID,
			Title:         "Encadrement suspendu",
			Message:       "Your supervisor assignment has ended; a new supervisor will be assigned",
			Severity:      models.NotificationSeverityWarning,
			RelatedEntity: "supervisor_assignment",
			RelatedID:     current.ID,
		})
	}
	return nil
}

// Active returns the current binding for a student. Only the student, the
// active supervisor or an administrator may see it.
func (s *AssignmentService) Active(ctx context.Context, studentID string, actor gate.Actor) (*models.SupervisorAssignment, error) {
	assignment, err := s.repo.ActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active supervisor for this student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignment")
	}
	if !actor.Role.IsAdmin() && actor.ID != assignment.StudentID && actor.ID != assignment.SupervisorID {
		return nil, appErrors.ErrForbidden
	}
	return assignment, nil
}

// History returns every binding ever recorded for a student, newest first.
func (s *AssignmentService) History(ctx context.Context, studentID string, actor gate.Actor) ([]models.SupervisorAssignment, error) {
	if !actor.Role.IsAdmin() && actor.ID != studentID {
		return nil, appErrors.ErrForbidden
	}
	history, err := s.repo.HistoryByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}
	return history, nil
}

// ActiveSupervisorOf resolves the active supervisor ID for a student, empty
// when none is assigned. Results are cached; the cache is invalidated on
// every re-assignment.
func (s *AssignmentService) ActiveSupervisorOf(ctx context.Context, studentID string) (string, error) {
	key := activeAssignmentCacheKey(studentID)
	if s.cache != nil {
		start := time.Now()
		var cached string
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("assignment cache read failed", "student_id", studentID, "error", err)
		}
	}

	assignment, err := s.repo.ActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.fillCache(ctx, key, "")
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve supervisor")
	}
	s.fillCache(ctx, key, assignment.SupervisorID)
	return assignment.SupervisorID, nil
}

func (s *AssignmentService) fillCache(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Sugar().Warnw("assignment cache write failed", "key", key, "error", err)
	}
}

func (s *AssignmentService) invalidate(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeAssignmentCacheKey(studentID)); err != nil {
		s.logger.Sugar().Warnw("assignment cache invalidation failed", "student_id", studentID, "error", err)
	}
}

func (s *AssignmentService) lookupUser(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s does not have the %s role", id, role))
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s is inactive", id))
	}
	return user, nil
}
