package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/gate"
	"github.com/uh2c-dev/memoire-api/internal/models"
	"github.com/uh2c-dev/memoire-api/internal/repository"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type themeRepoStub struct {
	themes    map[string]*models.Theme
	openCount int
	updateErr error
	lastParams *repository.UpdateThemeStatusParams
}

func (s *themeRepoStub) Create(ctx context.Context, theme *models.Theme) error {
	if s.themes == nil {
		s.themes = make(map[string]*models.Theme)
	}
	copied := *theme
	s.themes[theme.ID] = &copied
	return nil
}

func (s *themeRepoStub) GetByID(ctx context.Context, id string) (*models.Theme, error) {
	theme, ok := s.themes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *theme
	return &copied, nil
}

func (s *themeRepoStub) List(ctx context.Context, filter models.ThemeFilter) ([]models.Theme, error) {
	result := []models.Theme{}
	for _, theme := range s.themes {
		if filter.StudentID != "" && theme.StudentID != filter.StudentID {
			continue
		}
		result = append(result, *theme)
	}
	return result, nil
}

func (s *themeRepoStub) CountOpenByStudent(ctx context.Context, studentID string) (int, error) {
	return s.openCount, nil
}

func (s *themeRepoStub) SetSupervisor(ctx context.Context, themeID, supervisorID string) error {
	theme, ok := s.themes[themeID]
	if !ok {
		return sql.ErrNoRows
	}
	theme.SupervisorID = &supervisorID
	return nil
}

func (s *themeRepoStub) UpdateStatus(ctx context.Context, params repository.UpdateThemeStatusParams) error {
	s.lastParams = &params
	if s.updateErr != nil {
		return s.updateErr
	}
	theme, ok := s.themes[params.ID]
	if !ok || theme.Status != params.FromStatus {
		return sql.ErrNoRows
	}
	theme.Status = params.ToStatus
	if params.Title != nil {
		theme.Title = *params.Title
	}
	if params.Description != nil {
		theme.Description = *params.Description
	}
	theme.RejectionReason = params.RejectionReason
	theme.RevisionNotes = params.RevisionNotes
	return nil
}

type resolverStub struct {
	supervisorID string
	err          error
}

func (s resolverStub) ActiveSupervisorOf(ctx context.Context, studentID string) (string, error) {
	return s.supervisorID, s.err
}

type notifierStub struct {
	sent []models.Notification
}

func (s *notifierStub) Notify(n models.Notification) {
	s.sent = append(s.sent, n)
}

type auditStub struct {
	logs []*models.AuditLog
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, code, appErr.Code)
}

func TestThemeServiceSubmitCreatesPendingTheme(t *testing.T) {
	repo := &themeRepoStub{}
	notifier := &notifierStub{}
	svc := NewThemeService(repo, resolverStub{supervisorID: "sup-1"}, notifier, &auditStub{}, nil, nil, nil)

	theme, err := svc.Submit(context.Background(), dto.SubmitThemeRequest{
		Title:       "Optimisation des requêtes distribuées",
		Description: "Étude des stratégies d'optimisation pour bases de données réparties.",
	}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	require.NoError(t, err)
	assert.Equal(t, models.ThemeStatusPending, theme.Status)
	assert.Equal(t, "stu-1", theme.StudentID)
	require.NotNil(t, theme.SupervisorID)
	assert.Equal(t, "sup-1", *theme.SupervisorID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "sup-1", notifier.sent[0].RecipientID)
}

func TestThemeServiceSubmitRejectsSecondOpenTheme(t *testing.T) {
	repo := &themeRepoStub{openCount: 1}
	svc := NewThemeService(repo, resolverStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Submit(context.Background(), dto.SubmitThemeRequest{
		Title:       "Un deuxième thème pendant le premier",
		Description: "Un étudiant ne peut suivre qu'un seul thème ouvert à la fois.",
	}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestThemeServiceReviewApproves(t *testing.T) {
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Title: "Sujet", Status: models.ThemeStatusPending},
	}}
	notifier := &notifierStub{}
	svc := NewThemeService(repo, resolverStub{supervisorID: "sup-1"}, notifier, &auditStub{}, nil, nil, nil)

	theme, err := svc.Review(context.Background(), "th-1", dto.ReviewThemeRequest{
		Decision: models.ThemeDecisionApprove,
	}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	require.NoError(t, err)
	assert.Equal(t, models.ThemeStatusApproved, theme.Status)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "stu-1", notifier.sent[0].RecipientID)
	assert.Equal(t, models.NotificationSeveritySuccess, notifier.sent[0].Severity)
}

func TestThemeServiceReviewRequiresNotesForRejection(t *testing.T) {
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusPending},
	}}
	svc := NewThemeService(repo, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.Review(context.Background(), "th-1", dto.ReviewThemeRequest{
		Decision: models.ThemeDecisionReject,
	}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestThemeServiceReviewByNonSupervisorDenied(t *testing.T) {
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusPending},
	}}
	svc := NewThemeService(repo, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.Review(context.Background(), "th-1", dto.ReviewThemeRequest{
		Decision: models.ThemeDecisionApprove,
	}, gate.Actor{ID: "sup-2", Role: models.RoleSupervisor})

	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestThemeServiceReviewLostRaceSurfacesConflict(t *testing.T) {
	repo := &themeRepoStub{
		themes: map[string]*models.Theme{
			"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusPending},
		},
		updateErr: sql.ErrNoRows,
	}
	svc := NewThemeService(repo, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.Review(context.Background(), "th-1", dto.ReviewThemeRequest{
		Decision: models.ThemeDecisionApprove,
	}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	requireAppError(t, err, appErrors.ErrConflictingUpdate.Code)
}

func TestThemeServiceResubmitOnlyFromRevisionRequested(t *testing.T) {
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusApproved},
	}}
	svc := NewThemeService(repo, resolverStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Resubmit(context.Background(), "th-1", dto.ResubmitThemeRequest{
		Title:       "Titre retravaillé après les remarques",
		Description: "La description corrigée suite aux notes de révision du superviseur.",
	}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	requireAppError(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestThemeServiceResubmitReturnsToPending(t *testing.T) {
	notes := "à préciser"
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusRevisionRequested, RevisionNotes: &notes},
	}}
	svc := NewThemeService(repo, resolverStub{}, nil, nil, nil, nil, nil)

	theme, err := svc.Resubmit(context.Background(), "th-1", dto.ResubmitThemeRequest{
		Title:       "Titre retravaillé après les remarques",
		Description: "La description corrigée suite aux notes de révision du superviseur.",
	}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	require.NoError(t, err)
	assert.Equal(t, models.ThemeStatusPending, theme.Status)
	assert.Nil(t, theme.RevisionNotes)
	assert.Equal(t, "Titre retravaillé après les remarques", theme.Title)
}

func TestThemeServiceResubmitRefreshesSupervisor(t *testing.T) {
	oldSup := "sup-old"
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusRevisionRequested, SupervisorID: &oldSup},
	}}
	notifier := &notifierStub{}
	svc := NewThemeService(repo, resolverStub{supervisorID: "sup-new"}, notifier, &auditStub{}, nil, nil, nil)

	theme, err := svc.Resubmit(context.Background(), "th-1", dto.ResubmitThemeRequest{
		Title:       "Titre retravaillé après les remarques",
		Description: "La description corrigée suite aux notes de révision du superviseur.",
	}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	require.NoError(t, err)
	require.NotNil(t, theme.SupervisorID)
	assert.Equal(t, "sup-new", *theme.SupervisorID)
	require.NotNil(t, repo.themes["th-1"].SupervisorID)
	assert.Equal(t, "sup-new", *repo.themes["th-1"].SupervisorID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "sup-new", notifier.sent[0].RecipientID)
}

func TestThemeServiceListScopesStudentToOwnThemes(t *testing.T) {
	repo := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusPending},
		"th-2": {ID: "th-2", StudentID: "stu-2", Status: models.ThemeStatusPending},
	}}
	svc := NewThemeService(repo, resolverStub{}, nil, nil, nil, nil, nil)

	themes, err := svc.List(context.Background(), dto.ThemeQuery{StudentID: "stu-2"}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	require.NoError(t, err)
	require.Len(t, themes, 1)
	assert.Equal(t, "stu-1", themes[0].StudentID)
}
