package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/internal/dto"
	"github.com/uh2c-dev/memoire-api/internal/gate"
	"github.com/uh2c-dev/memoire-api/internal/models"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type reportRepoStub struct {
	reports map[string]*models.MeetingReport
}

func (s *reportRepoStub) Create(ctx context.Context, report *models.MeetingReport) error {
	if s.reports == nil {
		s.reports = make(map[string]*models.MeetingReport)
	}
	copied := *report
	s.reports[report.ID] = &copied
	return nil
}

func (s *reportRepoStub) GetByID(ctx context.Context, id string) (*models.MeetingReport, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *report
	return &copied, nil
}

func (s *reportRepoStub) List(ctx context.Context, filter models.MeetingReportFilter) ([]models.MeetingReport, error) {
	result := []models.MeetingReport{}
	for _, report := range s.reports {
		if filter.StudentID != "" && report.StudentID != filter.StudentID {
			continue
		}
		if filter.SupervisorID != "" && report.SupervisorID != filter.SupervisorID {
			continue
		}
		result = append(result, *report)
	}
	return result, nil
}

func (s *reportRepoStub) Submit(ctx context.Context, id string, submittedAt time.Time) error {
	report, ok := s.reports[id]
	if !ok {
		return sql.ErrNoRows
	}
	if report.Status != models.MeetingReportStatusDraft && report.Status != models.MeetingReportStatusRejected {
		return sql.ErrNoRows
	}
	report.Status = models.MeetingReportStatusSubmitted
	report.SupervisorValidated = false
	report.DepartmentHeadValidated = false
	report.RejectionReason = nil
	report.SubmittedAt = &submittedAt
	return nil
}

func (s *reportRepoStub) MarkSupervisorValidated(ctx context.Context, id string) error {
	report, ok := s.reports[id]
	if !ok || report.Status != models.MeetingReportStatusSubmitted || report.SupervisorValidated {
		return sql.ErrNoRows
	}
	report.SupervisorValidated = true
	return nil
}

func (s *reportRepoStub) MarkHeadValidated(ctx context.Context, id, validatedBy string, validatedAt time.Time) error {
	report, ok := s.reports[id]
	if !ok || report.Status != models.MeetingReportStatusSubmitted || !report.SupervisorValidated || report.DepartmentHeadValidated {
		return sql.ErrNoRows
	}
	report.DepartmentHeadValidated = true
	report.Status = models.MeetingReportStatusValidated
	report.ValidatedAt = &validatedAt
	report.ValidatedBy = &validatedBy
	return nil
}

func (s *reportRepoStub) RejectByHead(ctx context.Context, id, reason string) error {
	report, ok := s.reports[id]
	if !ok || report.Status != models.MeetingReportStatusSubmitted {
		return sql.ErrNoRows
	}
	report.Status = models.MeetingReportStatusRejected
	report.SupervisorValidated = false
	report.DepartmentHeadValidated = false
	report.RejectionReason = &reason
	return nil
}

func (s *reportRepoStub) AppendNote(ctx context.Context, id, note string) error {
	report, ok := s.reports[id]
	if !ok || report.Status != models.MeetingReportStatusValidated {
		return sql.ErrNoRows
	}
	report.AppendedNotes = &note
	return nil
}

type userDirStub struct {
	users map[string]*models.User
}

func (s userDirStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func submittedReport() *models.MeetingReport {
	return &models.MeetingReport{
		ID:           "rep-1",
		ThemeID:      "th-1",
		StudentID:    "stu-1",
		SupervisorID: "sup-1",
		Status:       models.MeetingReportStatusSubmitted,
	}
}

func reportUsers() userDirStub {
	return userDirStub{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Role: models.RoleStudent, Department: "Informatique", Active: true},
	}}
}

func TestReportServiceSubmitRequiresActiveSupervisor(t *testing.T) {
	themes := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", Status: models.ThemeStatusApproved},
	}}
	svc := NewReportService(&reportRepoStub{}, themes, reportUsers(), resolverStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Submit(context.Background(), dto.SubmitMeetingReportRequest{
		ThemeID:     "th-1",
		MeetingDate: time.Now(),
		Summary:     "Discussion du plan de rédaction du deuxième chapitre.",
	}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestReportServiceSupervisorValidationIsIdempotent(t *testing.T) {
	report := submittedReport()
	report.SupervisorValidated = true
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": report}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	result, err := svc.ValidateBySupervisor(context.Background(), "rep-1", gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	require.NoError(t, err)
	assert.True(t, result.SupervisorValidated)
}

func TestReportServiceHeadValidationRequiresSupervisorFlag(t *testing.T) {
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": submittedReport()}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.ValidateByHead(context.Background(), "rep-1", dto.HeadValidationRequest{
		Decision: models.HeadDecisionValidate,
	}, gate.Actor{ID: "head-1", Role: models.RoleDepartmentHead, Department: "Informatique"})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestReportServiceHeadFromAnotherDepartmentForbidden(t *testing.T) {
	report := submittedReport()
	report.SupervisorValidated = true
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": report}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.ValidateByHead(context.Background(), "rep-1", dto.HeadValidationRequest{
		Decision: models.HeadDecisionValidate,
	}, gate.Actor{ID: "head-2", Role: models.RoleDepartmentHead, Department: "Mathématiques"})

	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestReportServiceHeadValidates(t *testing.T) {
	report := submittedReport()
	report.SupervisorValidated = true
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": report}}
	notifier := &notifierStub{}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, notifier, &auditStub{}, nil, nil, nil)

	result, err := svc.ValidateByHead(context.Background(), "rep-1", dto.HeadValidationRequest{
		Decision: models.HeadDecisionValidate,
	}, gate.Actor{ID: "head-1", Role: models.RoleDepartmentHead, Department: "Informatique"})

	require.NoError(t, err)
	assert.Equal(t, models.MeetingReportStatusValidated, result.Status)
	assert.True(t, result.DepartmentHeadValidated)
	require.Len(t, notifier.sent, 2)
}

// preemptedHeadStore simulates a rival department head committing first: the
// losing write sees zero rows while the row already carries the head flag.
type preemptedHeadStore struct {
	reportRepoStub
}

func (s *preemptedHeadStore) MarkHeadValidated(ctx context.Context, id, validatedBy string, validatedAt time.Time) error {
	if report, ok := s.reports[id]; ok {
		report.DepartmentHeadValidated = true
		report.Status = models.MeetingReportStatusValidated
	}
	return sql.ErrNoRows
}

func TestReportServiceHeadValidationLostRaceReturnsFreshReport(t *testing.T) {
	report := submittedReport()
	report.SupervisorValidated = true
	repo := &preemptedHeadStore{reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": report}}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	result, err := svc.ValidateByHead(context.Background(), "rep-1", dto.HeadValidationRequest{
		Decision: models.HeadDecisionValidate,
	}, gate.Actor{ID: "head-1", Role: models.RoleDepartmentHead, Department: "Informatique"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.DepartmentHeadValidated)
	assert.Equal(t, models.MeetingReportStatusValidated, result.Status)
}

func TestReportServiceHeadRejectionRequiresComments(t *testing.T) {
	report := submittedReport()
	report.SupervisorValidated = true
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": report}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.ValidateByHead(context.Background(), "rep-1", dto.HeadValidationRequest{
		Decision: models.HeadDecisionReject,
	}, gate.Actor{ID: "head-1", Role: models.RoleDepartmentHead, Department: "Informatique"})

	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestReportServiceRejectedReportCanBeResubmitted(t *testing.T) {
	reason := "résumé trop vague"
	report := submittedReport()
	report.Status = models.MeetingReportStatusRejected
	report.RejectionReason = &reason
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": report}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	result, err := svc.Resubmit(context.Background(), "rep-1", gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	require.NoError(t, err)
	assert.Equal(t, models.MeetingReportStatusSubmitted, result.Status)
	assert.False(t, result.SupervisorValidated)
	assert.Nil(t, result.RejectionReason)
}

func TestReportServiceAppendNoteOnlyOnValidatedReports(t *testing.T) {
	repo := &reportRepoStub{reports: map[string]*models.MeetingReport{"rep-1": submittedReport()}}
	svc := NewReportService(repo, &themeRepoStub{}, reportUsers(), resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.AppendNote(context.Background(), "rep-1", dto.AppendReportNoteRequest{Note: "suivi"}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	requireAppError(t, err, appErrors.ErrInvalidTransition.Code)
}
