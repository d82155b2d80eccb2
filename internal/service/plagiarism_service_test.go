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

type plagiarismRepoStub struct {
	checks map[string]*models.PlagiarismCheck
}

func (s *plagiarismRepoStub) Create(ctx context.Context, check *models.PlagiarismCheck) error {
	if s.checks == nil {
		s.checks = make(map[string]*models.PlagiarismCheck)
	}
	copied := *check
	s.checks[check.ID] = &copied
	return nil
}

func (s *plagiarismRepoStub) GetByID(ctx context.Context, id string) (*models.PlagiarismCheck, error) {
	check, ok := s.checks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *check
	return &copied, nil
}

func (s *plagiarismRepoStub) List(ctx context.Context, filter models.PlagiarismFilter) ([]models.PlagiarismCheck, error) {
	result := []models.PlagiarismCheck{}
	for _, check := range s.checks {
		if filter.DocumentID != "" && check.DocumentID != filter.DocumentID {
			continue
		}
		if len(filter.Status) > 0 {
			matched := false
			for _, status := range filter.Status {
				if check.Status == status {
					matched = true
				}
			}
			if !matched {
				continue
			}
		}
		result = append(result, *check)
	}
	return result, nil
}

func (s *plagiarismRepoStub) RecordResult(ctx context.Context, id string, score float64, sourcesFound int, details *string, scoredAt time.Time) error {
	check, ok := s.checks[id]
	if !ok || check.Status.Terminal() {
		return sql.ErrNoRows
	}
	check.Status = models.PlagiarismStatusInProgress
	check.Score = &score
	check.SourcesFound = &sourcesFound
	check.Details = details
	check.ScoredAt = &scoredAt
	return nil
}

func (s *plagiarismRepoStub) Finalize(ctx context.Context, id string) error {
	check, ok := s.checks[id]
	if !ok || check.Status != models.PlagiarismStatusInProgress || check.Score == nil {
		return sql.ErrNoRows
	}
	if *check.Score < check.ThresholdUsed {
		check.Status = models.PlagiarismStatusPassed
	} else {
		check.Status = models.PlagiarismStatusFailed
	}
	return nil
}

type thresholdStub struct {
	value float64
}

func (s thresholdStub) PlagiarismThreshold(ctx context.Context) (float64, error) {
	return s.value, nil
}

func eligibleDocument() *documentRepoStub {
	return &documentRepoStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", ThemeID: "th-1", StudentID: "stu-1", DocumentType: models.DocumentTypeFinal, Version: 1, Status: models.DocumentStatusApproved},
	}}
}

func TestPlagiarismServiceRequestFreezesThreshold(t *testing.T) {
	repo := &plagiarismRepoStub{}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{value: 25}, resolverStub{supervisorID: "sup-1"}, nil, &auditStub{}, nil, nil, nil)

	check, err := svc.Request(context.Background(), dto.RequestPlagiarismCheckRequest{DocumentID: "doc-1"}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	require.NoError(t, err)
	assert.Equal(t, models.PlagiarismStatusPending, check.Status)
	assert.Equal(t, 25.0, check.ThresholdUsed)
	assert.Equal(t, "sup-1", check.RequestedBy)
}

func TestPlagiarismServiceRequestRejectsIneligibleDocument(t *testing.T) {
	docs := &documentRepoStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", ThemeID: "th-1", StudentID: "stu-1", Status: models.DocumentStatusRejected},
	}}
	svc := NewPlagiarismService(&plagiarismRepoStub{}, docs, thresholdStub{value: 25}, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.Request(context.Background(), dto.RequestPlagiarismCheckRequest{DocumentID: "doc-1"}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestPlagiarismServiceRequestRejectsSecondOpenCheck(t *testing.T) {
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-0": {ID: "chk-0", DocumentID: "doc-1", Status: models.PlagiarismStatusPending},
	}}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{value: 25}, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.Request(context.Background(), dto.RequestPlagiarismCheckRequest{DocumentID: "doc-1"}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestPlagiarismServiceStudentsCannotRequestChecks(t *testing.T) {
	svc := NewPlagiarismService(&plagiarismRepoStub{}, eligibleDocument(), thresholdStub{value: 25}, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.Request(context.Background(), dto.RequestPlagiarismCheckRequest{DocumentID: "doc-1"}, gate.Actor{ID: "stu-1", Role: models.RoleStudent})

	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestPlagiarismServiceRecordResultAdminOnly(t *testing.T) {
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", StudentID: "stu-1", Status: models.PlagiarismStatusPending, ThresholdUsed: 20},
	}}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{value: 20}, resolverStub{supervisorID: "sup-1"}, nil, nil, nil, nil, nil)

	_, err := svc.RecordResult(context.Background(), "chk-1", dto.RecordPlagiarismResultRequest{Score: 12}, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	check, err := svc.RecordResult(context.Background(), "chk-1", dto.RecordPlagiarismResultRequest{Score: 12, SourcesFound: 3}, gate.Actor{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.PlagiarismStatusInProgress, check.Status)
	require.NotNil(t, check.Score)
	assert.Equal(t, 12.0, *check.Score)
}

func TestPlagiarismServiceFinalizeUsesFrozenThreshold(t *testing.T) {
	score := 19.5
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", StudentID: "stu-1", Status: models.PlagiarismStatusInProgress, ThresholdUsed: 20, Score: &score},
	}}
	notifier := &notifierStub{}
	// Raising the global threshold later must not change this check.
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{value: 10}, resolverStub{}, notifier, &auditStub{}, nil, nil, nil)

	check, err := svc.Finalize(context.Background(), "chk-1", gate.Actor{ID: "adm-1", Role: models.RoleAdmin})

	require.NoError(t, err)
	assert.Equal(t, models.PlagiarismStatusPassed, check.Status)
	require.NotEmpty(t, notifier.sent)
}

func TestPlagiarismServiceActiveSupervisorCanFinalize(t *testing.T) {
	score := 12.0
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", StudentID: "stu-1", Status: models.PlagiarismStatusInProgress, ThresholdUsed: 20, Score: &score},
	}}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{}, resolverStub{supervisorID: "sup-1"}, nil, &auditStub{}, nil, nil, nil)

	check, err := svc.Finalize(context.Background(), "chk-1", gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})

	require.NoError(t, err)
	assert.Equal(t, models.PlagiarismStatusPassed, check.Status)

	_, err = svc.Finalize(context.Background(), "chk-1", gate.Actor{ID: "sup-2", Role: models.RoleSupervisor})
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestPlagiarismServiceFinalizeFailsScoreAtThreshold(t *testing.T) {
	score := 20.0
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", StudentID: "stu-1", Status: models.PlagiarismStatusInProgress, ThresholdUsed: 20, Score: &score},
	}}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{}, resolverStub{}, nil, nil, nil, nil, nil)

	check, err := svc.Finalize(context.Background(), "chk-1", gate.Actor{ID: "adm-1", Role: models.RoleAdmin})

	require.NoError(t, err)
	assert.Equal(t, models.PlagiarismStatusFailed, check.Status)
}

// rescoringPlagiarismStore lands a second result right after the service's
// snapshot read, like a concurrent RecordResult would.
type rescoringPlagiarismStore struct {
	plagiarismRepoStub
	newScore float64
	rescored bool
}

func (s *rescoringPlagiarismStore) GetByID(ctx context.Context, id string) (*models.PlagiarismCheck, error) {
	check, err := s.plagiarismRepoStub.GetByID(ctx, id)
	if err == nil && !s.rescored {
		s.rescored = true
		s.checks[id].Score = &s.newScore
	}
	return check, err
}

func TestPlagiarismServiceFinalizeVerdictMatchesFinalScore(t *testing.T) {
	score := 10.0
	repo := &rescoringPlagiarismStore{
		plagiarismRepoStub: plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
			"chk-1": {ID: "chk-1", DocumentID: "doc-1", StudentID: "stu-1", Status: models.PlagiarismStatusInProgress, ThresholdUsed: 20, Score: &score},
		}},
		newScore: 90,
	}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{}, resolverStub{}, nil, nil, nil, nil, nil)

	check, err := svc.Finalize(context.Background(), "chk-1", gate.Actor{ID: "adm-1", Role: models.RoleAdmin})

	require.NoError(t, err)
	assert.Equal(t, models.PlagiarismStatusFailed, check.Status)
	require.NotNil(t, check.Score)
	assert.Equal(t, 90.0, *check.Score)
	assert.False(t, check.Passed())
}

func TestPlagiarismServiceFinalizeWithoutScoreRejected(t *testing.T) {
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", Status: models.PlagiarismStatusPending, ThresholdUsed: 20},
	}}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{}, resolverStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Finalize(context.Background(), "chk-1", gate.Actor{ID: "adm-1", Role: models.RoleAdmin})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestPlagiarismServiceTerminalCheckIsFrozen(t *testing.T) {
	score := 35.0
	repo := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", Status: models.PlagiarismStatusFailed, ThresholdUsed: 20, Score: &score},
	}}
	svc := NewPlagiarismService(repo, eligibleDocument(), thresholdStub{}, resolverStub{}, nil, nil, nil, nil, nil)

	_, err := svc.RecordResult(context.Background(), "chk-1", dto.RecordPlagiarismResultRequest{Score: 5}, gate.Actor{ID: "adm-1", Role: models.RoleAdmin})

	requireAppError(t, err, appErrors.ErrInvalidTransition.Code)
}
