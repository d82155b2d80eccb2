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
	"github.com/uh2c-dev/memoire-api/pkg/export"
)

type juryRepoStub struct {
	decisions map[string]*models.JuryDecision
}

func (s *juryRepoStub) Create(ctx context.Context, decision *models.JuryDecision) error {
	if s.decisions == nil {
		s.decisions = make(map[string]*models.JuryDecision)
	}
	copied := *decision
	s.decisions[decision.ID] = &copied
	return nil
}

func (s *juryRepoStub) GetByID(ctx context.Context, id string) (*models.JuryDecision, error) {
	decision, ok := s.decisions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *decision
	return &copied, nil
}

func (s *juryRepoStub) GetByTheme(ctx context.Context, themeID string) (*models.JuryDecision, error) {
	for _, decision := range s.decisions {
		if decision.ThemeID == themeID {
			copied := *decision
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *juryRepoStub) MarkCorrectionsCompleted(ctx context.Context, id string) error {
	decision, ok := s.decisions[id]
	if !ok || decision.CorrectionsCompleted {
		return sql.ErrNoRows
	}
	decision.CorrectionsCompleted = true
	return nil
}

func (s *juryRepoStub) ValidateCorrections(ctx context.Context, id, validatorID string, validatedAt time.Time) error {
	decision, ok := s.decisions[id]
	if !ok || !decision.CorrectionsCompleted || decision.CorrectionsValidatedAt != nil {
		return sql.ErrNoRows
	}
	decision.CorrectionsValidatedAt = &validatedAt
	decision.CorrectionsValidatedBy = &validatorID
	return nil
}

func (s *juryRepoStub) SetMinutesFile(ctx context.Context, id, filename string) error {
	decision, ok := s.decisions[id]
	if !ok {
		return sql.ErrNoRows
	}
	decision.MinutesFile = &filename
	return nil
}

type rendererStub struct {
	rendered int
}

func (s *rendererStub) Render(m export.DefenseMinutes) ([]byte, error) {
	s.rendered++
	return []byte("%PDF-1.4"), nil
}

type storageStub struct {
	saved map[string][]byte
}

func (s *storageStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[filename] = data
	return filename, nil
}

type signerStub struct{}

func (signerStub) Generate(resourceID, relPath string) (string, time.Time, error) {
	return "signed-" + resourceID, time.Now().Add(time.Hour), nil
}

func finalStageFixture() (*themeRepoStub, *documentRepoStub, *plagiarismRepoStub) {
	supervisor := "sup-1"
	themes := &themeRepoStub{themes: map[string]*models.Theme{
		"th-1": {ID: "th-1", StudentID: "stu-1", SupervisorID: &supervisor, Title: "Sujet final", Status: models.ThemeStatusApproved},
	}}
	score := 8.0
	docs := &documentRepoStub{docs: map[string]*models.Document{
		"doc-1": {ID: "doc-1", ThemeID: "th-1", StudentID: "stu-1", DocumentType: models.DocumentTypeFinal, Version: 2, Status: models.DocumentStatusApproved},
	}}
	checks := &plagiarismRepoStub{checks: map[string]*models.PlagiarismCheck{
		"chk-1": {ID: "chk-1", DocumentID: "doc-1", Status: models.PlagiarismStatusPassed, ThresholdUsed: 20, Score: &score},
	}}
	return themes, docs, checks
}

func juryUsers() userDirStub {
	return userDirStub{users: map[string]*models.User{
		"stu-1":  {ID: "stu-1", FullName: "Aissata Diallo", Role: models.RoleStudent, Active: true},
		"sup-1":  {ID: "sup-1", FullName: "Pr. Kourouma", Role: models.RoleSupervisor, Active: true},
		"jury-1": {ID: "jury-1", FullName: "Pr. Camara", Role: models.RoleJury, Active: true},
	}}
}

func TestJuryServiceRecordDecisionLocksThemeAndRendersMinutes(t *testing.T) {
	themes, docs, checks := finalStageFixture()
	repo := &juryRepoStub{}
	renderer := &rendererStub{}
	storage := &storageStub{}
	notifier := &notifierStub{}
	svc := NewJuryService(repo, themes, docs, checks, juryUsers(), renderer, storage, signerStub{}, notifier, &auditStub{}, nil, nil, nil)

	decision, err := svc.RecordDecision(context.Background(), dto.RecordJuryDecisionRequest{
		ThemeID: "th-1",
		Verdict: models.JuryVerdictAccepted,
	}, gate.Actor{ID: "jury-1", Role: models.RoleJury})

	require.NoError(t, err)
	assert.Equal(t, models.JuryVerdictAccepted, decision.Verdict)
	assert.Equal(t, models.ThemeStatusLocked, themes.themes["th-1"].Status)
	assert.Equal(t, 1, renderer.rendered)
	require.NotNil(t, decision.MinutesFile)
	assert.Contains(t, storage.saved, *decision.MinutesFile)
	require.Len(t, notifier.sent, 2)
}

func TestJuryServiceRecordDecisionRequiresFinalStage(t *testing.T) {
	themes, docs, checks := finalStageFixture()
	docs.docs["doc-1"].Status = models.DocumentStatusUnderReview
	svc := NewJuryService(&juryRepoStub{}, themes, docs, checks, juryUsers(), nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := svc.RecordDecision(context.Background(), dto.RecordJuryDecisionRequest{
		ThemeID: "th-1",
		Verdict: models.JuryVerdictAccepted,
	}, gate.Actor{ID: "jury-1", Role: models.RoleJury})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestJuryServiceSecondDecisionConflicts(t *testing.T) {
	themes, docs, checks := finalStageFixture()
	repo := &juryRepoStub{decisions: map[string]*models.JuryDecision{
		"dec-1": {ID: "dec-1", ThemeID: "th-1", StudentID: "stu-1", Verdict: models.JuryVerdictAccepted},
	}}
	svc := NewJuryService(repo, themes, docs, checks, juryUsers(), nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := svc.RecordDecision(context.Background(), dto.RecordJuryDecisionRequest{
		ThemeID: "th-1",
		Verdict: models.JuryVerdictRejected,
	}, gate.Actor{ID: "jury-1", Role: models.RoleJury})

	requireAppError(t, err, appErrors.ErrConflictingUpdate.Code)
}

func TestJuryServiceCorrectionsVerdictRequiresText(t *testing.T) {
	themes, docs, checks := finalStageFixture()
	svc := NewJuryService(&juryRepoStub{}, themes, docs, checks, juryUsers(), nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := svc.RecordDecision(context.Background(), dto.RecordJuryDecisionRequest{
		ThemeID: "th-1",
		Verdict: models.JuryVerdictAcceptedWithCorrections,
	}, gate.Actor{ID: "jury-1", Role: models.RoleJury})

	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestJuryServiceValidateCorrectionsRequiresCompletion(t *testing.T) {
	corrections := "revoir la bibliographie"
	repo := &juryRepoStub{decisions: map[string]*models.JuryDecision{
		"dec-1": {ID: "dec-1", ThemeID: "th-1", StudentID: "stu-1", Verdict: models.JuryVerdictAcceptedWithCorrections, RequiredCorrections: &corrections},
	}}
	svc := NewJuryService(repo, &themeRepoStub{}, &documentRepoStub{}, &plagiarismRepoStub{}, juryUsers(), nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := svc.ValidateCorrections(context.Background(), "dec-1", gate.Actor{ID: "jury-1", Role: models.RoleJury})

	requireAppError(t, err, appErrors.ErrPreconditionNotMet.Code)
}

func TestJuryServiceValidateCompletedCorrections(t *testing.T) {
	corrections := "revoir la bibliographie"
	repo := &juryRepoStub{decisions: map[string]*models.JuryDecision{
		"dec-1": {ID: "dec-1", ThemeID: "th-1", StudentID: "stu-1", Verdict: models.JuryVerdictAcceptedWithCorrections, RequiredCorrections: &corrections, CorrectionsCompleted: true},
	}}
	notifier := &notifierStub{}
	svc := NewJuryService(repo, &themeRepoStub{}, &documentRepoStub{}, &plagiarismRepoStub{}, juryUsers(), nil, nil, nil, notifier, &auditStub{}, nil, nil, nil)

	decision, err := svc.ValidateCorrections(context.Background(), "dec-1", gate.Actor{ID: "jury-1", Role: models.RoleJury})

	require.NoError(t, err)
	require.NotNil(t, decision.CorrectionsValidatedAt)
	require.NotNil(t, decision.CorrectionsValidatedBy)
	assert.Equal(t, "jury-1", *decision.CorrectionsValidatedBy)
	require.Len(t, notifier.sent, 1)
}

func TestJuryServiceMinutesURLForStudent(t *testing.T) {
	minutes := "pv-dec-1.pdf"
	repo := &juryRepoStub{decisions: map[string]*models.JuryDecision{
		"dec-1": {ID: "dec-1", ThemeID: "th-1", StudentID: "stu-1", Verdict: models.JuryVerdictAccepted, MinutesFile: &minutes},
	}}
	svc := NewJuryService(repo, &themeRepoStub{}, &documentRepoStub{}, &plagiarismRepoStub{}, juryUsers(), nil, nil, signerStub{}, nil, nil, nil, nil, nil)

	token, expiresAt, err := svc.MinutesDownloadURL(context.Background(), "dec-1", gate.Actor{ID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "signed-dec-1", token)
	assert.True(t, expiresAt.After(time.Now()))

	_, _, err = svc.MinutesDownloadURL(context.Background(), "dec-1", gate.Actor{ID: "stu-2", Role: models.RoleStudent})
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}
