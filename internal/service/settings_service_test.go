package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uh2c-dev/memoire-api/internal/gate"
	"github.com/uh2c-dev/memoire-api/internal/models"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type settingsRepoStub struct {
	values map[string]string
}

func (s *settingsRepoStub) Get(ctx context.Context, key string) (*models.Setting, error) {
	value, ok := s.values[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.Setting{Key: key, Value: value}, nil
}

func (s *settingsRepoStub) Upsert(ctx context.Context, key, value string, updatedBy *string) error {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

func TestSettingsServiceThresholdFallsBackToDefault(t *testing.T) {
	svc := NewSettingsService(&settingsRepoStub{}, 20, nil, nil)

	threshold, err := svc.PlagiarismThreshold(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20.0, threshold)
}

func TestSettingsServiceThresholdReadsStoredValue(t *testing.T) {
	repo := &settingsRepoStub{values: map[string]string{models.SettingKeyPlagiarismThreshold: "32.5"}}
	svc := NewSettingsService(repo, 20, nil, nil)

	threshold, err := svc.PlagiarismThreshold(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 32.5, threshold)
}

func TestSettingsServiceInvalidStoredValueUsesDefault(t *testing.T) {
	repo := &settingsRepoStub{values: map[string]string{models.SettingKeyPlagiarismThreshold: "beaucoup"}}
	svc := NewSettingsService(repo, 20, nil, nil)

	threshold, err := svc.PlagiarismThreshold(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20.0, threshold)
}

func TestSettingsServiceUpdateAdminOnly(t *testing.T) {
	repo := &settingsRepoStub{}
	svc := NewSettingsService(repo, 20, &auditStub{}, nil)

	err := svc.UpdatePlagiarismThreshold(context.Background(), 25, gate.Actor{ID: "sup-1", Role: models.RoleSupervisor})
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	err = svc.UpdatePlagiarismThreshold(context.Background(), 25, gate.Actor{ID: "adm-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "25", repo.values[models.SettingKeyPlagiarismThreshold])
}

func TestSettingsServiceUpdateRejectsOutOfRange(t *testing.T) {
	svc := NewSettingsService(&settingsRepoStub{}, 20, nil, nil)

	err := svc.UpdatePlagiarismThreshold(context.Background(), 150, gate.Actor{ID: "adm-1", Role: models.RoleAdmin})

	requireAppError(t, err, appErrors.ErrValidation.Code)
}
