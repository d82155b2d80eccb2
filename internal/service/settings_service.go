package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/uh2c-dev/memoire-api/internal/gate"
	"github.com/uh2c-dev/memoire-api/internal/models"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type settingsStore interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value string, updatedBy *string) error
}

// SettingsService serves administrator-tunable configuration. The
// plagiarism threshold read here only applies to checks opened afterwards.
type SettingsService struct {
	repo             settingsStore
	defaultThreshold float64
	audit            auditStore
	logger           *zap.Logger
}

// NewSettingsService constructs the settings service. defaultThreshold is
// the fallback when no row has been stored yet.
func NewSettingsService(repo settingsStore, defaultThreshold float64, audit auditStore, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultThreshold <= 0 || defaultThreshold > 100 {
		defaultThreshold = 20
	}
	return &SettingsService{repo: repo, defaultThreshold: defaultThreshold, audit: audit, logger: logger}
}

// PlagiarismThreshold returns the similarity threshold in force right now.
func (s *SettingsService) PlagiarismThreshold(ctx context.Context) (float64, error) {
	setting, err := s.repo.Get(ctx, models.SettingKeyPlagiarismThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaultThreshold, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load threshold")
	}
	value, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil || value <= 0 || value > 100 {
		s.logger.Sugar().Warnw("stored threshold is invalid, using default", "value", setting.Value)
		return s.defaultThreshold, nil
	}
	return value, nil
}

// UpdatePlagiarismThreshold stores a new threshold. Checks already opened
// keep the value they froze at creation.
func (s *SettingsService) UpdatePlagiarismThreshold(ctx context.Context, value float64, actor gate.Actor) error {
	if !actor.Role.IsAdmin() {
		return appErrors.ErrForbidden
	}
	if value <= 0 || value > 100 {
		return appErrors.Clone(appErrors.ErrValidation, "threshold must be between 0 and 100")
	}
	updatedBy := actor.ID
	if err := s.repo.Upsert(ctx, models.SettingKeyPlagiarismThreshold, strconv.FormatFloat(value, 'f', -1, 64), &updatedBy); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update threshold")
	}
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSettingsUpdate, "setting", models.SettingKeyPlagiarismThreshold)
	return nil
}
