package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uh2c-dev/memoire-api/internal/models"
)

// recordAudit appends one audit trail row. Failures are logged and swallowed:
// the audit trail never blocks a workflow mutation.
func recordAudit(ctx context.Context, store auditStore, logger *zap.Logger, userID, action, resource, resourceID string) {
	if store == nil {
		return
	}
	log := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.CreateAuditLog(ctx, log); err != nil {
		logger.Sugar().Warnw("audit write failed", "action", action, "resource", resource, "error", err)
	}
}
