package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/uh2c-dev/memoire-api/internal/models"
	appErrors "github.com/uh2c-dev/memoire-api/pkg/errors"
)

type notificationInboxStore interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

// NotificationService serves the per-user inbox. Every query is scoped to
// the acting user; no role sees another user's inbox.
type NotificationService struct {
	repo   notificationInboxStore
	logger *zap.Logger
}

// NewNotificationService constructs the inbox service.
func NewNotificationService(repo notificationInboxStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actorID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	notifications, err := s.repo.List(ctx, models.NotificationFilter{
		RecipientID: actorID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, actorID string) error {
	if err := s.repo.MarkRead(ctx, notificationID, actorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification")
	}
	return nil
}

// MarkAllRead flags every unread notification of the actor as read and
// returns how many were touched.
func (s *NotificationService) MarkAllRead(ctx context.Context, actorID string) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, actorID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications")
	}
	return count, nil
}
