package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uh2c-dev/memoire-api/internal/models"
	"github.com/uh2c-dev/memoire-api/pkg/jobs"
)

// Notifier dispatches inbox notifications after an accepted transition.
// Implementations are best-effort: delivery failure never fails the
// transition that produced the notification.
type Notifier interface {
	Notify(n models.Notification)
}

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Dispatcher persists notifications through a background worker queue.
// Enqueueing happens only after the workflow mutation committed, so a
// crashed worker can lose a notification but never a state change.
type Dispatcher struct {
	store   notificationStore
	queue   *jobs.Queue
	logger  *zap.Logger
	metrics *MetricsService
}

// NewDispatcher builds the dispatcher and its queue. Call Start before use.
func NewDispatcher(store notificationStore, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{store: store, logger: logger, metrics: metrics}
	cfg.Logger = logger
	cfg.OnDrop = func(jobs.Job) {
		metrics.RecordNotificationDropped()
	}
	d.queue = jobs.NewQueue("notifications", d.handle, cfg)
	return d
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Notify enqueues one notification. Errors are logged, never returned.
func (d *Dispatcher) Notify(n models.Notification) {
	if n.RecipientID == "" {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Severity == "" {
		n.Severity = models.NotificationSeverityInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := d.queue.Enqueue(jobs.Job{ID: n.ID, Type: "notification", Payload: n})
	if err != nil {
		d.metrics.RecordNotificationDropped()
		d.logger.Sugar().Warnw("notification dropped at enqueue", "recipient", n.RecipientID, "title", n.Title, "error", err)
	}
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.store.Create(ctx, &n)
}
