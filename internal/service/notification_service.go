package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

type notificationRepository interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.Notification, int, error)
	Create(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, filter tenancy.AccessFilter, id, userID string) (bool, error)
	CountUnread(ctx context.Context, filter tenancy.AccessFilter, userID string) (int, error)
}

const jobTypeBroadcast = "notification.broadcast"

// NotificationService delivers per-user notifications. Broadcasts are fanned
// out asynchronously through a worker queue so request paths never block on
// recipient count.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the notification service and its
// dispatch queue. Call Start before enqueuing broadcasts.
func NewNotificationService(repo notificationRepository, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("notifications", s.handleJob, queueCfg)
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Broadcast queues a fan-out delivery. Failures to enqueue are logged, not
// surfaced; notification delivery is best-effort by contract.
func (s *NotificationService) Broadcast(broadcast models.NotificationBroadcast) {
	if len(broadcast.UserIDs) == 0 {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeBroadcast,
		Payload: broadcast,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification broadcast dropped",
			zap.Int64("tenant_id", broadcast.TenantID),
			zap.Int("recipients", len(broadcast.UserIDs)),
			zap.Error(err))
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	broadcast, ok := job.Payload.(models.NotificationBroadcast)
	if !ok {
		s.logger.Error("unexpected broadcast payload", zap.String("job_id", job.ID))
		return nil
	}
	for _, userID := range broadcast.UserIDs {
		notification := &models.Notification{
			TenantID: broadcast.TenantID,
			UserID:   userID,
			Kind:     broadcast.Kind,
			Title:    broadcast.Title,
			Body:     broadcast.Body,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

// List returns the principal's own notifications plus pagination metadata.
// The user filter is forced to the caller; nobody lists someone else's inbox.
func (s *NotificationService) List(ctx context.Context, p tenancy.Principal, q tenancy.ListQuery, f tenancy.Filters) ([]models.Notification, *tenancy.Pagination, error) {
	if f.Strings == nil {
		f.Strings = map[string]string{}
	}
	f.Strings["user_id"] = p.UserID
	clause, err := tenancy.Build(tenancy.ScopeRecord(p), q, s.repo.QueryConfig(), f)
	if err != nil {
		return nil, nil, err
	}
	notifications, total, err := s.repo.List(ctx, clause)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, tenancy.NewPagination(q.Page, q.Limit, total), nil
}

// MarkRead stamps one of the principal's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, p tenancy.Principal, id string) error {
	marked, err := s.repo.MarkRead(ctx, tenancy.ScopeRecord(p), id, p.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification")
	}
	if !marked {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

// UnreadCount returns the principal's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, p tenancy.Principal) (int, error) {
	count, err := s.repo.CountUnread(ctx, tenancy.ScopeRecord(p), p.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}
