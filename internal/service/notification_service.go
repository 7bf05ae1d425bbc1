package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ekskul-api/internal/models"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
	"github.com/noah-isme/ekskul-api/pkg/jobs"
)

const notificationJobType = "notification.dispatch"

type notificationRepository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (*models.Notification, error)
}

type enrollmentReader interface {
	StudentIDs(ctx context.Context, activityID string) ([]string, error)
}

// notice is one fan-out request. Either UserID or ActivityID selects the recipients.
type notice struct {
	UserID     string
	ActivityID string
	Type       models.NotificationType
	Title      string
	Message    string
}

// NotificationService serves the inbox and fans out notifications. Fan-out runs
// on a background queue once StartDispatcher is called and inline before that.
type NotificationService struct {
	repo        notificationRepository
	enrollments enrollmentReader
	metrics     *MetricsService
	logger      *zap.Logger
	queue       *jobs.Queue
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(repo notificationRepository, enrollments enrollmentReader, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, enrollments: enrollments, metrics: metrics, logger: logger}
}

// StartDispatcher moves fan-out onto a worker queue.
func (s *NotificationService) StartDispatcher(ctx context.Context, cfg jobs.QueueConfig) {
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	s.queue = jobs.NewQueue("notifications", s.handleJob, cfg)
	s.queue.Start(ctx)
}

// Stop drains the dispatcher queue.
func (s *NotificationService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// List returns the caller's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return notification, nil
}

// NotifyActivityMembers sends a notification to every student enrolled in the activity.
func (s *NotificationService) NotifyActivityMembers(ctx context.Context, activityID string, kind models.NotificationType, title, message string) {
	s.dispatch(ctx, notice{ActivityID: activityID, Type: kind, Title: title, Message: message})
}

// NotifyUser sends a notification to one user, optionally linked to an activity.
func (s *NotificationService) NotifyUser(ctx context.Context, userID, activityID string, kind models.NotificationType, title, message string) {
	s.dispatch(ctx, notice{UserID: userID, ActivityID: activityID, Type: kind, Title: title, Message: message})
}

func (s *NotificationService) dispatch(ctx context.Context, n notice) {
	if s == nil {
		return
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: n})
		if err == nil {
			return
		}
		s.logger.Warn("notification enqueue failed, delivering inline", zap.Error(err))
	}
	// the request context may be cancelled once the response is written
	if err := s.deliver(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Warn("notification delivery failed", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(notice)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.deliver(ctx, n)
}

func (s *NotificationService) deliver(ctx context.Context, n notice) error {
	recipients := []string{n.UserID}
	if n.UserID == "" {
		ids, err := s.enrollments.StudentIDs(ctx, n.ActivityID)
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
		recipients = ids
	}
	if len(recipients) == 0 {
		return nil
	}

	var related *string
	if n.ActivityID != "" {
		activityID := n.ActivityID
		related = &activityID
	}
	batch := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		batch = append(batch, models.Notification{
			UserID:            userID,
			Title:             n.Title,
			Message:           n.Message,
			Type:              n.Type,
			RelatedActivityID: related,
		})
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return err
	}
	s.metrics.RecordNotifications(string(n.Type), len(batch))
	return nil
}
