package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ekskul-api/internal/models"
)

// NotificationRepository persists user inbox entries.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts the notifications in a single statement.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range notifications {
		if notifications[i].ID == "" {
			notifications[i].ID = uuid.NewString()
		}
		if notifications[i].CreatedAt.IsZero() {
			notifications[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO notifications (id, user_id, title, message, type, related_activity_id, is_read, created_at)
VALUES (:id, :user_id, :title, :message, :type, :related_activity_id, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notifications); err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	const query = `SELECT id, user_id, title, message, type, related_activity_id, is_read, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification owned by userID as read. It returns
// sql.ErrNoRows when the id does not exist or belongs to someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
RETURNING id, user_id, title, message, type, related_activity_id, is_read, created_at`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id, userID); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &notification, nil
}
