package models

import "time"

// NotificationType classifies inbox entries.
type NotificationType string

const (
	NotificationEvent        NotificationType = "event"
	NotificationRegistration NotificationType = "registration"
	NotificationUpdate       NotificationType = "update"
)

// Notification is a per-user inbox message.
type Notification struct {
	ID                string           `db:"id" json:"id"`
	UserID            string           `db:"user_id" json:"userId"`
	Title             string           `db:"title" json:"title"`
	Message           string           `db:"message" json:"message"`
	Type              NotificationType `db:"type" json:"type"`
	RelatedActivityID *string          `db:"related_activity_id" json:"relatedActivity,omitempty"`
	IsRead            bool             `db:"is_read" json:"isRead"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}
