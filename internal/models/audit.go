package models

import "time"

// Audit actions recorded for mutating endpoints.
const (
	AuditActionActivityCreate   = "ACTIVITY_CREATE"
	AuditActionActivityUpdate   = "ACTIVITY_UPDATE"
	AuditActionActivityDelete   = "ACTIVITY_DELETE"
	AuditActionActivityRegister = "ACTIVITY_REGISTER"
	AuditActionActivityLeave    = "ACTIVITY_UNREGISTER"
	AuditActionEventCreate      = "EVENT_CREATE"
	AuditActionAttendanceMark   = "ATTENDANCE_MARK"
	AuditActionUserCreate       = "USER_CREATE"
	AuditActionUserRoleStatus   = "USER_ROLE_STATUS"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	Payload    string    `db:"payload" json:"payload,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
