package models

import "time"

// AttendanceStatus is the outcome recorded for a student at an event.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid reports whether s is a recognised status.
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// AttendanceEntry is the single attendance row of a student for an event.
type AttendanceEntry struct {
	EventID       string           `db:"event_id" json:"-"`
	StudentID     string           `db:"student_id" json:"studentId"`
	Student       *StudentSummary  `db:"-" json:"student,omitempty"`
	Status        AttendanceStatus `db:"status" json:"status"`
	PointsAwarded int              `db:"points_awarded" json:"pointsAwarded"`
	MarkedBy      *string          `db:"marked_by" json:"markedBy,omitempty"`
	MarkedAt      time.Time        `db:"marked_at" json:"markedAt"`
}

// MarkAttendanceRequest is the payload for marking attendance.
type MarkAttendanceRequest struct {
	StudentID string           `json:"studentId" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"omitempty,oneof=present absent"`
}

// MarkAttendance is the ledger command derived from a request.
type MarkAttendance struct {
	EventID    string
	ActivityID string
	StudentID  string
	Status     AttendanceStatus
	Points     int
	MarkedBy   *string
	MarkedAt   time.Time
}

// MarkAttendanceResponse acknowledges a mark and returns the refreshed event.
type MarkAttendanceResponse struct {
	Message string `json:"message"`
	Event   *Event `json:"event"`
}
