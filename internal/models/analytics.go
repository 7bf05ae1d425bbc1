package models

import "time"

// EventAttendanceStats is the per-event aggregate row behind activity analytics.
type EventAttendanceStats struct {
	EventID         string    `db:"event_id"`
	Title           string    `db:"title"`
	Date            time.Time `db:"event_date"`
	RegisteredCount int       `db:"registered_count"`
	AttendanceCount int       `db:"attendance_count"`
	PresentCount    int       `db:"present_count"`
}
