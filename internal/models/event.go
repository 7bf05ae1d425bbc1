package models

import "time"

// DefaultPointsPerEvent applies when neither the event nor its activity sets a value.
const DefaultPointsPerEvent = 10

// Event is a dated occurrence of an activity.
type Event struct {
	ID             string            `db:"id" json:"id"`
	ActivityID     string            `db:"activity_id" json:"activityId"`
	Title          string            `db:"title" json:"title"`
	Description    string            `db:"description" json:"description"`
	Date           time.Time         `db:"event_date" json:"date"`
	Time           string            `db:"event_time" json:"time"`
	Location       string            `db:"location" json:"location"`
	Capacity       *int              `db:"capacity" json:"capacity,omitempty"`
	PointsPerEvent int               `db:"points_per_event" json:"pointsPerEvent"`
	QRCode         *string           `db:"qr_token" json:"qrCode,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	Attendees      []StudentSummary  `db:"-" json:"attendees"`
	Attendance     []AttendanceEntry `db:"-" json:"attendance"`
}

// CreateEventRequest is the payload for scheduling an event.
type CreateEventRequest struct {
	ActivityID     string    `json:"activityId" validate:"required"`
	Title          string    `json:"title" validate:"required,max=200"`
	Description    string    `json:"description"`
	Date           time.Time `json:"date" validate:"required"`
	Time           string    `json:"time" validate:"required,max=40"`
	Location       string    `json:"location" validate:"required,max=200"`
	Capacity       *int      `json:"capacity" validate:"omitempty,gt=0"`
	PointsPerEvent *int      `json:"pointsPerEvent" validate:"omitempty,gte=0"`
}
