package models

import "time"

// ActivityCategory groups activities for browsing and recommendations.
type ActivityCategory string

const (
	CategorySports   ActivityCategory = "sports"
	CategoryClub     ActivityCategory = "club"
	CategoryCultural ActivityCategory = "cultural"
	CategoryAcademic ActivityCategory = "academic"
	CategoryOther    ActivityCategory = "other"
)

// DefaultPointsPerAttendance applies when an activity is created without a value.
const DefaultPointsPerAttendance = 10

// Schedule is the recurring slot of an activity.
type Schedule struct {
	DayOfWeek string `db:"schedule_day" json:"dayOfWeek"`
	Time      string `db:"schedule_time" json:"time"`
	Location  string `db:"schedule_location" json:"location"`
}

// Activity is a capacity-bounded extracurricular offering.
type Activity struct {
	ID                  string           `db:"id" json:"id"`
	Name                string           `db:"name" json:"name"`
	Description         string           `db:"description" json:"description"`
	Category            ActivityCategory `db:"category" json:"category"`
	Schedule            `json:"schedule"`
	MaxCapacity         int              `db:"max_capacity" json:"maxCapacity"`
	CurrentEnrollment   int              `db:"current_enrollment" json:"currentEnrollment"`
	PointsPerAttendance int              `db:"points_per_attendance" json:"pointsPerAttendance"`
	CreatedBy           *string          `db:"created_by" json:"createdBy,omitempty"`
	CreatedByName       string           `db:"created_by_name" json:"createdByName,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updatedAt"`
	EnrolledStudents    []StudentSummary `db:"-" json:"enrolledStudents"`
	UpcomingEvents      []string         `db:"-" json:"upcomingEvents,omitempty"`
}

// ScheduleInput is the request shape of Schedule.
type ScheduleInput struct {
	DayOfWeek string `json:"dayOfWeek" validate:"omitempty,max=20"`
	Time      string `json:"time" validate:"omitempty,max=40"`
	Location  string `json:"location" validate:"omitempty,max=200"`
}

// CreateActivityRequest is the payload for creating an activity.
type CreateActivityRequest struct {
	Name                string           `json:"name" validate:"required,max=200"`
	Description         string           `json:"description" validate:"required"`
	Category            ActivityCategory `json:"category" validate:"required,oneof=sports club cultural academic other"`
	Schedule            ScheduleInput    `json:"schedule"`
	MaxCapacity         int              `json:"maxCapacity" validate:"required,gt=0"`
	PointsPerAttendance *int             `json:"pointsPerAttendance" validate:"omitempty,gte=0"`
}

// UpdateActivityRequest is a partial update; nil fields are left untouched.
type UpdateActivityRequest struct {
	Name                *string           `json:"name" validate:"omitempty,min=1,max=200"`
	Description         *string           `json:"description" validate:"omitempty,min=1"`
	Category            *ActivityCategory `json:"category" validate:"omitempty,oneof=sports club cultural academic other"`
	Schedule            *ScheduleInput    `json:"schedule"`
	MaxCapacity         *int              `json:"maxCapacity" validate:"omitempty,gt=0"`
	PointsPerAttendance *int              `json:"pointsPerAttendance" validate:"omitempty,gte=0"`
}
