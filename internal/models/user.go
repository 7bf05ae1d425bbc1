package models

import "time"

// UserRole represents the available roles for capability checks.
type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleAdmin       UserRole = "admin"
	RoleCoordinator UserRole = "coordinator"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleCoordinator:
		return true
	}
	return false
}

// Elevated reports whether the role needs approval before it can sign in.
func (r UserRole) Elevated() bool {
	return r == RoleAdmin || r == RoleCoordinator
}

// RoleStatus tracks approval of a requested role.
type RoleStatus string

const (
	RoleStatusApproved RoleStatus = "approved"
	RoleStatusPending  RoleStatus = "pending"
	RoleStatusRejected RoleStatus = "rejected"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	RoleStatus   RoleStatus `db:"role_status" json:"roleStatus"`
	Points       int        `db:"points" json:"points"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// StudentSummary is the public identity of a student embedded in other views.
type StudentSummary struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// AttendanceRecord is one immutable ledger line in a user's attendance history.
// The event and activity details are nil once the event has been deleted.
type AttendanceRecord struct {
	EventID      string     `db:"event_id" json:"eventId"`
	ActivityID   string     `db:"activity_id" json:"activityId"`
	EarnedAt     time.Time  `db:"earned_at" json:"earnedAt"`
	PointsEarned int        `db:"points_earned" json:"pointsEarned"`
	EventTitle   *string    `db:"event_title" json:"eventTitle,omitempty"`
	EventDate    *time.Time `db:"event_date" json:"eventDate,omitempty"`
	ActivityName *string    `db:"activity_name" json:"activityName,omitempty"`
}

// UserProfile is the user view including enrolled activities and history.
type UserProfile struct {
	User
	EnrolledActivities []Activity         `json:"enrolledActivities"`
	AttendanceHistory  []AttendanceRecord `json:"attendanceHistory"`
}
