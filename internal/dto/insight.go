package dto

import "time"

// ActivityAnalyticsResponse aggregates attendance across an activity's events.
type ActivityAnalyticsResponse struct {
	ActivityID         string           `json:"activityId"`
	TotalRegistrations int              `json:"totalRegistrations"`
	TotalEvents        int              `json:"totalEvents"`
	TotalAttendees     int              `json:"totalAttendees"`
	TotalAttendance    int              `json:"totalAttendance"`
	EventDetails       []EventAnalytics `json:"eventDetails"`
}

// EventAnalytics is the per-event row of ActivityAnalyticsResponse.
type EventAnalytics struct {
	EventID         string    `json:"eventId"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	RegisteredCount int       `json:"registeredCount"`
	AttendanceCount int       `json:"attendanceCount"`
	PresentCount    int       `json:"presentCount"`
	AttendanceRate  float64   `json:"attendanceRate"`
}

// LeaderboardEntry is one ranked student.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}
