package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/ekskul-api/internal/dto"
	"github.com/noah-isme/ekskul-api/internal/models"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

const (
	recommendationLimit = 5
	leaderboardLimit    = 10
)

type recommendationSource interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	Recommend(ctx context.Context, studentID string, limit int) ([]models.Activity, error)
}

type eventStatsReader interface {
	StatsByActivity(ctx context.Context, activityID string) ([]models.EventAttendanceStats, error)
}

type rankingReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	TopStudents(ctx context.Context, limit int) ([]models.User, error)
}

// InsightService derives read-only views from the catalog and the ledger.
type InsightService struct {
	activities recommendationSource
	stats      eventStatsReader
	users      rankingReader
	logger     *zap.Logger
}

// NewInsightService constructs InsightService.
func NewInsightService(activities recommendationSource, stats eventStatsReader, users rankingReader, logger *zap.Logger) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightService{activities: activities, stats: stats, users: users, logger: logger}
}

// Recommendations suggests up to five activities in categories the user already joined.
func (s *InsightService) Recommendations(ctx context.Context, userID string) ([]models.Activity, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	activities, err := s.activities.Recommend(ctx, userID, recommendationLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build recommendations")
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return activities, nil
}

// Analytics summarises registration and attendance per event of an activity.
func (s *InsightService) Analytics(ctx context.Context, activityID string) (*dto.ActivityAnalyticsResponse, error) {
	activity, err := s.activities.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	rows, err := s.stats.StatsByActivity(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}

	resp := &dto.ActivityAnalyticsResponse{
		ActivityID:         activity.ID,
		TotalRegistrations: activity.CurrentEnrollment,
		TotalEvents:        len(rows),
		EventDetails:       make([]dto.EventAnalytics, 0, len(rows)),
	}
	for _, row := range rows {
		resp.TotalAttendees += row.RegisteredCount
		resp.TotalAttendance += row.AttendanceCount
		resp.EventDetails = append(resp.EventDetails, dto.EventAnalytics{
			EventID:         row.EventID,
			Title:           row.Title,
			Date:            row.Date,
			RegisteredCount: row.RegisteredCount,
			AttendanceCount: row.AttendanceCount,
			PresentCount:    row.PresentCount,
			AttendanceRate:  attendanceRate(row.AttendanceCount, row.RegisteredCount),
		})
	}
	return resp, nil
}

// Leaderboard ranks the top ten students by points.
func (s *InsightService) Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, error) {
	users, err := s.users.TopStudents(ctx, leaderboardLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
	}
	entries := make([]dto.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, dto.LeaderboardEntry{Rank: i + 1, ID: u.ID, Name: u.Name, Points: u.Points})
	}
	return entries, nil
}

// attendanceRate is attended/registered as a percentage with two decimals.
func attendanceRate(attended, registered int) float64 {
	if registered == 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(registered)*10000) / 100
}
