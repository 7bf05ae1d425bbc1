package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

type activityRepository interface {
	List(ctx context.Context) ([]models.Activity, error)
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id string) error
	Enroll(ctx context.Context, activityID, studentID string) (*models.Activity, error)
	Unenroll(ctx context.Context, activityID, studentID string) (bool, error)
	EnrolledStudents(ctx context.Context, activityIDs []string) (map[string][]models.StudentSummary, error)
}

type upcomingEventReader interface {
	UpcomingIDs(ctx context.Context, activityID string, now time.Time) ([]string, error)
}

type notifier interface {
	NotifyActivityMembers(ctx context.Context, activityID string, kind models.NotificationType, title, message string)
	NotifyUser(ctx context.Context, userID, activityID string, kind models.NotificationType, title, message string)
}

// ActivityService manages the activity catalog and capacity-bounded enrollment.
type ActivityService struct {
	repo      activityRepository
	events    upcomingEventReader
	cache     *CacheService
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewActivityService constructs ActivityService. cache, notifier and metrics may be nil.
func NewActivityService(repo activityRepository, events upcomingEventReader, cache *CacheService, notify notifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		repo:      repo,
		events:    events,
		cache:     cache,
		notifier:  notify,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every activity with its enrolled students. The bool reports a cache hit.
func (s *ActivityService) List(ctx context.Context) ([]models.Activity, bool, error) {
	var cached []models.Activity
	if s.cache.Get(ctx, activitiesCacheKey, &cached) {
		return cached, true, nil
	}

	activities, err := s.repo.List(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	if err := s.attachEnrollments(ctx, activities); err != nil {
		return nil, false, err
	}

	s.cache.Set(ctx, activitiesCacheKey, activities)
	return activities, false, nil
}

// Get returns one activity with its enrolled students and upcoming events.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	one := []models.Activity{*activity}
	if err := s.attachEnrollments(ctx, one); err != nil {
		return nil, err
	}
	activity = &one[0]

	upcoming, err := s.events.UpcomingIDs(ctx, id, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming events")
	}
	activity.UpcomingEvents = upcoming
	return activity, nil
}

// Create adds an activity owned by creatorID.
func (s *ActivityService) Create(ctx context.Context, creatorID string, req models.CreateActivityRequest) (*models.Activity, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}

	points := models.DefaultPointsPerAttendance
	if req.PointsPerAttendance != nil {
		points = *req.PointsPerAttendance
	}
	activity := &models.Activity{
		Name:                req.Name,
		Description:         req.Description,
		Category:            req.Category,
		Schedule:            models.Schedule(req.Schedule),
		MaxCapacity:         req.MaxCapacity,
		PointsPerAttendance: points,
		EnrolledStudents:    []models.StudentSummary{},
	}
	if creatorID != "" {
		activity.CreatedBy = &creatorID
	}

	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}
	s.cache.InvalidateCatalog(ctx)
	s.logger.Info("activity created", zap.String("activity_id", activity.ID), zap.Int("max_capacity", activity.MaxCapacity))
	return activity, nil
}

// Update applies a partial update. Capacity may not drop below the live enrollment.
func (s *ActivityService) Update(ctx context.Context, id string, req models.UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	activity, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		activity.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		activity.Description = *req.Description
	}
	if req.Category != nil {
		activity.Category = *req.Category
	}
	if req.Schedule != nil {
		activity.Schedule = models.Schedule(*req.Schedule)
	}
	if req.MaxCapacity != nil {
		activity.MaxCapacity = *req.MaxCapacity
	}
	if req.PointsPerAttendance != nil {
		activity.PointsPerAttendance = *req.PointsPerAttendance
	}

	if activity.MaxCapacity < activity.CurrentEnrollment {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("maxCapacity cannot be below current enrollment (%d)", activity.CurrentEnrollment))
	}
	if err := s.repo.Update(ctx, activity); err != nil {
		if errors.Is(err, repository.ErrActivityFull) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "maxCapacity cannot be below current enrollment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}

	s.cache.InvalidateCatalog(ctx)
	if s.notifier != nil {
		s.notifier.NotifyActivityMembers(ctx, activity.ID, models.NotificationUpdate,
			"Activity updated", fmt.Sprintf("%s has been updated. Check the latest details.", activity.Name))
	}
	return activity, nil
}

// Delete removes an activity together with its events and enrollments.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity")
	}
	s.cache.InvalidateCatalog(ctx)
	s.logger.Info("activity deleted", zap.String("activity_id", id))
	return nil
}

// Register enrolls the student. Capacity is checked before membership, so a
// full activity reports Full even to an enrolled student.
func (s *ActivityService) Register(ctx context.Context, activityID, studentID string) (*models.Activity, error) {
	activity, err := s.repo.Enroll(ctx, activityID, studentID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Activity not found")
		case errors.Is(err, repository.ErrActivityFull):
			s.metrics.RecordEnrollment("full")
			return nil, appErrors.Clone(appErrors.ErrFull, "Activity is full")
		case errors.Is(err, repository.ErrAlreadyEnrolled):
			s.metrics.RecordEnrollment("duplicate")
			return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "Already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register")
	}
	s.metrics.RecordEnrollment("accepted")
	s.cache.InvalidateCatalog(ctx)

	one := []models.Activity{*activity}
	if err := s.attachEnrollments(ctx, one); err != nil {
		s.logger.Warn("registered but failed to load enrollments", zap.String("activity_id", activityID), zap.Error(err))
	} else {
		activity = &one[0]
	}

	if s.notifier != nil {
		s.notifier.NotifyUser(ctx, studentID, activityID, models.NotificationRegistration,
			"Registration confirmed", fmt.Sprintf("You are now registered for %s.", activity.Name))
	}
	return activity, nil
}

// Unregister removes the student's enrollment. Repeating it is a no-op.
func (s *ActivityService) Unregister(ctx context.Context, activityID, studentID string) error {
	removed, err := s.repo.Unenroll(ctx, activityID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unregister")
	}
	if removed {
		s.cache.InvalidateCatalog(ctx)
	}
	return nil
}

func (s *ActivityService) load(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

func (s *ActivityService) attachEnrollments(ctx context.Context, activities []models.Activity) error {
	ids := make([]string, len(activities))
	for i := range activities {
		ids[i] = activities[i].ID
	}
	enrolled, err := s.repo.EnrolledStudents(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	for i := range activities {
		students := enrolled[activities[i].ID]
		if students == nil {
			students = []models.StudentSummary{}
		}
		activities[i].EnrolledStudents = students
	}
	return nil
}
