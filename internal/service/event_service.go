package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

const qrTokenBytes = 16

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	FindByQRToken(ctx context.Context, token string) (*models.Event, error)
	ListByActivity(ctx context.Context, activityID string) ([]models.Event, error)
	ListByAttendee(ctx context.Context, userID string) ([]models.Event, error)
	AddAttendee(ctx context.Context, eventID, userID string) error
	Attendees(ctx context.Context, eventIDs []string) (map[string][]models.StudentSummary, error)
	AttendanceEntries(ctx context.Context, eventIDs []string) (map[string][]models.AttendanceEntry, error)
}

type activityFinder interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

// EventService schedules events and tracks attendee interest.
type EventService struct {
	repo       eventRepository
	activities activityFinder
	cache      *CacheService
	notifier   notifier
	validator  *validator.Validate
	logger     *zap.Logger
	newToken   func() (string, error)
}

// NewEventService constructs EventService.
func NewEventService(repo eventRepository, activities activityFinder, cache *CacheService, notify notifier, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		repo:       repo,
		activities: activities,
		cache:      cache,
		notifier:   notify,
		validator:  validate,
		logger:     logger,
		newToken:   generateQRToken,
	}
}

// ListByActivity returns the events of an activity. The bool reports a cache hit.
func (s *EventService) ListByActivity(ctx context.Context, activityID string) ([]models.Event, bool, error) {
	key := eventsCacheKey(activityID)
	var cached []models.Event
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	events, err := s.repo.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	if err := s.hydrate(ctx, events); err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, key, events)
	return events, false, nil
}

// Get returns one event with attendees and attendance.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapEventLookup(err)
	}
	one := []models.Event{*event}
	if err := s.hydrate(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// Create schedules an event for an existing activity and issues its QR token.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	activity, err := s.activities.FindByID(ctx, req.ActivityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	points := activity.PointsPerAttendance
	if points <= 0 {
		points = models.DefaultPointsPerEvent
	}
	if req.PointsPerEvent != nil {
		points = *req.PointsPerEvent
	}

	token, err := s.newToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue qr token")
	}

	event := &models.Event{
		ActivityID:     activity.ID,
		Title:          req.Title,
		Description:    req.Description,
		Date:           req.Date,
		Time:           req.Time,
		Location:       req.Location,
		Capacity:       req.Capacity,
		PointsPerEvent: points,
		QRCode:         &token,
		Attendees:      []models.StudentSummary{},
		Attendance:     []models.AttendanceEntry{},
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.cache.InvalidateCatalog(ctx)
	if s.notifier != nil {
		s.notifier.NotifyActivityMembers(ctx, activity.ID, models.NotificationEvent,
			"New event: "+event.Title,
			fmt.Sprintf("%s has a new event on %s at %s.", activity.Name, event.Date.Format("2006-01-02"), event.Location))
	}
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("activity_id", activity.ID))
	return event, nil
}

// Attend records the user's interest in the event.
func (s *EventService) Attend(ctx context.Context, eventID, userID string) (*models.Event, error) {
	if err := s.repo.AddAttendee(ctx, eventID, userID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Event not found")
		case errors.Is(err, repository.ErrAlreadyAttending):
			return nil, appErrors.Clone(appErrors.ErrAlreadyRegistered, "Already registered for this event")
		case errors.Is(err, repository.ErrEventFull):
			return nil, appErrors.Clone(appErrors.ErrFull, "Event is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register for event")
	}
	s.cache.InvalidateCatalog(ctx)
	return s.Get(ctx, eventID)
}

// RegisterByQR resolves the token to an event and attends it.
func (s *EventService) RegisterByQR(ctx context.Context, token, userID string) (*models.Event, error) {
	event, err := s.repo.FindByQRToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Invalid QR code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve qr code")
	}
	return s.Attend(ctx, event.ID, userID)
}

// RegisteredEvents lists the events the user has expressed interest in.
func (s *EventService) RegisteredEvents(ctx context.Context, userID string) ([]models.Event, error) {
	events, err := s.repo.ListByAttendee(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registered events")
	}
	if err := s.hydrate(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *EventService) hydrate(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	attendees, err := s.repo.Attendees(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendees")
	}
	attendance, err := s.repo.AttendanceEntries(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	for i := range events {
		events[i].Attendees = attendees[events[i].ID]
		if events[i].Attendees == nil {
			events[i].Attendees = []models.StudentSummary{}
		}
		events[i].Attendance = attendance[events[i].ID]
		if events[i].Attendance == nil {
			events[i].Attendance = []models.AttendanceEntry{}
		}
	}
	return nil
}

func mapEventLookup(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "Event not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
}

func generateQRToken() (string, error) {
	buf := make([]byte, qrTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
