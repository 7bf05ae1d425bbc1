package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

type attendanceLedger interface {
	Mark(ctx context.Context, cmd models.MarkAttendance) (*models.AttendanceEntry, error)
}

type eventFinder interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type eventDetailReader interface {
	Get(ctx context.Context, id string) (*models.Event, error)
}

// AttendanceService marks attendance and credits points exactly once per
// (event, student).
type AttendanceService struct {
	ledger    attendanceLedger
	events    eventFinder
	users     userFinder
	details   eventDetailReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(ledger attendanceLedger, events eventFinder, users userFinder, details eventDetailReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		ledger:    ledger,
		events:    events,
		users:     users,
		details:   details,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Mark records the student's attendance. A present mark credits the event's
// points and appends a history line in the same transaction; a repeated mark
// fails with ALREADY_MARKED and changes nothing.
func (s *AttendanceService) Mark(ctx context.Context, eventID, markerID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResponse, error) {
	if req.Status == "" {
		req.Status = models.AttendancePresent
	}
	if err := s.validator.Struct(req); err != nil || !req.Status.Valid() {
		if err == nil {
			err = fmt.Errorf("unknown status %q", req.Status)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be present or absent")
	}

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, mapEventLookup(err)
	}
	if _, err := s.users.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	cmd := models.MarkAttendance{
		EventID:    event.ID,
		ActivityID: event.ActivityID,
		StudentID:  req.StudentID,
		Status:     req.Status,
		Points:     event.PointsPerEvent,
		MarkedAt:   s.now(),
	}
	if markerID != "" {
		cmd.MarkedBy = &markerID
	}

	entry, err := s.ledger.Mark(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyMarked):
			s.metrics.RecordAttendance("duplicate", 0)
			return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, "Attendance already marked for this student")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.metrics.RecordAttendance(string(entry.Status), entry.PointsAwarded)
	s.cache.InvalidateCatalog(ctx)
	s.logger.Info("attendance marked",
		zap.String("event_id", event.ID),
		zap.String("student_id", entry.StudentID),
		zap.String("status", string(entry.Status)),
		zap.Int("points", entry.PointsAwarded),
	)

	refreshed, err := s.details.Get(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	return &models.MarkAttendanceResponse{
		Message: fmt.Sprintf("Attendance marked as %s", entry.Status),
		Event:   refreshed,
	}, nil
}
