package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ekskul-api/internal/models"
)

const eventColumns = `id, activity_id, title, description, event_date, event_time, location, capacity, points_per_event, qr_token, created_at`

// EventRepository persists events, their attendee sets and attendance rows.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new instance of EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO events (id, activity_id, title, description, event_date, event_time, location, capacity, points_per_event, qr_token, created_at)
VALUES (:id, :activity_id, :title, :description, :event_date, :event_time, :location, :capacity, :points_per_event, :qr_token, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID returns an event without its attendee or attendance lists.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	return r.findOne(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// FindByQRToken returns the event that issued token.
func (r *EventRepository) FindByQRToken(ctx context.Context, token string) (*models.Event, error) {
	return r.findOne(ctx, `SELECT `+eventColumns+` FROM events WHERE qr_token = $1`, token)
}

func (r *EventRepository) findOne(ctx context.Context, query string, arg string) (*models.Event, error) {
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, arg); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &event, nil
}

// ListByActivity returns the events of an activity ordered by date.
func (r *EventRepository) ListByActivity(ctx context.Context, activityID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE activity_id = $1 ORDER BY event_date ASC, id ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, activityID); err != nil {
		if missingOnMalformedID(err) == sql.ErrNoRows {
			return []models.Event{}, nil
		}
		return nil, fmt.Errorf("list events by activity: %w", err)
	}
	return events, nil
}

// ListByAttendee returns the events a user has joined.
func (r *EventRepository) ListByAttendee(ctx context.Context, userID string) ([]models.Event, error) {
	const query = `SELECT e.id, e.activity_id, e.title, e.description, e.event_date, e.event_time, e.location, e.capacity, e.points_per_event, e.qr_token, e.created_at
FROM events e JOIN event_attendees ea ON ea.event_id = e.id
WHERE ea.student_id = $1 ORDER BY e.event_date ASC, e.id ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, userID); err != nil {
		if missingOnMalformedID(err) == sql.ErrNoRows {
			return []models.Event{}, nil
		}
		return nil, fmt.Errorf("list events by attendee: %w", err)
	}
	return events, nil
}

// UpcomingIDs returns ids of events of the activity dated from now on.
func (r *EventRepository) UpcomingIDs(ctx context.Context, activityID string, now time.Time) ([]string, error) {
	const query = `SELECT id FROM events WHERE activity_id = $1 AND event_date >= $2 ORDER BY event_date ASC, id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, activityID, now); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return ids, nil
}

// AddAttendee records interest in an event. When the event has a capacity the
// event row is locked so the count check and the insert are serialised.
func (r *EventRepository) AddAttendee(ctx context.Context, eventID, userID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attend: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity sql.NullInt64
	if err = tx.GetContext(ctx, &capacity, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock event: %w", err)
	}

	if capacity.Valid {
		var current int64
		if err = tx.GetContext(ctx, &current, `SELECT COUNT(*) FROM event_attendees WHERE event_id = $1`, eventID); err != nil {
			return fmt.Errorf("count attendees: %w", err)
		}
		if current >= capacity.Int64 {
			var already bool
			if err = tx.GetContext(ctx, &already, `SELECT EXISTS (SELECT 1 FROM event_attendees WHERE event_id = $1 AND student_id = $2)`, eventID, userID); err != nil {
				return fmt.Errorf("check attendee: %w", err)
			}
			if already {
				err = ErrAlreadyAttending
			} else {
				err = ErrEventFull
			}
			return err
		}
	}

	const insertQuery = `INSERT INTO event_attendees (event_id, student_id, joined_at) VALUES ($1, $2, $3)
ON CONFLICT (event_id, student_id) DO NOTHING RETURNING student_id`
	var inserted string
	if err = tx.QueryRowxContext(ctx, insertQuery, eventID, userID, time.Now().UTC()).Scan(&inserted); err != nil {
		if err == sql.ErrNoRows {
			err = ErrAlreadyAttending
			return err
		}
		return fmt.Errorf("insert attendee: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attend: %w", err)
	}
	return nil
}

// Attendees returns the students who joined each event, in join order.
func (r *EventRepository) Attendees(ctx context.Context, eventIDs []string) (map[string][]models.StudentSummary, error) {
	result := make(map[string][]models.StudentSummary, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}
	const query = `SELECT ea.event_id, u.id, u.name, u.email
FROM event_attendees ea JOIN users u ON u.id = ea.student_id
WHERE ea.event_id = ANY($1) ORDER BY ea.joined_at ASC, ea.student_id ASC`
	var rows []struct {
		EventID string `db:"event_id"`
		models.StudentSummary
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(eventIDs)); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	for _, row := range rows {
		result[row.EventID] = append(result[row.EventID], row.StudentSummary)
	}
	return result, nil
}

// AttendanceEntries returns attendance rows, each with the marked student, keyed by event id.
func (r *EventRepository) AttendanceEntries(ctx context.Context, eventIDs []string) (map[string][]models.AttendanceEntry, error) {
	result := make(map[string][]models.AttendanceEntry, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}
	const query = `SELECT t.event_id, t.student_id, t.status, t.points_awarded, t.marked_by, t.marked_at,
u.name AS student_name, u.email AS student_email
FROM event_attendance t JOIN users u ON u.id = t.student_id
WHERE t.event_id = ANY($1) ORDER BY t.marked_at ASC, t.student_id ASC`
	var rows []struct {
		models.AttendanceEntry
		StudentName  string `db:"student_name"`
		StudentEmail string `db:"student_email"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(eventIDs)); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	for _, row := range rows {
		entry := row.AttendanceEntry
		entry.Student = &models.StudentSummary{ID: entry.StudentID, Name: row.StudentName, Email: row.StudentEmail}
		result[entry.EventID] = append(result[entry.EventID], entry)
	}
	return result, nil
}

// StatsByActivity aggregates attendee and attendance counts per event.
func (r *EventRepository) StatsByActivity(ctx context.Context, activityID string) ([]models.EventAttendanceStats, error) {
	const query = `SELECT e.id AS event_id, e.title, e.event_date,
	(SELECT COUNT(*) FROM event_attendees a WHERE a.event_id = e.id) AS registered_count,
	(SELECT COUNT(*) FROM event_attendance t WHERE t.event_id = e.id) AS attendance_count,
	(SELECT COUNT(*) FROM event_attendance t WHERE t.event_id = e.id AND t.status = 'present') AS present_count
FROM events e WHERE e.activity_id = $1 ORDER BY e.event_date ASC, e.id ASC`
	var stats []models.EventAttendanceStats
	if err := r.db.SelectContext(ctx, &stats, query, activityID); err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	return stats, nil
}
