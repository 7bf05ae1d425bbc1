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

// activitySelect reads activities as "a" with the creator's name joined in.
const activitySelect = `SELECT a.id, a.name, a.description, a.category, a.schedule_day, a.schedule_time, a.schedule_location,
a.max_capacity, a.current_enrollment, a.points_per_attendance, a.created_by, COALESCE(u.name, '') AS created_by_name, a.created_at, a.updated_at
FROM activities a LEFT JOIN users u ON u.id = a.created_by`

// ActivityRepository persists activities and their enrollment rows.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new instance of ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// List returns all activities, newest first.
func (r *ActivityRepository) List(ctx context.Context) ([]models.Activity, error) {
	query := activitySelect + ` ORDER BY a.created_at DESC, a.id ASC`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// FindByID returns an activity by identifier.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	query := activitySelect + ` WHERE a.id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find activity: %w", err)
	}
	return &activity, nil
}

// Create inserts a new activity with an empty enrollment.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	activity.CurrentEnrollment = 0

	const query = `INSERT INTO activities (id, name, description, category, schedule_day, schedule_time, schedule_location, max_capacity, current_enrollment, points_per_attendance, created_by, created_at, updated_at)
VALUES (:id, :name, :description, :category, :schedule_day, :schedule_time, :schedule_location, :max_capacity, :current_enrollment, :points_per_attendance, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update writes the mutable fields. The capacity guard keeps max_capacity at or
// above the live enrollment; a violation returns ErrActivityFull.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET name = :name, description = :description, category = :category,
schedule_day = :schedule_day, schedule_time = :schedule_time, schedule_location = :schedule_location,
max_capacity = :max_capacity, points_per_attendance = :points_per_attendance, updated_at = :updated_at
WHERE id = :id AND current_enrollment <= :max_capacity`
	res, err := r.db.NamedExecContext(ctx, query, activity)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrActivityFull
	}
	return nil
}

// Delete removes an activity; events, attendance and enrollment rows cascade.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("delete activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Enroll adds the student under a row lock on the activity so the capacity
// check and the counter increment cannot interleave with another enrollment.
func (r *ActivityRepository) Enroll(ctx context.Context, activityID, studentID string) (activity *models.Activity, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.Activity
	lockQuery := activitySelect + ` WHERE a.id = $1 FOR UPDATE OF a`
	if err = tx.GetContext(ctx, &locked, lockQuery, activityID); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock activity: %w", err)
	}
	if locked.CurrentEnrollment >= locked.MaxCapacity {
		err = ErrActivityFull
		return nil, err
	}

	const insertQuery = `INSERT INTO activity_enrollments (activity_id, student_id, enrolled_at) VALUES ($1, $2, $3)
ON CONFLICT (activity_id, student_id) DO NOTHING RETURNING student_id`
	var inserted string
	if err = tx.QueryRowxContext(ctx, insertQuery, activityID, studentID, time.Now().UTC()).Scan(&inserted); err != nil {
		if err == sql.ErrNoRows {
			err = ErrAlreadyEnrolled
			return nil, err
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	const bumpQuery = `UPDATE activities SET current_enrollment = current_enrollment + 1, updated_at = $2 WHERE id = $1 RETURNING current_enrollment`
	if err = tx.GetContext(ctx, &locked.CurrentEnrollment, bumpQuery, activityID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("increment enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return &locked, nil
}

// Unenroll removes the student if enrolled. The counter only moves when a row
// was deleted and never drops below zero. removed reports whether anything changed.
func (r *ActivityRepository) Unenroll(ctx context.Context, activityID, studentID string) (removed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin unenrollment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists string
	if err = tx.GetContext(ctx, &exists, `SELECT id FROM activities WHERE id = $1 FOR UPDATE`, activityID); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return false, err
		}
		return false, fmt.Errorf("lock activity: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM activity_enrollments WHERE activity_id = $1 AND student_id = $2`, activityID, studentID)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		removed = true
		const dropQuery = `UPDATE activities SET current_enrollment = GREATEST(current_enrollment - 1, 0), updated_at = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, dropQuery, activityID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("decrement enrollment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit unenrollment: %w", err)
	}
	return removed, nil
}

// EnrolledStudents returns the enrolled students, in enrollment order, keyed by activity id.
func (r *ActivityRepository) EnrolledStudents(ctx context.Context, activityIDs []string) (map[string][]models.StudentSummary, error) {
	result := make(map[string][]models.StudentSummary, len(activityIDs))
	if len(activityIDs) == 0 {
		return result, nil
	}
	const query = `SELECT ae.activity_id, u.id, u.name, u.email
FROM activity_enrollments ae JOIN users u ON u.id = ae.student_id
WHERE ae.activity_id = ANY($1) ORDER BY ae.enrolled_at ASC, ae.student_id ASC`
	var rows []struct {
		ActivityID string `db:"activity_id"`
		models.StudentSummary
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(activityIDs)); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	for _, row := range rows {
		result[row.ActivityID] = append(result[row.ActivityID], row.StudentSummary)
	}
	return result, nil
}

// StudentIDs returns the students enrolled in one activity.
func (r *ActivityRepository) StudentIDs(ctx context.Context, activityID string) ([]string, error) {
	const query = `SELECT student_id FROM activity_enrollments WHERE activity_id = $1 ORDER BY enrolled_at ASC, student_id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, activityID); err != nil {
		return nil, fmt.Errorf("list enrolled student ids: %w", err)
	}
	return ids, nil
}

// ListByStudent returns the activities a student is enrolled in.
func (r *ActivityRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Activity, error) {
	query := activitySelect + ` JOIN activity_enrollments ae ON ae.activity_id = a.id
WHERE ae.student_id = $1 ORDER BY ae.enrolled_at ASC, a.id ASC`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, studentID); err != nil {
		if missingOnMalformedID(err) == sql.ErrNoRows {
			return []models.Activity{}, nil
		}
		return nil, fmt.Errorf("list student activities: %w", err)
	}
	return activities, nil
}

// Recommend returns activities sharing a category with the student's enrollments,
// excluding those already joined, in catalog order.
func (r *ActivityRepository) Recommend(ctx context.Context, studentID string, limit int) ([]models.Activity, error) {
	query := activitySelect + `
WHERE a.category IN (
	SELECT joined.category FROM activities joined JOIN activity_enrollments ae ON ae.activity_id = joined.id WHERE ae.student_id = $1
)
AND a.id NOT IN (SELECT activity_id FROM activity_enrollments WHERE student_id = $1)
ORDER BY a.created_at ASC, a.id ASC
LIMIT $2`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("recommend activities: %w", err)
	}
	return activities, nil
}
