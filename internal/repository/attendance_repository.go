package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ekskul-api/internal/models"
)

// AttendanceRepository owns the attendance-to-points ledger writes.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Mark records the attendance row and, for present students, credits points and
// appends the history entry, all in one transaction. The (event_id, student_id)
// primary key makes the first writer win; every later call gets ErrAlreadyMarked
// and leaves the store untouched.
func (r *AttendanceRepository) Mark(ctx context.Context, cmd models.MarkAttendance) (entry *models.AttendanceEntry, err error) {
	if cmd.MarkedAt.IsZero() {
		cmd.MarkedAt = time.Now().UTC()
	}
	points := 0
	if cmd.Status == models.AttendancePresent {
		points = cmd.Points
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO event_attendance (event_id, student_id, status, points_awarded, marked_by, marked_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id, student_id) DO NOTHING
RETURNING event_id, student_id, status, points_awarded, marked_by, marked_at`
	var stored models.AttendanceEntry
	if err = tx.QueryRowxContext(ctx, insertQuery, cmd.EventID, cmd.StudentID, cmd.Status, points, cmd.MarkedBy, cmd.MarkedAt).StructScan(&stored); err != nil {
		if err == sql.ErrNoRows {
			err = ErrAlreadyMarked
			return nil, err
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	if cmd.Status == models.AttendancePresent {
		res, execErr := tx.ExecContext(ctx, `UPDATE users SET points = points + $2, updated_at = $3 WHERE id = $1`, cmd.StudentID, points, cmd.MarkedAt)
		if execErr != nil {
			err = fmt.Errorf("credit points: %w", execErr)
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			err = sql.ErrNoRows
			return nil, err
		}

		const historyQuery = `INSERT INTO attendance_history (user_id, event_id, activity_id, earned_at, points_earned) VALUES ($1, $2, $3, $4, $5)`
		if _, err = tx.ExecContext(ctx, historyQuery, cmd.StudentID, cmd.EventID, cmd.ActivityID, cmd.MarkedAt, points); err != nil {
			return nil, fmt.Errorf("append history: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance: %w", err)
	}
	return &stored, nil
}
