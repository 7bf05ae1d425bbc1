package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ekskul-api/internal/models"
)

const userColumns = `id, name, email, password_hash, role, role_status, points, created_at, updated_at`

// UserRepository provides database access for accounts and the points ledger read side.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err = missingOnMalformedID(err); err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A taken email yields ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	const query = `INSERT INTO users (id, name, email, password_hash, role, role_status, points, created_at, updated_at) VALUES (:id, :name, :email, :password_hash, :role, :role_status, :points, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateRoleStatus sets the approval status of the account with the given email.
func (r *UserRepository) UpdateRoleStatus(ctx context.Context, email string, status models.RoleStatus) error {
	const query = `UPDATE users SET role_status = $2, updated_at = $3 WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, strings.ToLower(strings.TrimSpace(email)), status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update role status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TopStudents returns students ordered by points, ties broken by sign-up order then id.
func (r *UserRepository) TopStudents(ctx context.Context, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY points DESC, created_at ASC, id ASC LIMIT $2`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleStudent, limit); err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	return users, nil
}

// History returns the attendance ledger of a user, oldest first, with the
// event and activity names while those still exist.
func (r *UserRepository) History(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT h.event_id, h.activity_id, h.earned_at, h.points_earned,
e.title AS event_title, e.event_date, a.name AS activity_name
FROM attendance_history h
LEFT JOIN events e ON e.id = h.event_id
LEFT JOIN activities a ON a.id = h.activity_id
WHERE h.user_id = $1 ORDER BY h.earned_at ASC, h.id ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return records, nil
}

// ReconcilePoints backfills history rows missing for credited attendance and
// recomputes every user's points from the history. It returns how many users
// had their points corrected.
func (r *UserRepository) ReconcilePoints(ctx context.Context) (n int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reconcile: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const backfill = `INSERT INTO attendance_history (user_id, event_id, activity_id, earned_at, points_earned)
SELECT ea.student_id, ea.event_id, e.activity_id, ea.marked_at, ea.points_awarded
FROM event_attendance ea JOIN events e ON e.id = ea.event_id
WHERE ea.status = 'present'
ON CONFLICT (user_id, event_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, backfill); err != nil {
		return 0, fmt.Errorf("backfill history: %w", err)
	}

	const recompute = `UPDATE users u SET points = t.total, updated_at = NOW()
FROM (
	SELECT u2.id, COALESCE(SUM(h.points_earned), 0) AS total
	FROM users u2 LEFT JOIN attendance_history h ON h.user_id = u2.id
	GROUP BY u2.id
) t
WHERE u.id = t.id AND u.points <> t.total`
	res, err := tx.ExecContext(ctx, recompute)
	if err != nil {
		return 0, fmt.Errorf("recompute points: %w", err)
	}
	n, _ = res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reconcile: %w", err)
	}
	return n, nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Payload == "" {
		log.Payload = "{}"
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, payload, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, CAST(:payload AS JSONB), :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
