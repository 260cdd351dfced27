package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/giaoly-api/internal/models"
)

const sessionColumns = `id, class_id, session_date, code, active, created_by, created_at, ended_at`

// AttendanceSessionRepository persists code-gated check-in windows.
type AttendanceSessionRepository struct {
	db *sqlx.DB
}

// NewAttendanceSessionRepository constructs the repository.
func NewAttendanceSessionRepository(db *sqlx.DB) *AttendanceSessionRepository {
	return &AttendanceSessionRepository{db: db}
}

// Start ends any active session of the class and inserts the new one in a single transaction.
// It returns the number of sessions that were superseded.
func (r *AttendanceSessionRepository) Start(ctx context.Context, session *models.AttendanceSession) (superseded int64, err error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.Active = true
	session.EndedAt = nil

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin start session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE attendance_sessions SET active = FALSE, ended_at = $2 WHERE class_id = $1 AND active = TRUE`, session.ClassID, session.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("deactivate class sessions: %w", err)
	}
	if superseded, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("deactivate class sessions rows: %w", err)
	}

	const insert = `INSERT INTO attendance_sessions (id, class_id, session_date, code, active, created_by, created_at)
        VALUES (:id, :class_id, :session_date, :code, :active, :created_by, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, session); err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit start session: %w", err)
	}
	return superseded, nil
}

// End marks the session inactive. It reports false when the session was already inactive.
func (r *AttendanceSessionRepository) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_sessions SET active = FALSE, ended_at = $2 WHERE id = $1 AND active = TRUE`, id, endedAt)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("end session rows: %w", err)
	}
	return affected > 0, nil
}

// EndStale ends every session that has been active since before cutoff.
func (r *AttendanceSessionRepository) EndStale(ctx context.Context, cutoff, endedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_sessions SET active = FALSE, ended_at = $2 WHERE active = TRUE AND created_at < $1`, cutoff, endedAt)
	if err != nil {
		return 0, fmt.Errorf("end stale sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("end stale sessions rows: %w", err)
	}
	return affected, nil
}

// FindByID loads a session by identifier.
func (r *AttendanceSessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, "SELECT "+sessionColumns+" FROM attendance_sessions WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveByClass returns the active session of a class.
func (r *AttendanceSessionRepository) FindActiveByClass(ctx context.Context, classID string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, "SELECT "+sessionColumns+" FROM attendance_sessions WHERE class_id = $1 AND active = TRUE LIMIT 1", classID); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveByClassAndCode resolves a check-in code against the class's active session.
func (r *AttendanceSessionRepository) FindActiveByClassAndCode(ctx context.Context, classID, code string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	query := "SELECT " + sessionColumns + " FROM attendance_sessions WHERE class_id = $1 AND code = $2 AND active = TRUE LIMIT 1"
	if err := r.db.GetContext(ctx, &session, query, classID, code); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions newest first.
func (r *AttendanceSessionRepository) List(ctx context.Context, filter models.AttendanceSessionFilter) ([]models.AttendanceSession, int, error) {
	base := "FROM attendance_sessions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	_, size, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.AttendanceSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// CountActive returns the number of open sessions across all classes.
func (r *AttendanceSessionRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance_sessions WHERE active = TRUE`); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}
