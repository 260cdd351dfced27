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

const massUpsertQuery = `INSERT INTO mass_attendance (id, student_id, date, attended, recorded_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (student_id, date) DO UPDATE SET attended = EXCLUDED.attended, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`

// MassAttendanceRepository persists Mass attendance rows.
type MassAttendanceRepository struct {
	db *sqlx.DB
}

// NewMassAttendanceRepository constructs the repository.
func NewMassAttendanceRepository(db *sqlx.DB) *MassAttendanceRepository {
	return &MassAttendanceRepository{db: db}
}

// List returns Mass attendance rows, optionally scoped to the students of a class.
func (r *MassAttendanceRepository) List(ctx context.Context, filter models.MassAttendanceFilter) ([]models.MassAttendance, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT m.id, m.student_id, m.date, m.attended, m.recorded_by, m.created_at, m.updated_at
        FROM mass_attendance m JOIN students s ON s.id = m.student_id WHERE 1=1`)
	var args []interface{}

	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		fmt.Fprintf(&query, " AND s.class_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		fmt.Fprintf(&query, " AND m.student_id = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		fmt.Fprintf(&query, " AND m.date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		fmt.Fprintf(&query, " AND m.date <= $%d", len(args))
	}
	query.WriteString(" ORDER BY m.date ASC")

	var records []models.MassAttendance
	if err := r.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list mass attendance: %w", err)
	}
	return records, nil
}

// Upsert writes every record keyed by (student_id, date) in one transaction.
func (r *MassAttendanceRepository) Upsert(ctx context.Context, records []models.MassAttendance) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mass upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if err = tx.QueryRowxContext(ctx, massUpsertQuery, rec.ID, rec.StudentID, rec.Date, rec.Attended, rec.RecordedBy, now).
			Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("upsert mass attendance for student %s: %w", rec.StudentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit mass upsert: %w", err)
	}
	return nil
}

// Replace upserts a single record and returns who recorded the row it replaced, if any.
func (r *MassAttendanceRepository) Replace(ctx context.Context, record *models.MassAttendance) (previousRecorder *string, err error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mass replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var prev string
	err = tx.GetContext(ctx, &prev, `SELECT recorded_by FROM mass_attendance WHERE student_id = $1 AND date = $2 FOR UPDATE`, record.StudentID, record.Date)
	switch {
	case err == nil:
		previousRecorder = &prev
	case err == sql.ErrNoRows:
		err = nil
	default:
		return nil, fmt.Errorf("lock mass attendance: %w", err)
	}

	if err = tx.QueryRowxContext(ctx, massUpsertQuery, record.ID, record.StudentID, record.Date, record.Attended, record.RecordedBy, time.Now().UTC()).
		Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("replace mass attendance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mass replace: %w", err)
	}
	return previousRecorder, nil
}
