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

// AttendanceRecordRepository persists catechism attendance rows.
type AttendanceRecordRepository struct {
	db *sqlx.DB
}

// NewAttendanceRecordRepository constructs the repository.
func NewAttendanceRecordRepository(db *sqlx.DB) *AttendanceRecordRepository {
	return &AttendanceRecordRepository{db: db}
}

// List returns attendance records with student names.
func (r *AttendanceRecordRepository) List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecordDetail, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ar.id, ar.student_id, ar.class_id, ar.date, ar.status, ar.note, ar.recorded_by, ar.created_at, ar.updated_at,
        s.full_name AS student_name, s.saint_name
        FROM attendance_records ar JOIN students s ON s.id = ar.student_id WHERE 1=1`)
	var args []interface{}

	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		fmt.Fprintf(&query, " AND ar.class_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		fmt.Fprintf(&query, " AND ar.student_id = $%d", len(args))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		fmt.Fprintf(&query, " AND ar.date = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		fmt.Fprintf(&query, " AND ar.date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		fmt.Fprintf(&query, " AND ar.date <= $%d", len(args))
	}
	query.WriteString(" ORDER BY ar.date ASC, s.full_name ASC")

	var records []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// Exists reports whether a record is stored for the student, class and date.
func (r *AttendanceRecordRepository) Exists(ctx context.Context, studentID, classID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM attendance_records WHERE student_id = $1 AND class_id = $2 AND date = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance record: %w", err)
	}
	return true, nil
}

// Upsert writes every record keyed by (student_id, class_id, date) in one transaction.
func (r *AttendanceRecordRepository) Upsert(ctx context.Context, records []models.AttendanceRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO attendance_records (id, student_id, class_id, date, status, note, recorded_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        ON CONFLICT (student_id, class_id, date) DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if err = tx.QueryRowxContext(ctx, query, rec.ID, rec.StudentID, rec.ClassID, rec.Date, rec.Status, rec.Note, rec.RecordedBy, now).
			Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("upsert attendance record for student %s: %w", rec.StudentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance upsert: %w", err)
	}
	return nil
}

// InsertIfAbsent stores a record unless one already exists for the natural key.
// It reports false when the row was already present.
func (r *AttendanceRecordRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	const query = `INSERT INTO attendance_records (id, student_id, class_id, date, status, note, recorded_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        ON CONFLICT (student_id, class_id, date) DO NOTHING
        RETURNING created_at`
	err := r.db.QueryRowxContext(ctx, query, record.ID, record.StudentID, record.ClassID, record.Date, record.Status, record.Note, record.RecordedBy, now).
		Scan(&record.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance record: %w", err)
	}
	record.UpdatedAt = record.CreatedAt
	return true, nil
}
