package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/giaoly-api/internal/models"
)

const academicYearColumns = `id, name, start_date, end_date, is_current, created_at, updated_at`

// AcademicYearRepository handles persistence for academic years.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository instantiates an academic year repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// List returns every academic year, newest first.
func (r *AcademicYearRepository) List(ctx context.Context) ([]models.AcademicYear, error) {
	query := `SELECT ` + academicYearColumns + ` FROM academic_years ORDER BY start_date DESC`
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindByID loads an academic year by identifier.
func (r *AcademicYearRepository) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	query := `SELECT ` + academicYearColumns + ` FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindCurrent returns the academic year flagged as current.
func (r *AcademicYearRepository) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	query := `SELECT ` + academicYearColumns + ` FROM academic_years WHERE is_current = TRUE LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// Create inserts a new academic year. A current year clears the flag on the others.
func (r *AcademicYearRepository) Create(ctx context.Context, year *models.AcademicYear) (err error) {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if year.CreatedAt.IsZero() {
		year.CreatedAt = now
	}
	year.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create academic year: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if year.IsCurrent {
		if err = clearCurrentYear(ctx, tx, year.ID, now); err != nil {
			return err
		}
	}
	const query = `INSERT INTO academic_years (id, name, start_date, end_date, is_current, created_at, updated_at) VALUES (:id, :name, :start_date, :end_date, :is_current, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create academic year: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create academic year: %w", err)
	}
	return nil
}

// Update modifies an existing academic year. A current year clears the flag on the others.
func (r *AcademicYearRepository) Update(ctx context.Context, year *models.AcademicYear) (err error) {
	year.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update academic year: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if year.IsCurrent {
		if err = clearCurrentYear(ctx, tx, year.ID, year.UpdatedAt); err != nil {
			return err
		}
	}
	const query = `UPDATE academic_years SET name = :name, start_date = :start_date, end_date = :end_date, is_current = :is_current, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("update academic year: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update academic year: %w", err)
	}
	return nil
}

// Delete removes an academic year permanently.
func (r *AcademicYearRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM academic_years WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete academic year: %w", err)
	}
	return nil
}

// CountClasses returns the number of classes referencing the year.
func (r *AcademicYearRepository) CountClasses(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classes WHERE academic_year_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count academic year classes: %w", err)
	}
	return count, nil
}

func clearCurrentYear(ctx context.Context, tx *sqlx.Tx, keepID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE AND id <> $2`, now, keepID); err != nil {
		return fmt.Errorf("clear current academic year: %w", err)
	}
	return nil
}
