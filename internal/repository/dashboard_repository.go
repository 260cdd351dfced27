package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DashboardCounts holds the headline figures of an academic year.
type DashboardCounts struct {
	Students       int `db:"students"`
	Classes        int `db:"classes"`
	Catechists     int `db:"catechists"`
	ActiveSessions int `db:"active_sessions"`
}

// DashboardRepository computes dashboard counts in one round trip.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts returns the counts scoped to an academic year. An empty year counts everything.
func (r *DashboardRepository) Counts(ctx context.Context, academicYearID string) (*DashboardCounts, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM students s JOIN classes c ON c.id = s.class_id WHERE s.active = TRUE AND ($1 = '' OR c.academic_year_id::text = $1)) AS students,
	(SELECT COUNT(*) FROM classes c WHERE $1 = '' OR c.academic_year_id::text = $1) AS classes,
	(SELECT COUNT(*) FROM catechists WHERE active = TRUE) AS catechists,
	(SELECT COUNT(*) FROM attendance_sessions WHERE active = TRUE) AS active_sessions`
	var counts DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, academicYearID); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}
