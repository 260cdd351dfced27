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

const classDetailSelect = `SELECT c.id, c.name, c.academic_year_id, c.description, c.created_at, c.updated_at,
        ay.name AS academic_year_name,
        (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.active = TRUE) AS student_count
        FROM classes c LEFT JOIN academic_years ay ON ay.id = c.academic_year_id`

// ClassRepository manages persistence for classes and their catechist assignments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("c.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.CatechistID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM class_catechists cc WHERE cc.class_id = c.id AND cc.catechist_id = $%d)", len(args)+1))
		args = append(args, filter.CatechistID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	column := sortColumn(filter.SortBy, map[string]string{
		"name":       "c.name",
		"created_at": "c.created_at",
	}, "name")
	order := sortOrder(filter.SortOrder, "ASC")
	_, size, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", classDetailSelect, where, column, order, size, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID fetches a class with its academic year and roster size.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, classDetailSelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByAcademicYear returns the classes of a year, used to resolve names during import.
func (r *ClassRepository) ListByAcademicYear(ctx context.Context, academicYearID string) ([]models.Class, error) {
	const query = `SELECT id, name, academic_year_id, description, created_at, updated_at FROM classes WHERE academic_year_id = $1 ORDER BY name`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, academicYearID); err != nil {
		return nil, fmt.Errorf("list classes by academic year: %w", err)
	}
	return classes, nil
}

// ExistsByName checks for a class name clash inside an academic year.
func (r *ClassRepository) ExistsByName(ctx context.Context, academicYearID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM classes WHERE academic_year_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{academicYearID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class name: %w", err)
	}
	return true, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, academic_year_id, description, created_at, updated_at) VALUES (:id, :name, :academic_year_id, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies an existing class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, academic_year_id = :academic_year_id, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class permanently.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// AssignCatechist links a catechist to a class, updating the primary flag when already linked.
func (r *ClassRepository) AssignCatechist(ctx context.Context, assignment *models.ClassCatechist) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_catechists (id, class_id, catechist_id, is_primary, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (class_id, catechist_id) DO UPDATE SET is_primary = EXCLUDED.is_primary
        RETURNING id, created_at`
	if err := r.db.QueryRowxContext(ctx, query, assignment.ID, assignment.ClassID, assignment.CatechistID, assignment.IsPrimary, assignment.CreatedAt).
		Scan(&assignment.ID, &assignment.CreatedAt); err != nil {
		return fmt.Errorf("assign catechist: %w", err)
	}
	return nil
}

// UnassignCatechist removes the link between a catechist and a class.
func (r *ClassRepository) UnassignCatechist(ctx context.Context, classID, catechistID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_catechists WHERE class_id = $1 AND catechist_id = $2`, classID, catechistID)
	if err != nil {
		return false, fmt.Errorf("unassign catechist: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unassign catechist rows: %w", err)
	}
	return affected > 0, nil
}

// ListCatechists returns the catechists assigned to a class, primary first.
func (r *ClassRepository) ListCatechists(ctx context.Context, classID string) ([]models.ClassCatechistDetail, error) {
	const query = `SELECT cc.id, cc.class_id, cc.catechist_id, cc.is_primary, cc.created_at, ct.saint_name, ct.full_name
        FROM class_catechists cc JOIN catechists ct ON ct.id = cc.catechist_id
        WHERE cc.class_id = $1 ORDER BY cc.is_primary DESC, ct.full_name`
	var items []models.ClassCatechistDetail
	if err := r.db.SelectContext(ctx, &items, query, classID); err != nil {
		return nil, fmt.Errorf("list class catechists: %w", err)
	}
	return items, nil
}

// IsAssignedToUser reports whether the login user teaches the class.
func (r *ClassRepository) IsAssignedToUser(ctx context.Context, classID, userID string) (bool, error) {
	const query = `SELECT 1 FROM class_catechists cc JOIN catechists ct ON ct.id = cc.catechist_id
        WHERE cc.class_id = $1 AND ct.user_id = $2 AND ct.active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class assignment: %w", err)
	}
	return true, nil
}
