package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/giaoly-api/internal/models"
)

const studentDetailSelect = `SELECT s.id, s.student_code, s.saint_name, s.full_name, s.gender, s.birth_date, s.address, s.parent_phone, s.class_id, s.user_id, s.active, s.created_at, s.updated_at,
        c.name AS class_name`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN classes c ON c.id = s.class_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.student_code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	column := sortColumn(filter.SortBy, map[string]string{
		"full_name":    "s.full_name",
		"student_code": "s.student_code",
		"created_at":   "s.created_at",
	}, "full_name")
	order := sortOrder(filter.SortOrder, "ASC")
	_, size, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s\n        %s ORDER BY %s %s LIMIT %d OFFSET %d", studentDetailSelect, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListByClass returns every active student of a class ordered by name.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.StudentDetail, error) {
	query := studentDetailSelect + `
        FROM students s LEFT JOIN classes c ON c.id = s.class_id
        WHERE s.class_id = $1 AND s.active = TRUE ORDER BY s.full_name ASC`
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// StudentsOutsideClass returns the ids in studentIDs that are not active
// members of classID, in input order.
func (r *StudentRepository) StudentsOutsideClass(ctx context.Context, classID string, studentIDs []string) ([]string, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id FROM students WHERE class_id = $1 AND active = TRUE AND id = ANY($2)`
	var members []string
	if err := r.db.SelectContext(ctx, &members, query, classID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("check class roster: %w", err)
	}
	inClass := make(map[string]struct{}, len(members))
	for _, id := range members {
		inClass[id] = struct{}{}
	}
	var outside []string
	for _, id := range studentIDs {
		if _, ok := inClass[id]; !ok {
			outside = append(outside, id)
		}
	}
	return outside, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := studentDetailSelect + `
        FROM students s LEFT JOIN classes c ON c.id = s.class_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUserID fetches the student linked to a login user.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := studentDetailSelect + `
        FROM students s LEFT JOIN classes c ON c.id = s.class_id
        WHERE s.user_id = $1 LIMIT 1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByCode checks if a student with given code exists optionally excluding an ID.
func (r *StudentRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE student_code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student code: %w", err)
	}
	return true, nil
}

// NextCode returns the next sequential student code with the given prefix.
func (r *StudentRepository) NextCode(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT COUNT(*) FROM students WHERE student_code LIKE $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, prefix+"%"); err != nil {
		return "", fmt.Errorf("next student code: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_code, saint_name, full_name, gender, birth_date, address, parent_phone, class_id, user_id, active, created_at, updated_at)
        VALUES (:id, :student_code, :saint_name, :full_name, :gender, :birth_date, :address, :parent_phone, :class_id, :user_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_code = :student_code, saint_name = :saint_name, full_name = :full_name, gender = :gender, birth_date = :birth_date, address = :address, parent_phone = :parent_phone, class_id = :class_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// LinkUser stores the login user created for the student.
func (r *StudentRepository) LinkUser(ctx context.Context, id, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET user_id = $2, updated_at = $3 WHERE id = $1`, id, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link student user: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
