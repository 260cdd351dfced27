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

const catechistColumns = `id, user_id, saint_name, full_name, phone, email, address, active, created_at, updated_at`

// CatechistRepository handles persistence for catechists (GLV).
type CatechistRepository struct {
	db *sqlx.DB
}

// NewCatechistRepository constructs a catechist repository.
func NewCatechistRepository(db *sqlx.DB) *CatechistRepository {
	return &CatechistRepository{db: db}
}

// List returns catechists matching filter criteria.
func (r *CatechistRepository) List(ctx context.Context, filter models.CatechistFilter) ([]models.Catechist, int, error) {
	base := "FROM catechists WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(COALESCE(email, '')) LIKE $%d OR COALESCE(phone, '') LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	column := sortColumn(filter.SortBy, map[string]string{
		"full_name":  "full_name",
		"created_at": "created_at",
	}, "full_name")
	order := sortOrder(filter.SortOrder, "ASC")
	_, size, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", catechistColumns, base, column, order, size, offset)
	var catechists []models.Catechist
	if err := r.db.SelectContext(ctx, &catechists, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list catechists: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count catechists: %w", err)
	}
	return catechists, total, nil
}

// FindByID loads a catechist by identifier.
func (r *CatechistRepository) FindByID(ctx context.Context, id string) (*models.Catechist, error) {
	var catechist models.Catechist
	if err := r.db.GetContext(ctx, &catechist, "SELECT "+catechistColumns+" FROM catechists WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &catechist, nil
}

// FindByUserID loads the catechist linked to a login user.
func (r *CatechistRepository) FindByUserID(ctx context.Context, userID string) (*models.Catechist, error) {
	var catechist models.Catechist
	if err := r.db.GetContext(ctx, &catechist, "SELECT "+catechistColumns+" FROM catechists WHERE user_id = $1 LIMIT 1", userID); err != nil {
		return nil, err
	}
	return &catechist, nil
}

// ExistsByEmail checks whether another catechist already uses the email.
func (r *CatechistRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := "SELECT 1 FROM catechists WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check catechist email: %w", err)
	}
	return true, nil
}

// Create inserts a catechist.
func (r *CatechistRepository) Create(ctx context.Context, catechist *models.Catechist) error {
	if catechist.ID == "" {
		catechist.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if catechist.CreatedAt.IsZero() {
		catechist.CreatedAt = now
	}
	catechist.UpdatedAt = now
	const query = `INSERT INTO catechists (id, user_id, saint_name, full_name, phone, email, address, active, created_at, updated_at)
        VALUES (:id, :user_id, :saint_name, :full_name, :phone, :email, :address, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, catechist); err != nil {
		return fmt.Errorf("create catechist: %w", err)
	}
	return nil
}

// Update modifies a catechist.
func (r *CatechistRepository) Update(ctx context.Context, catechist *models.Catechist) error {
	catechist.UpdatedAt = time.Now().UTC()
	const query = `UPDATE catechists SET saint_name = :saint_name, full_name = :full_name, phone = :phone, email = :email, address = :address, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, catechist); err != nil {
		return fmt.Errorf("update catechist: %w", err)
	}
	return nil
}

// LinkUser stores the login user created for the catechist.
func (r *CatechistRepository) LinkUser(ctx context.Context, id, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE catechists SET user_id = $2, updated_at = $3 WHERE id = $1`, id, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link catechist user: %w", err)
	}
	return nil
}

// Deactivate marks a catechist as inactive.
func (r *CatechistRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE catechists SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate catechist: %w", err)
	}
	return nil
}
