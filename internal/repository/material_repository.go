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

const materialColumns = `id, title, description, class_id, week_number, file_path, file_name, mime_type, size_bytes, uploaded_by, created_at`

// MaterialRepository handles learning material metadata persistence.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository constructs the repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// Create stores metadata for an uploaded material file.
func (r *MaterialRepository) Create(ctx context.Context, item *models.LearningMaterial) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO learning_materials
	(id, title, description, class_id, week_number, file_path, file_name, mime_type, size_bytes, uploaded_by, created_at)
	VALUES (:id, :title, :description, :class_id, :week_number, :file_path, :file_name, :mime_type, :size_bytes, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create learning material: %w", err)
	}
	return nil
}

// GetByID retrieves one material row.
func (r *MaterialRepository) GetByID(ctx context.Context, id string) (*models.LearningMaterial, error) {
	var item models.LearningMaterial
	if err := r.db.GetContext(ctx, &item, "SELECT "+materialColumns+" FROM learning_materials WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns materials ordered by week then upload time.
func (r *MaterialRepository) List(ctx context.Context, filter models.LearningMaterialFilter) ([]models.LearningMaterial, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + materialColumns + " FROM learning_materials")
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.WeekNumber != nil {
		args = append(args, *filter.WeekNumber)
		conditions = append(conditions, fmt.Sprintf("week_number = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY week_number ASC, created_at DESC")

	var items []models.LearningMaterial
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list learning materials: %w", err)
	}
	return items, nil
}

// Delete removes a material row.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM learning_materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete learning material: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check material delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
