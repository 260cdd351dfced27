package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/giaoly-api/internal/models"
)

// ScoreRepository persists graded components.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs the repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// List returns scores matching the filter.
func (r *ScoreRepository) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	base := "SELECT id, student_id, class_id, type, score, max_score, date, graded_by, created_at, updated_at FROM scores WHERE 1=1"
	var conditions []string
	var args []interface{}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, base+" ORDER BY student_id, type", args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// Upsert writes every score keyed by (student_id, class_id, type) in one transaction.
func (r *ScoreRepository) Upsert(ctx context.Context, scores []models.Score) (err error) {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin score upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO scores (id, student_id, class_id, type, score, max_score, date, graded_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
        ON CONFLICT (student_id, class_id, type) DO UPDATE SET score = EXCLUDED.score, max_score = EXCLUDED.max_score, date = EXCLUDED.date, graded_by = EXCLUDED.graded_by, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	now := time.Now().UTC()
	for i := range scores {
		s := &scores[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if err = tx.QueryRowxContext(ctx, query, s.ID, s.StudentID, s.ClassID, s.Type, s.Score, s.MaxScore, s.Date, s.GradedBy, now).
			Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("upsert score for student %s: %w", s.StudentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit score upsert: %w", err)
	}
	return nil
}
