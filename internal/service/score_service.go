package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type scoreRepository interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
	Upsert(ctx context.Context, scores []models.Score) error
}

// ScoreItem is one graded component for a student.
type ScoreItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Type      string  `json:"type" validate:"required,score_type"`
	Score     float64 `json:"score" validate:"gte=0"`
	MaxScore  float64 `json:"max_score" validate:"gt=0"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
}

// SaveScoresRequest upserts scores for one class.
type SaveScoresRequest struct {
	ClassID string      `json:"class_id" validate:"required"`
	Items   []ScoreItem `json:"items" validate:"required,min=1,dive"`
}

// ScoreService manages graded components.
type ScoreService struct {
	repo      scoreRepository
	classes   classAssignmentChecker
	roster    classRosterChecker
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoreService constructs the score service.
func NewScoreService(repo scoreRepository, classes classAssignmentChecker, roster classRosterChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{repo: repo, classes: classes, roster: roster, cache: cache, validator: newDomainValidator(validate), logger: logger}
}

// List returns scores of a class, optionally for one student.
func (s *ScoreService) List(ctx context.Context, claims *models.JWTClaims, filter models.ScoreFilter) ([]models.Score, error) {
	if filter.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, filter.ClassID); err != nil {
		return nil, err
	}
	scores, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	return scores, nil
}

// Save upserts scores on (student, class, type).
func (s *ScoreService) Save(ctx context.Context, claims *models.JWTClaims, req SaveScoresRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Validation(err, "invalid score payload")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, req.ClassID); err != nil {
		return 0, err
	}
	scores := make([]models.Score, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Score > item.MaxScore {
			return 0, appErrors.Clone(appErrors.ErrValidation, "score cannot exceed max_score")
		}
		date, err := parseDate(item.Date, time.UTC)
		if err != nil {
			return 0, err
		}
		scores = append(scores, models.Score{
			StudentID: item.StudentID,
			ClassID:   req.ClassID,
			Type:      models.ScoreType(item.Type),
			Score:     item.Score,
			MaxScore:  item.MaxScore,
			Date:      date,
			GradedBy:  claims.UserID,
		})
	}
	ids := make([]string, 0, len(scores))
	seen := make(map[string]struct{}, len(scores))
	for _, sc := range scores {
		if _, ok := seen[sc.StudentID]; !ok {
			seen[sc.StudentID] = struct{}{}
			ids = append(ids, sc.StudentID)
		}
	}
	if err := ensureStudentsInClass(ctx, s.roster, req.ClassID, ids); err != nil {
		return 0, err
	}
	if err := s.repo.Upsert(ctx, scores); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save scores")
	}
	s.cache.InvalidateClass(ctx, req.ClassID)
	return len(scores), nil
}
