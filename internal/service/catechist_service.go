package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type catechistRepository interface {
	List(ctx context.Context, filter models.CatechistFilter) ([]models.Catechist, int, error)
	FindByID(ctx context.Context, id string) (*models.Catechist, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, catechist *models.Catechist) error
	Update(ctx context.Context, catechist *models.Catechist) error
	Deactivate(ctx context.Context, id string) error
}

// CatechistRequest is the payload for creating or updating catechists.
type CatechistRequest struct {
	SaintName string `json:"saint_name"`
	FullName  string `json:"full_name" validate:"required,max=150"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address"`
	Active    *bool  `json:"active"`
}

// CatechistService handles catechist records.
type CatechistService struct {
	repo      catechistRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatechistService constructs the catechist service.
func NewCatechistService(repo catechistRepository, validate *validator.Validate, logger *zap.Logger) *CatechistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatechistService{repo: repo, validator: newDomainValidator(validate), logger: logger}
}

// List returns catechists and pagination metadata.
func (s *CatechistService) List(ctx context.Context, filter models.CatechistFilter) ([]models.Catechist, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catechists")
	}
	return items, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get loads a catechist.
func (s *CatechistService) Get(ctx context.Context, id string) (*models.Catechist, error) {
	catechist, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "catechist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catechist")
	}
	return catechist, nil
}

// Create registers a catechist.
func (s *CatechistService) Create(ctx context.Context, req CatechistRequest) (*models.Catechist, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	catechist := &models.Catechist{Active: true}
	applyCatechist(catechist, req)
	if err := s.repo.Create(ctx, catechist); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create catechist")
	}
	return catechist, nil
}

// Update modifies a catechist.
func (s *CatechistService) Update(ctx context.Context, id string, req CatechistRequest) (*models.Catechist, error) {
	catechist, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	applyCatechist(catechist, req)
	if err := s.repo.Update(ctx, catechist); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update catechist")
	}
	return catechist, nil
}

// Deactivate marks a catechist inactive; their history is kept.
func (s *CatechistService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate catechist")
	}
	return nil
}

func (s *CatechistService) validate(ctx context.Context, req CatechistRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid catechist payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil
	}
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

func applyCatechist(c *models.Catechist, req CatechistRequest) {
	c.SaintName = optionalString(req.SaintName)
	c.FullName = strings.TrimSpace(req.FullName)
	c.Phone = optionalString(req.Phone)
	c.Email = optionalString(strings.ToLower(req.Email))
	c.Address = optionalString(req.Address)
	if req.Active != nil {
		c.Active = *req.Active
	}
}
