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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsByName(ctx context.Context, academicYearID, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	AssignCatechist(ctx context.Context, assignment *models.ClassCatechist) error
	UnassignCatechist(ctx context.Context, classID, catechistID string) (bool, error)
	ListCatechists(ctx context.Context, classID string) ([]models.ClassCatechistDetail, error)
}

type classCatechistLookup interface {
	FindByID(ctx context.Context, id string) (*models.Catechist, error)
}

type classYearLookup interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

// ClassRequest is the payload for creating or updating a class.
type ClassRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	Description    string `json:"description"`
}

// AssignCatechistRequest links a catechist to a class.
type AssignCatechistRequest struct {
	CatechistID string `json:"catechist_id" validate:"required"`
	IsPrimary   bool   `json:"is_primary"`
}

// ClassService handles class management and catechist assignment.
type ClassService struct {
	repo       classRepository
	catechists classCatechistLookup
	years      classYearLookup
	validator  *validator.Validate
	logger     *zap.Logger
	cache      *CacheService
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, catechists classCatechistLookup, years classYearLookup, validate *validator.Validate, logger *zap.Logger, cache *CacheService) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		repo:       repo,
		catechists: catechists,
		years:      years,
		validator:  newDomainValidator(validate),
		logger:     logger,
		cache:      cache,
	}
}

// List returns classes and pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a class with its roster size.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a class within an academic year.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.Class, error) {
	if err := s.validate(ctx, req, ""); err != nil {
		return nil, err
	}
	class := &models.Class{
		Name:           strings.TrimSpace(req.Name),
		AcademicYearID: req.AcademicYearID,
		Description:    optionalString(req.Description),
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.cache.InvalidateAggregates(ctx)
	return class, nil
}

// Update modifies a class.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.Class, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req, id); err != nil {
		return nil, err
	}
	class := detail.Class
	class.Name = strings.TrimSpace(req.Name)
	class.AcademicYearID = req.AcademicYearID
	class.Description = optionalString(req.Description)
	if err := s.repo.Update(ctx, &class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	s.cache.InvalidateAggregates(ctx)
	return &class, nil
}

// Delete removes a class that has no enrolled students.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if detail.StudentCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class still has students")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.cache.InvalidateAggregates(ctx)
	return nil
}

// Catechists lists the catechists assigned to a class.
func (s *ClassService) Catechists(ctx context.Context, classID string) ([]models.ClassCatechistDetail, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListCatechists(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class catechists")
	}
	return items, nil
}

// AssignCatechist links a catechist to a class, updating the primary flag when already linked.
func (s *ClassService) AssignCatechist(ctx context.Context, classID string, req AssignCatechistRequest) (*models.ClassCatechist, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid assignment payload")
	}
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	catechist, err := s.catechists.FindByID(ctx, req.CatechistID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "catechist not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catechist")
	}
	if !catechist.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "catechist is inactive")
	}
	assignment := &models.ClassCatechist{ClassID: classID, CatechistID: req.CatechistID, IsPrimary: req.IsPrimary}
	if err := s.repo.AssignCatechist(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign catechist")
	}
	return assignment, nil
}

// UnassignCatechist removes a catechist from a class.
func (s *ClassService) UnassignCatechist(ctx context.Context, classID, catechistID string) error {
	removed, err := s.repo.UnassignCatechist(ctx, classID, catechistID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign catechist")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return nil
}

func (s *ClassService) validate(ctx context.Context, req ClassRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid class payload")
	}
	if s.years != nil {
		if _, err := s.years.FindByID(ctx, req.AcademicYearID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "academic year not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
		}
	}
	exists, err := s.repo.ExistsByName(ctx, req.AcademicYearID, strings.TrimSpace(req.Name), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "class name already used in this academic year")
	}
	return nil
}
