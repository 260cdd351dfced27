package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/pkg/calendar"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/importer"
)

const studentCodePrefix = "HV"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	ListByClass(ctx context.Context, classID string) ([]models.StudentDetail, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	NextCode(ctx context.Context, prefix string) (string, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type studentClassLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

// StudentRequest holds the payload for creating or updating students.
type StudentRequest struct {
	StudentCode string `json:"student_code" validate:"omitempty,max=30"`
	SaintName   string `json:"saint_name"`
	FullName    string `json:"full_name" validate:"required,max=150"`
	Gender      string `json:"gender" validate:"required,gender"`
	BirthDate   string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Address     string `json:"address"`
	ParentPhone string `json:"parent_phone" validate:"omitempty,max=20"`
	ClassID     string `json:"class_id"`
	Active      *bool  `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	classes   studentClassLookup
	validator *validator.Validate
	logger    *zap.Logger
	cache     *CacheService
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes studentClassLookup, validate *validator.Validate, logger *zap.Logger, cache *CacheService) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		classes:   classes,
		validator: newDomainValidator(validate),
		logger:    logger,
		cache:     cache,
		now:       time.Now,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ForUser resolves the student linked to a login account.
func (s *StudentService) ForUser(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student, generating a code when none is given.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.StudentCode)
	if code == "" {
		next, err := s.repo.NextCode(ctx, fmt.Sprintf("%s%d", studentCodePrefix, s.now().Year()))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate student code")
		}
		code = next
	}
	if err := s.ensureCodeFree(ctx, code, ""); err != nil {
		return nil, err
	}
	student := &models.Student{StudentCode: code, Active: true}
	if err := applyStudent(student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.cache.InvalidateAggregates(ctx)
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	student := detail.Student
	if code := strings.TrimSpace(req.StudentCode); code != "" && code != student.StudentCode {
		if err := s.ensureCodeFree(ctx, code, id); err != nil {
			return nil, err
		}
		student.StudentCode = code
	}
	if err := applyStudent(&student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.cache.InvalidateAggregates(ctx)
	return &student, nil
}

// Deactivate marks student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.cache.InvalidateAggregates(ctx)
	return nil
}

// ExportCSV renders the roster of a class (or every active student) in the import sheet layout.
func (s *StudentService) ExportCSV(ctx context.Context, classID string) (string, error) {
	var (
		students []models.StudentDetail
		err      error
	)
	if classID != "" {
		students, err = s.repo.ListByClass(ctx, classID)
	} else {
		active := true
		students, _, err = s.repo.List(ctx, models.StudentFilter{Active: &active, Page: 1, PageSize: 100})
	}
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students for export")
	}
	rows := make([]importer.StudentRow, 0, len(students))
	for _, st := range students {
		row := importer.StudentRow{
			FullName:  st.FullName,
			Gender:    st.Gender,
			SaintName: deref(st.SaintName),
			Address:   deref(st.Address),
			ClassName: deref(st.ClassName),
		}
		if st.BirthDate != nil {
			row.BirthDate = st.BirthDate.Format(calendar.DateLayout)
		}
		rows = append(rows, row)
	}
	return importer.GenerateStudentCSV(rows), nil
}

func (s *StudentService) validate(ctx context.Context, req StudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid student payload")
	}
	if req.ClassID == "" || s.classes == nil {
		return nil
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return nil
}

func (s *StudentService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "student code already used")
	}
	return nil
}

func applyStudent(st *models.Student, req StudentRequest) error {
	birth, err := parseOptionalDate(req.BirthDate, time.UTC)
	if err != nil {
		return err
	}
	st.SaintName = optionalString(req.SaintName)
	st.FullName = strings.TrimSpace(req.FullName)
	st.Gender = req.Gender
	st.BirthDate = birth
	st.Address = optionalString(req.Address)
	st.ParentPhone = optionalString(req.ParentPhone)
	st.ClassID = optionalString(req.ClassID)
	if req.Active != nil {
		st.Active = *req.Active
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
