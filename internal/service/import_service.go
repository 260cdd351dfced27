package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/importer"
)

type importYearLookup interface {
	List(ctx context.Context) ([]models.AcademicYear, error)
	FindCurrent(ctx context.Context) (*models.AcademicYear, error)
}

type importClassRepository interface {
	ListByAcademicYear(ctx context.Context, academicYearID string) ([]models.Class, error)
	ExistsByName(ctx context.Context, academicYearID, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
}

type importCatechistRepository interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, catechist *models.Catechist) error
}

type studentCreator interface {
	Create(ctx context.Context, req StudentRequest) (*models.Student, error)
}

// ImportRowError explains why a data row was skipped.
type ImportRowError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ImportResult summarises one uploaded file.
type ImportResult struct {
	Total    int              `json:"total"`
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

// ImportService loads students, classes and catechists from CSV sheets.
type ImportService struct {
	years      importYearLookup
	classes    importClassRepository
	catechists importCatechistRepository
	students   studentCreator
	cache      *CacheService
	logger     *zap.Logger
}

// NewImportService constructs the import service.
func NewImportService(years importYearLookup, classes importClassRepository, catechists importCatechistRepository, students studentCreator, cache *CacheService, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{years: years, classes: classes, catechists: catechists, students: students, cache: cache, logger: logger}
}

// Template returns the filename and fixed CSV for kind ("classes" or "catechists").
func (s *ImportService) Template(kind string) (string, string, error) {
	switch kind {
	case "classes":
		return "mau_nhap_lop.csv", importer.ClassTemplate(), nil
	case "catechists":
		return "mau_nhap_glv.csv", importer.CatechistTemplate(), nil
	default:
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
}

// ImportStudents creates one student per valid row. Class names resolve
// within the current academic year; unknown names leave the student unassigned.
func (s *ImportService) ImportStudents(ctx context.Context, r io.Reader) (*ImportResult, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	rows := importer.ParseStudentRows(records)
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "")
	}

	classIDs := map[string]string{}
	current, err := s.years.FindCurrent(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current academic year")
	}
	if err == nil && current != nil {
		classes, err := s.classes.ListByAcademicYear(ctx, current.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
		}
		for _, c := range classes {
			classIDs[normaliseName(c.Name)] = c.ID
		}
	}

	result := &ImportResult{Total: len(records) - 1}
	for _, row := range rows {
		req := StudentRequest{
			SaintName: row.SaintName,
			FullName:  row.FullName,
			Gender:    row.Gender,
			BirthDate: row.BirthDate,
			Address:   row.Address,
			ClassID:   classIDs[normaliseName(row.ClassName)],
		}
		if _, err := s.students.Create(ctx, req); err != nil {
			result.Errors = append(result.Errors, ImportRowError{Name: row.FullName, Reason: appErrors.FromError(err).Message})
			s.logger.Warn("student import row skipped", zap.String("full_name", row.FullName), zap.Error(err))
			continue
		}
		result.Imported++
	}
	result.Skipped = result.Total - result.Imported
	return result, nil
}

// ImportClasses creates classes, skipping names already used in their year.
func (s *ImportService) ImportClasses(ctx context.Context, r io.Reader) (*ImportResult, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	rows := importer.ParseClassRows(records)
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "")
	}
	years, err := s.years.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic years")
	}
	yearIDs := make(map[string]string, len(years))
	currentID := ""
	for _, y := range years {
		yearIDs[normaliseName(y.Name)] = y.ID
		if y.IsCurrent {
			currentID = y.ID
		}
	}

	result := &ImportResult{Total: len(records) - 1}
	for _, row := range rows {
		yearID := currentID
		if row.AcademicYear != "" {
			yearID = yearIDs[normaliseName(row.AcademicYear)]
		}
		if yearID == "" {
			result.Errors = append(result.Errors, ImportRowError{Name: row.Name, Reason: "academic year not found"})
			continue
		}
		exists, err := s.classes.ExistsByName(ctx, yearID, row.Name, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
		}
		if exists {
			result.Errors = append(result.Errors, ImportRowError{Name: row.Name, Reason: "class already exists"})
			continue
		}
		class := &models.Class{Name: row.Name, AcademicYearID: yearID, Description: optionalString(row.Description)}
		if err := s.classes.Create(ctx, class); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
		}
		result.Imported++
	}
	result.Skipped = result.Total - result.Imported
	s.cache.InvalidateAggregates(ctx)
	return result, nil
}

// ImportCatechists creates catechists, skipping rows whose email is taken.
func (s *ImportService) ImportCatechists(ctx context.Context, r io.Reader) (*ImportResult, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	rows := importer.ParseCatechistRows(records)
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "")
	}

	result := &ImportResult{Total: len(records) - 1}
	for _, row := range rows {
		if row.Email != "" {
			exists, err := s.catechists.ExistsByEmail(ctx, row.Email, "")
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
			}
			if exists {
				result.Errors = append(result.Errors, ImportRowError{Name: row.FullName, Reason: "email already used"})
				continue
			}
		}
		catechist := &models.Catechist{
			SaintName: optionalString(row.SaintName),
			FullName:  row.FullName,
			Phone:     optionalString(row.Phone),
			Email:     optionalString(row.Email),
			Address:   optionalString(row.Address),
			Active:    true,
		}
		if err := s.catechists.Create(ctx, catechist); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create catechist")
		}
		result.Imported++
	}
	result.Skipped = result.Total - result.Imported
	return result, nil
}

func readRecords(r io.Reader) ([][]string, error) {
	records, err := importer.ParseCSVReader(r)
	if err != nil {
		if errors.Is(err, importer.ErrEmpty) {
			return nil, appErrors.Clone(appErrors.ErrNoData, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrNoData.Code, appErrors.ErrNoData.Status, appErrors.ErrNoData.Message)
	}
	if len(records) < 2 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "")
	}
	return records, nil
}

func normaliseName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
