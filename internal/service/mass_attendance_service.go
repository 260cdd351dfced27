package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	"github.com/noah-isme/giaoly-api/pkg/calendar"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type massAttendanceRepository interface {
	List(ctx context.Context, filter models.MassAttendanceFilter) ([]models.MassAttendance, error)
	Upsert(ctx context.Context, records []models.MassAttendance) error
	Replace(ctx context.Context, record *models.MassAttendance) (*string, error)
}

// MassItem marks one student's Mass attendance.
type MassItem struct {
	StudentID string `json:"student_id" validate:"required"`
	Attended  bool   `json:"attended"`
}

// SaveMassRequest upserts Mass attendance for one Sunday.
type SaveMassRequest struct {
	ClassID string     `json:"class_id" validate:"required"`
	Date    string     `json:"date" validate:"required,datetime=2006-01-02"`
	Items   []MassItem `json:"items" validate:"required,min=1,dive"`
}

// MassAttendanceQuery carries raw list filters.
type MassAttendanceQuery struct {
	ClassID  string
	DateFrom string
	DateTo   string
}

// MassSelfReport is the result of a student's own Mass report.
type MassSelfReport struct {
	Record              *models.MassAttendance `json:"record"`
	ReplacedStaffRecord bool                   `json:"replaced_staff_record"`
}

// MassAttendanceService manages Sunday Mass attendance.
type MassAttendanceService struct {
	repo      massAttendanceRepository
	students  studentByUserLookup
	classes   classAssignmentChecker
	roster    classRosterChecker
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewMassAttendanceService constructs the service.
func NewMassAttendanceService(repo massAttendanceRepository, students studentByUserLookup, classes classAssignmentChecker, roster classRosterChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger, location *time.Location) *MassAttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &MassAttendanceService{
		repo:      repo,
		students:  students,
		classes:   classes,
		roster:    roster,
		cache:     cache,
		validator: newDomainValidator(validate),
		logger:    logger,
		location:  location,
		now:       time.Now,
	}
}

// List returns Mass attendance of a class within an optional date range.
func (s *MassAttendanceService) List(ctx context.Context, claims *models.JWTClaims, q MassAttendanceQuery) ([]models.MassAttendance, error) {
	if q.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, q.ClassID); err != nil {
		return nil, err
	}
	filter := models.MassAttendanceFilter{ClassID: q.ClassID}
	var err error
	if filter.DateFrom, err = parseOptionalDate(q.DateFrom, time.UTC); err != nil {
		return nil, err
	}
	if filter.DateTo, err = parseOptionalDate(q.DateTo, time.UTC); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mass attendance")
	}
	return items, nil
}

// Save upserts staff-entered Mass attendance on (student, date).
func (s *MassAttendanceService) Save(ctx context.Context, claims *models.JWTClaims, req SaveMassRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Validation(err, "invalid mass attendance payload")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, req.ClassID); err != nil {
		return 0, err
	}
	date, err := parseDate(req.Date, time.UTC)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(req.Items))
	ids := make([]string, 0, len(req.Items))
	records := make([]models.MassAttendance, 0, len(req.Items))
	for _, item := range req.Items {
		if _, dup := seen[item.StudentID]; dup {
			return 0, appErrors.Clone(appErrors.ErrValidation, "duplicate student in payload")
		}
		seen[item.StudentID] = struct{}{}
		ids = append(ids, item.StudentID)
		records = append(records, models.MassAttendance{
			StudentID:  item.StudentID,
			Date:       date,
			Attended:   item.Attended,
			RecordedBy: claims.UserID,
		})
	}
	// Mass rows carry no class, so an unchecked id would overwrite another class's student.
	if err := ensureStudentsInClass(ctx, s.roster, req.ClassID, ids); err != nil {
		return 0, err
	}
	if err := s.repo.Upsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mass attendance")
	}
	s.cache.InvalidateClass(ctx, req.ClassID)
	return len(records), nil
}

// SelfReport records that the calling student attended Mass on the current
// Sunday. A row entered by staff is replaced and the response says so.
func (s *MassAttendanceService) SelfReport(ctx context.Context, claims *models.JWTClaims) (*MassSelfReport, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := s.students.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	sunday := calendar.MostRecentSunday(s.now().In(s.location))
	record := &models.MassAttendance{
		StudentID:  student.ID,
		Date:       time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 0, 0, 0, 0, time.UTC),
		Attended:   true,
		RecordedBy: claims.UserID,
	}
	previous, err := s.repo.Replace(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record mass attendance")
	}
	replaced := previous != nil && *previous != claims.UserID
	if replaced {
		s.logger.Info("student self-report replaced staff mass record",
			zap.String("student_id", student.ID),
			zap.String("previous_recorder", *previous))
	}
	if student.ClassID != nil {
		s.cache.InvalidateClass(ctx, *student.ClassID)
	}
	return &MassSelfReport{Record: record, ReplacedStaffRecord: replaced}, nil
}
