package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type attendanceRecordRepository interface {
	List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecordDetail, error)
	Upsert(ctx context.Context, records []models.AttendanceRecord) error
}

// AttendanceRecordQuery carries raw query-string filters.
type AttendanceRecordQuery struct {
	ClassID   string
	StudentID string
	Date      string
	DateFrom  string
	DateTo    string
}

// AttendanceItem is one student's status in a bulk save.
type AttendanceItem struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
	Note      string `json:"note" validate:"omitempty,max=255"`
}

// SaveAttendanceRequest replaces the listed students' records for one class day.
type SaveAttendanceRequest struct {
	ClassID string           `json:"class_id" validate:"required"`
	Date    string           `json:"date" validate:"required,datetime=2006-01-02"`
	Items   []AttendanceItem `json:"items" validate:"required,min=1,dive"`
}

// AttendanceRecordService manages staff-entered catechism attendance.
type AttendanceRecordService struct {
	repo      attendanceRecordRepository
	classes   classAssignmentChecker
	roster    classRosterChecker
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceRecordService constructs the service.
func NewAttendanceRecordService(repo attendanceRecordRepository, classes classAssignmentChecker, roster classRosterChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceRecordService{repo: repo, classes: classes, roster: roster, cache: cache, validator: newDomainValidator(validate), logger: logger}
}

// List returns attendance records for a class.
func (s *AttendanceRecordService) List(ctx context.Context, claims *models.JWTClaims, q AttendanceRecordQuery) ([]models.AttendanceRecordDetail, error) {
	if q.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, q.ClassID); err != nil {
		return nil, err
	}
	filter := models.AttendanceRecordFilter{ClassID: q.ClassID, StudentID: q.StudentID}
	var err error
	if filter.Date, err = parseOptionalDate(q.Date, time.UTC); err != nil {
		return nil, err
	}
	if filter.DateFrom, err = parseOptionalDate(q.DateFrom, time.UTC); err != nil {
		return nil, err
	}
	if filter.DateTo, err = parseOptionalDate(q.DateTo, time.UTC); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Save upserts one record per item on (student, class, date).
func (s *AttendanceRecordService) Save(ctx context.Context, claims *models.JWTClaims, req SaveAttendanceRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Validation(err, "invalid attendance payload")
	}
	if err := ensureClassAccess(ctx, s.classes, claims, req.ClassID); err != nil {
		return 0, err
	}
	date, err := parseDate(req.Date, time.UTC)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(req.Items))
	records := make([]models.AttendanceRecord, 0, len(req.Items))
	for _, item := range req.Items {
		if _, dup := seen[item.StudentID]; dup {
			return 0, appErrors.Clone(appErrors.ErrValidation, "duplicate student in payload")
		}
		seen[item.StudentID] = struct{}{}
		records = append(records, models.AttendanceRecord{
			StudentID:  item.StudentID,
			ClassID:    req.ClassID,
			Date:       date,
			Status:     models.AttendanceStatus(item.Status),
			Note:       optionalString(item.Note),
			RecordedBy: claims.UserID,
		})
	}
	if err := ensureStudentsInClass(ctx, s.roster, req.ClassID, recordStudentIDs(records)); err != nil {
		return 0, err
	}
	if err := s.repo.Upsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	s.cache.InvalidateClass(ctx, req.ClassID)
	return len(records), nil
}

func recordStudentIDs(records []models.AttendanceRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.StudentID
	}
	return ids
}
