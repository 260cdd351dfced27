package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type reportClassLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type reportStudentLookup interface {
	ListByClass(ctx context.Context, classID string) ([]models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type reportAttendanceSource interface {
	List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecordDetail, error)
}

type reportMassSource interface {
	List(ctx context.Context, filter models.MassAttendanceFilter) ([]models.MassAttendance, error)
}

type reportScoreSource interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
}

// ReportServiceConfig tunes report caching.
type ReportServiceConfig struct {
	CacheTTL time.Duration
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Classes    reportClassLookup
	Students   reportStudentLookup
	Attendance reportAttendanceSource
	Mass       reportMassSource
	Scores     reportScoreSource
	Access     classAssignmentChecker
	Cache      *CacheService
	Logger     *zap.Logger
	Config     ReportServiceConfig
}

// ReportService computes attendance, Mass and score aggregates.
type ReportService struct {
	classes    reportClassLookup
	students   reportStudentLookup
	attendance reportAttendanceSource
	mass       reportMassSource
	scores     reportScoreSource
	access     classAssignmentChecker
	cache      *CacheService
	logger     *zap.Logger
	cfg        ReportServiceConfig
	now        func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		classes:    params.Classes,
		students:   params.Students,
		attendance: params.Attendance,
		mass:       params.Mass,
		scores:     params.Scores,
		access:     params.Access,
		cache:      params.Cache,
		logger:     logger,
		cfg:        params.Config,
		now:        time.Now,
	}
}

// AttendanceRate is the rounded percentage of present or late records; 0 without records.
func AttendanceRate(statuses []models.AttendanceStatus) int {
	if len(statuses) == 0 {
		return 0
	}
	attended := 0
	for _, st := range statuses {
		if st.Attended() {
			attended++
		}
	}
	return percent(attended, len(statuses))
}

// MassRate is the rounded percentage of attended Mass records; 0 without records.
func MassRate(attended []bool) int {
	if len(attended) == 0 {
		return 0
	}
	count := 0
	for _, a := range attended {
		if a {
			count++
		}
	}
	return percent(count, len(attended))
}

// ScoreAverage is the mean of the scores present. Missing types are
// excluded rather than counted as zero; nil when there are none.
func ScoreAverage(scores []models.Score) *float64 {
	if len(scores) == 0 {
		return nil
	}
	var sum float64
	for _, sc := range scores {
		sum += sc.Score
	}
	avg := sum / float64(len(scores))
	return &avg
}

// ClassAverages is the unweighted mean of per-student values. The score
// average only covers students that have at least one score.
func ClassAverages(rows []models.StudentReportRow) (attendance, mass float64, score *float64) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	var scoreSum float64
	scored := 0
	for _, row := range rows {
		attendance += float64(row.AttendanceRate)
		mass += float64(row.MassRate)
		if row.ScoreAverage != nil {
			scoreSum += *row.ScoreAverage
			scored++
		}
	}
	attendance /= float64(len(rows))
	mass /= float64(len(rows))
	if scored > 0 {
		avg := scoreSum / float64(scored)
		score = &avg
	}
	return attendance, mass, score
}

func percent(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}

// ClassSummary returns the per-student rows and class averages. The bool
// reports whether the payload came from cache.
func (s *ReportService) ClassSummary(ctx context.Context, claims *models.JWTClaims, classID string) (*models.ClassReportSummary, bool, error) {
	if err := ensureClassAccess(ctx, s.access, claims, classID); err != nil {
		return nil, false, err
	}
	return readThrough(ctx, s.cache, reportCacheKey(classID), s.cfg.CacheTTL, func(ctx context.Context) (*models.ClassReportSummary, error) {
		return s.buildClassSummary(ctx, classID)
	})
}

func (s *ReportService) buildClassSummary(ctx context.Context, classID string) (*models.ClassReportSummary, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	students, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	data, err := s.load(ctx, classID, "")
	if err != nil {
		return nil, err
	}

	rows := make([]models.StudentReportRow, 0, len(students))
	for _, st := range students {
		rows = append(rows, data.row(st))
	}
	summary := &models.ClassReportSummary{
		ClassID:     class.ID,
		ClassName:   class.Name,
		Students:    rows,
		GeneratedAt: s.now().UTC(),
	}
	summary.AverageAttendanceRate, summary.AverageMassRate, summary.AverageScore = ClassAverages(rows)
	return summary, nil
}

// StudentSummary returns the calling student's own row.
func (s *ReportService) StudentSummary(ctx context.Context, claims *models.JWTClaims) (*models.StudentReportRow, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	student, err := s.students.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassID == nil {
		row := models.StudentReportRow{StudentID: student.ID, SaintName: student.SaintName, FullName: student.FullName}
		return &row, nil
	}
	data, err := s.load(ctx, *student.ClassID, student.ID)
	if err != nil {
		return nil, err
	}
	row := data.row(*student)
	return &row, nil
}

type reportData struct {
	attendance map[string][]models.AttendanceStatus
	mass       map[string][]bool
	scores     map[string][]models.Score
}

func (s *ReportService) load(ctx context.Context, classID, studentID string) (*reportData, error) {
	records, err := s.attendance.List(ctx, models.AttendanceRecordFilter{ClassID: classID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	mass, err := s.mass.List(ctx, models.MassAttendanceFilter{ClassID: classID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mass attendance")
	}
	scores, err := s.scores.List(ctx, models.ScoreFilter{ClassID: classID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}

	data := &reportData{
		attendance: make(map[string][]models.AttendanceStatus),
		mass:       make(map[string][]bool),
		scores:     make(map[string][]models.Score),
	}
	for _, r := range records {
		data.attendance[r.StudentID] = append(data.attendance[r.StudentID], r.Status)
	}
	for _, m := range mass {
		data.mass[m.StudentID] = append(data.mass[m.StudentID], m.Attended)
	}
	for _, sc := range scores {
		data.scores[sc.StudentID] = append(data.scores[sc.StudentID], sc)
	}
	return data, nil
}

func (d *reportData) row(st models.StudentDetail) models.StudentReportRow {
	statuses := d.attendance[st.ID]
	mass := d.mass[st.ID]
	return models.StudentReportRow{
		StudentID:       st.ID,
		SaintName:       st.SaintName,
		FullName:        st.FullName,
		AttendanceTotal: len(statuses),
		AttendanceRate:  AttendanceRate(statuses),
		MassTotal:       len(mass),
		MassRate:        MassRate(mass),
		ScoreAverage:    ScoreAverage(d.scores[st.ID]),
	}
}
