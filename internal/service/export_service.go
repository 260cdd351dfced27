package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/export"
)

// Supported monthly report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type exportStudentLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.StudentDetail, error)
}

// MonthlyReportRequest selects the class and month; Month is zero-based.
type MonthlyReportRequest struct {
	ClassID string
	Year    int
	Month   int
	Format  string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Classes    reportClassLookup
	Students   exportStudentLister
	Attendance reportAttendanceSource
	Mass       reportMassSource
	Access     classAssignmentChecker
	CSV        tableRenderer
	PDF        tableRenderer
	Location   *time.Location
	Logger     *zap.Logger
}

// ExportService renders the monthly attendance sheet.
type ExportService struct {
	classes    reportClassLookup
	students   exportStudentLister
	attendance reportAttendanceSource
	mass       reportMassSource
	access     classAssignmentChecker
	csv        tableRenderer
	pdf        tableRenderer
	location   *time.Location
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	svc := &ExportService{
		classes:    params.Classes,
		students:   params.Students,
		attendance: params.Attendance,
		mass:       params.Mass,
		access:     params.Access,
		csv:        params.CSV,
		pdf:        params.PDF,
		location:   params.Location,
		logger:     params.Logger,
	}
	if svc.csv == nil {
		svc.csv = export.NewCSVExporter()
	}
	if svc.pdf == nil {
		svc.pdf = export.NewPDFExporter()
	}
	if svc.location == nil {
		svc.location = time.UTC
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// MonthlyAttendance builds the TL/GL sheet for one class and month.
func (s *ExportService) MonthlyAttendance(ctx context.Context, claims *models.JWTClaims, req MonthlyReportRequest) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ReportFormatCSV
	}
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if req.Month < 0 || req.Month > 11 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 0 and 11")
	}
	if req.Year < 2000 || req.Year > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year out of range")
	}
	if err := ensureClassAccess(ctx, s.access, claims, req.ClassID); err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	students, err := s.students.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoData, "")
	}

	from := time.Date(req.Year, time.Month(req.Month+1), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	records, err := s.attendance.List(ctx, models.AttendanceRecordFilter{ClassID: req.ClassID, DateFrom: &from, DateTo: &to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	mass, err := s.mass.List(ctx, models.MassAttendanceFilter{ClassID: req.ClassID, DateFrom: &from, DateTo: &to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mass attendance")
	}

	input := export.AttendanceReportInput{
		ClassName:  class.Name,
		Year:       req.Year,
		Month:      req.Month,
		Location:   s.location,
		Students:   make([]export.ReportStudent, 0, len(students)),
		Attendance: make([]export.AttendanceMark, 0, len(records)),
		Mass:       make([]export.MassMark, 0, len(mass)),
	}
	for _, st := range students {
		input.Students = append(input.Students, export.ReportStudent{ID: st.ID, SaintName: deref(st.SaintName), FullName: st.FullName})
	}
	for _, r := range records {
		input.Attendance = append(input.Attendance, export.AttendanceMark{StudentID: r.StudentID, Date: r.Date, Status: string(r.Status)})
	}
	for _, m := range mass {
		input.Mass = append(input.Mass, export.MassMark{StudentID: m.StudentID, Date: m.Date, Attended: m.Attended})
	}
	table := export.BuildAttendanceReport(input)

	file := &ExportFile{Filename: export.AttendanceReportFilename(export.SafeFilename(class.Name), req.Month, req.Year, format)}
	switch format {
	case ReportFormatPDF:
		file.ContentType = export.PDFContentType
		file.Data, err = s.pdf.Render(table)
	default:
		file.ContentType = export.CSVContentType
		file.Data, err = s.csv.Render(table)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Debug("monthly attendance exported",
		zap.String("class_id", req.ClassID),
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.String("format", format))
	return file, nil
}
