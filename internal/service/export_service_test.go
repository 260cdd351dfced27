package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
	"github.com/noah-isme/giaoly-api/pkg/export"
)

type windowAttendanceSource struct {
	records []models.AttendanceRecordDetail
	filter  models.AttendanceRecordFilter
}

func (w *windowAttendanceSource) List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecordDetail, error) {
	w.filter = filter
	return w.records, nil
}

type stubRenderer struct {
	table export.Table
}

func (s *stubRenderer) Render(table export.Table) ([]byte, error) {
	s.table = table
	return []byte("%PDF-1.3"), nil
}

func newTestExportService(attendance *windowAttendanceSource, pdf *stubRenderer) *ExportService {
	may12 := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	roster := &fakeRoster{byClass: map[string][]models.StudentDetail{
		"c1": {
			{Student: models.Student{ID: "st1", FullName: "Nguyễn Văn An", SaintName: strPtr("Phêrô")}},
			{Student: models.Student{ID: "st2", FullName: "Trần Thị Bình"}},
		},
	}}
	return NewExportService(ExportServiceParams{
		Classes:    &fakeClassLookup{classes: map[string]models.ClassDetail{"c1": {Class: models.Class{ID: "c1", Name: "Xưng Tội 1"}}, "empty": {Class: models.Class{ID: "empty", Name: "Trống"}}}},
		Students:   roster,
		Attendance: attendance,
		Mass:       &fakeMassSource{records: []models.MassAttendance{{StudentID: "st1", Date: may12, Attended: true}}},
		Access:     &fakeAssignments{},
		PDF:        pdf,
	})
}

func TestExportServiceMonthlyAttendanceCSV(t *testing.T) {
	may12 := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	attendance := &windowAttendanceSource{records: []models.AttendanceRecordDetail{
		{AttendanceRecord: models.AttendanceRecord{StudentID: "st1", Date: may12, Status: models.AttendanceStatusPresent}},
	}}
	svc := newTestExportService(attendance, &stubRenderer{})

	file, err := svc.MonthlyAttendance(context.Background(), adminClaims(), MonthlyReportRequest{ClassID: "c1", Year: 2024, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, "diem_danh_Xung_Toi_1_thang_5_2024.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("\ufeff")))
	assert.Contains(t, string(file.Data), "Nguyễn Văn An")

	require.NotNil(t, attendance.filter.DateFrom)
	require.NotNil(t, attendance.filter.DateTo)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *attendance.filter.DateFrom)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), *attendance.filter.DateTo)
}

func TestExportServiceMonthlyAttendancePDF(t *testing.T) {
	pdf := &stubRenderer{}
	svc := newTestExportService(&windowAttendanceSource{}, pdf)

	file, err := svc.MonthlyAttendance(context.Background(), adminClaims(), MonthlyReportRequest{ClassID: "c1", Year: 2024, Month: 0, Format: "PDF"})
	require.NoError(t, err)
	assert.Equal(t, "diem_danh_Xung_Toi_1_thang_1_2024.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Len(t, pdf.table.Rows, 2)
}

func TestExportServiceMonthlyAttendanceRejects(t *testing.T) {
	svc := newTestExportService(&windowAttendanceSource{}, &stubRenderer{})

	cases := []struct {
		name string
		req  MonthlyReportRequest
		code string
	}{
		{name: "month too large", req: MonthlyReportRequest{ClassID: "c1", Year: 2024, Month: 12}, code: appErrors.ErrValidation.Code},
		{name: "bad format", req: MonthlyReportRequest{ClassID: "c1", Year: 2024, Month: 1, Format: "xlsx"}, code: appErrors.ErrValidation.Code},
		{name: "bad year", req: MonthlyReportRequest{ClassID: "c1", Year: 24, Month: 1}, code: appErrors.ErrValidation.Code},
		{name: "no students", req: MonthlyReportRequest{ClassID: "empty", Year: 2024, Month: 1}, code: appErrors.ErrNoData.Code},
		{name: "unknown class", req: MonthlyReportRequest{ClassID: "nope", Year: 2024, Month: 1}, code: appErrors.ErrNotFound.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.MonthlyAttendance(context.Background(), adminClaims(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}
