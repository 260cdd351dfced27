package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildAttendanceReport(t *testing.T) {
	table := BuildAttendanceReport(AttendanceReportInput{
		ClassName: "Ấu Nhi 1A",
		Year:      2024,
		Month:     11,
		Students: []ReportStudent{
			{ID: "s1", SaintName: "Maria", FullName: "Nguyễn Thị An"},
			{ID: "s2", SaintName: "Giuse", FullName: "Trần Văn Bình"},
		},
		Attendance: []AttendanceMark{
			{StudentID: "s1", Date: day(2024, 12, 1), Status: "present"},
			{StudentID: "s1", Date: day(2024, 12, 8), Status: "late"},
			{StudentID: "s2", Date: day(2024, 12, 1), Status: "absent"},
			{StudentID: "s2", Date: day(2024, 12, 8), Status: "excused"},
		},
		Mass: []MassMark{
			{StudentID: "s1", Date: day(2024, 12, 1), Attended: true},
			{StudentID: "s2", Date: day(2024, 12, 15), Attended: true},
			{StudentID: "s2", Date: day(2024, 12, 22), Attended: false},
		},
		Location: time.UTC,
	})

	require.Len(t, table.HeaderRows, 3)
	width := 3 + 5*3
	for _, row := range table.HeaderRows {
		assert.Len(t, row, width)
	}
	assert.Contains(t, table.HeaderRows[0][0], "THÁNG 12/2024")
	assert.Equal(t, "01/12", table.HeaderRows[1][3])
	assert.Equal(t, "29/12", table.HeaderRows[1][15])
	assert.Equal(t, []string{"TL", "GL", "ĐIỂM"}, table.HeaderRows[2][3:6])

	require.Len(t, table.Rows, 2)
	first := table.Rows[0]
	assert.Equal(t, []string{"1", "Maria", "Nguyễn Thị An"}, first[:3])
	assert.Equal(t, []string{"x", "x", ""}, first[3:6])
	assert.Equal(t, []string{"", "x", ""}, first[6:9])

	second := table.Rows[1]
	assert.Equal(t, []string{"", "", ""}, second[3:6])
	assert.Equal(t, []string{"", "", ""}, second[6:9])
	assert.Equal(t, []string{"x", "", ""}, second[9:12])
	assert.Equal(t, []string{"", "", ""}, second[12:15])
}

func TestAttendanceReportFilename(t *testing.T) {
	assert.Equal(t, "diem_danh_Ấu Nhi 1A_thang_12_2024.csv", AttendanceReportFilename("Ấu Nhi 1A", 11, 2024, "csv"))
}
