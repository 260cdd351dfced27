package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/giaoly-api/pkg/calendar"
)

// Column labels of the monthly attendance sheet.
const (
	ColumnMass      = "TL"
	ColumnCatechism = "GL"
	ColumnScore     = "ĐIỂM"
	markPresent     = "x"
)

// ReportStudent is one roster line of the monthly attendance sheet.
type ReportStudent struct {
	ID        string
	SaintName string
	FullName  string
}

// AttendanceMark is a catechism attendance entry feeding the sheet.
type AttendanceMark struct {
	StudentID string
	Date      time.Time
	Status    string
}

// MassMark is a Mass attendance entry feeding the sheet.
type MassMark struct {
	StudentID string
	Date      time.Time
	Attended  bool
}

// AttendanceReportInput collects everything needed for one class and month.
type AttendanceReportInput struct {
	ClassName  string
	Year       int
	Month      int // zero-based
	Students   []ReportStudent
	Attendance []AttendanceMark
	Mass       []MassMark
	Location   *time.Location
}

// BuildAttendanceReport lays out the three header rows (title, per-Sunday
// super-header, TL/GL/ĐIỂM sub-header) and one row per student. TL is marked
// when an attended Mass record exists for that Sunday; GL when a present or
// late record exists. The score column is left empty.
func BuildAttendanceReport(in AttendanceReportInput) Table {
	sundays := calendar.WeeksInMonth(in.Year, in.Month, in.Location)
	title := fmt.Sprintf("DANH SÁCH ĐIỂM DANH LỚP %s - THÁNG %d/%d", in.ClassName, in.Month+1, in.Year)

	fixed := []string{"STT", "Tên Thánh", "Họ và Tên"}
	width := len(fixed) + len(sundays)*3

	titleRow := make([]string, width)
	titleRow[0] = title

	superHeader := make([]string, 0, width)
	superHeader = append(superHeader, fixed...)
	subHeader := make([]string, len(fixed), width)
	for _, sunday := range sundays {
		superHeader = append(superHeader, sunday.Format("02/01"), "", "")
		subHeader = append(subHeader, ColumnMass, ColumnCatechism, ColumnScore)
	}

	mass := make(map[string]bool)
	for _, m := range in.Mass {
		if m.Attended {
			mass[markKey(m.StudentID, m.Date)] = true
		}
	}
	catechism := make(map[string]bool)
	for _, a := range in.Attendance {
		if a.Status == "present" || a.Status == "late" {
			catechism[markKey(a.StudentID, a.Date)] = true
		}
	}

	rows := make([][]string, 0, len(in.Students))
	for i, student := range in.Students {
		row := make([]string, 0, width)
		row = append(row, strconv.Itoa(i+1), student.SaintName, student.FullName)
		for _, sunday := range sundays {
			key := markKey(student.ID, sunday)
			row = append(row, mark(mass[key]), mark(catechism[key]), "")
		}
		rows = append(rows, row)
	}

	return Table{
		Title:      title,
		HeaderRows: [][]string{titleRow, superHeader, subHeader},
		Rows:       rows,
	}
}

// AttendanceReportFilename follows diem_danh_<class>_thang_<month+1>_<year>.<ext>.
func AttendanceReportFilename(className string, month, year int, ext string) string {
	return fmt.Sprintf("diem_danh_%s_thang_%d_%d.%s", className, month+1, year, ext)
}

func markKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format(calendar.DateLayout)
}

func mark(ok bool) string {
	if ok {
		return markPresent
	}
	return ""
}
