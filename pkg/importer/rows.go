package importer

import (
	"strconv"
	"strings"

	"github.com/noah-isme/giaoly-api/pkg/export"
)

// StudentRow is one parsed line of the student import sheet.
type StudentRow struct {
	STT       string `json:"stt"`
	SaintName string `json:"saint_name"`
	FullName  string `json:"full_name"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birth_date"`
	Address   string `json:"address"`
	ClassName string `json:"class_name"`
}

// ClassRow is one parsed line of the class import template.
type ClassRow struct {
	Name         string `json:"name"`
	AcademicYear string `json:"academic_year"`
	Description  string `json:"description"`
}

// CatechistRow is one parsed line of the catechist import template.
type CatechistRow struct {
	SaintName string `json:"saint_name"`
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

// StudentHeaders are the columns of the student sheet in positional order.
var StudentHeaders = []string{"STT", "Tên Thánh", "Họ và Tên", "Giới tính", "Ngày sinh", "Địa chỉ", "Lớp"}

// ClassTemplateHeaders are the columns of the class import template.
var ClassTemplateHeaders = []string{"Tên lớp", "Niên khóa", "Mô tả"}

// CatechistTemplateHeaders are the columns of the catechist import template.
var CatechistTemplateHeaders = []string{"Tên Thánh", "Họ và Tên", "Số điện thoại", "Email", "Địa chỉ"}

// ParseStudentRows maps records (header first) to student rows. Rows without
// a full name or birth date are dropped.
func ParseStudentRows(records [][]string) []StudentRow {
	rows := make([]StudentRow, 0, len(records))
	for _, record := range dataRecords(records) {
		row := StudentRow{
			STT:       column(record, 0),
			SaintName: column(record, 1),
			FullName:  column(record, 2),
			Gender:    ParseGender(column(record, 3)),
			BirthDate: ParseDateString(column(record, 4)),
			Address:   column(record, 5),
			ClassName: column(record, 6),
		}
		if row.FullName == "" || row.BirthDate == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseClassRows maps records (header first) to class rows, dropping rows without a name.
func ParseClassRows(records [][]string) []ClassRow {
	rows := make([]ClassRow, 0, len(records))
	for _, record := range dataRecords(records) {
		row := ClassRow{
			Name:         column(record, 0),
			AcademicYear: column(record, 1),
			Description:  column(record, 2),
		}
		if row.Name == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseCatechistRows maps records (header first) to catechist rows, dropping rows without a name.
func ParseCatechistRows(records [][]string) []CatechistRow {
	rows := make([]CatechistRow, 0, len(records))
	for _, record := range dataRecords(records) {
		row := CatechistRow{
			SaintName: column(record, 0),
			FullName:  column(record, 1),
			Phone:     column(record, 2),
			Email:     strings.ToLower(column(record, 3)),
			Address:   column(record, 4),
		}
		if row.FullName == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// GenerateStudentCSV renders rows in the student sheet layout.
func GenerateStudentCSV(rows []StudentRow) string {
	records := make([][]string, len(rows))
	for i, row := range rows {
		stt := row.STT
		if stt == "" {
			stt = strconv.Itoa(i + 1)
		}
		records[i] = []string{
			stt,
			row.SaintName,
			row.FullName,
			GenderLabel(row.Gender),
			FormatDateString(row.BirthDate),
			row.Address,
			row.ClassName,
		}
	}
	return export.GenerateCSV(StudentHeaders, records)
}

// ClassTemplate is the downloadable class import template.
func ClassTemplate() string {
	return export.WithBOM(export.GenerateCSV(ClassTemplateHeaders, [][]string{
		{"Ấu Nhi 1A", "2024-2025", "Phòng 3, nhà giáo lý"},
	}))
}

// CatechistTemplate is the downloadable catechist import template.
func CatechistTemplate() string {
	return export.WithBOM(export.GenerateCSV(CatechistTemplateHeaders, [][]string{
		{"Maria", "Nguyễn Thị An", "0901234567", "an.nguyen@example.com", "Giáo xứ Tân Định"},
	}))
}

func dataRecords(records [][]string) [][]string {
	if len(records) <= 1 {
		return nil
	}
	return records[1:]
}
