package models

import "time"

// StudentReportRow holds the computed rates for a single student.
type StudentReportRow struct {
	StudentID       string   `json:"student_id"`
	SaintName       *string  `json:"saint_name,omitempty"`
	FullName        string   `json:"full_name"`
	AttendanceTotal int      `json:"attendance_total"`
	AttendanceRate  int      `json:"attendance_rate"`
	MassTotal       int      `json:"mass_total"`
	MassRate        int      `json:"mass_rate"`
	ScoreAverage    *float64 `json:"score_average,omitempty"`
}

// ClassReportSummary aggregates the per-student rows of a class.
type ClassReportSummary struct {
	ClassID               string             `json:"class_id"`
	ClassName             string             `json:"class_name"`
	Students              []StudentReportRow `json:"students"`
	AverageAttendanceRate float64            `json:"average_attendance_rate"`
	AverageMassRate       float64            `json:"average_mass_rate"`
	AverageScore          *float64           `json:"average_score,omitempty"`
	GeneratedAt           time.Time          `json:"generated_at"`
}

// DashboardSummary holds headline counts for the staff dashboard.
type DashboardSummary struct {
	AcademicYearID   *string   `json:"academic_year_id,omitempty"`
	AcademicYearName *string   `json:"academic_year_name,omitempty"`
	Students         int       `json:"students"`
	Classes          int       `json:"classes"`
	Catechists       int       `json:"catechists"`
	ActiveSessions   int       `json:"active_sessions"`
	GeneratedAt      time.Time `json:"generated_at"`
}
