package models

import "time"

// AttendanceStatus represents the status for catechism attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attended is true for statuses counted as attendance.
func (s AttendanceStatus) Attended() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// AttendanceSession is one code-gated check-in window for a class.
type AttendanceSession struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	SessionDate time.Time  `db:"session_date" json:"session_date"`
	Code        string     `db:"code" json:"code"`
	Active      bool       `db:"active" json:"active"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	EndedAt     *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// AttendanceSessionFilter scopes session listings.
type AttendanceSessionFilter struct {
	ClassID  string
	Active   *bool
	Page     int
	PageSize int
}

// AttendanceRecord is one catechism attendance row per student, class and date.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Note       *string          `db:"note" json:"note,omitempty"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordDetail extends the record with student names.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName string  `db:"student_name" json:"student_name"`
	SaintName   *string `db:"saint_name" json:"saint_name,omitempty"`
}

// AttendanceRecordFilter defines query filters.
type AttendanceRecordFilter struct {
	ClassID   string
	StudentID string
	Date      *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
}

// MassAttendance is one Mass attendance row per student and date.
type MassAttendance struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Date       time.Time `db:"date" json:"date"`
	Attended   bool      `db:"attended" json:"attended"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MassAttendanceFilter scopes Mass attendance queries.
type MassAttendanceFilter struct {
	ClassID   string
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
}
