package models

import "time"

// Class is a catechism class within an academic year.
type Class struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	Description    *string   `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with the academic year name and roster size.
type ClassDetail struct {
	Class
	AcademicYearName *string `db:"academic_year_name" json:"academic_year_name,omitempty"`
	StudentCount     int     `db:"student_count" json:"student_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	AcademicYearID string
	CatechistID    string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// ClassCatechist assigns a catechist to a class.
type ClassCatechist struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	CatechistID string    `db:"catechist_id" json:"catechist_id"`
	IsPrimary   bool      `db:"is_primary" json:"is_primary"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ClassCatechistDetail includes catechist names for responses.
type ClassCatechistDetail struct {
	ClassCatechist
	SaintName *string `db:"saint_name" json:"saint_name,omitempty"`
	FullName  string  `db:"full_name" json:"full_name"`
}
