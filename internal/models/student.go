package models

import "time"

// Gender values accepted for students.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Student is a learner enrolled in the catechism program.
type Student struct {
	ID          string     `db:"id" json:"id"`
	StudentCode string     `db:"student_code" json:"student_code"`
	SaintName   *string    `db:"saint_name" json:"saint_name,omitempty"`
	FullName    string     `db:"full_name" json:"full_name"`
	Gender      string     `db:"gender" json:"gender"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	ParentPhone *string    `db:"parent_phone" json:"parent_phone,omitempty"`
	ClassID     *string    `db:"class_id" json:"class_id,omitempty"`
	UserID      *string    `db:"user_id" json:"user_id,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with class context.
type StudentDetail struct {
	Student
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}
