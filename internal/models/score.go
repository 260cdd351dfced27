package models

import "time"

// ScoreType enumerates the graded components.
type ScoreType string

const (
	ScoreTypePresentation ScoreType = "presentation"
	ScoreTypeSemester1    ScoreType = "semester1"
	ScoreTypeSemester2    ScoreType = "semester2"
)

// Valid returns true for supported score types.
func (t ScoreType) Valid() bool {
	switch t {
	case ScoreTypePresentation, ScoreTypeSemester1, ScoreTypeSemester2:
		return true
	default:
		return false
	}
}

// Score is one row per student, class and score type.
type Score struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Type      ScoreType `db:"type" json:"type"`
	Score     float64   `db:"score" json:"score"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	Date      time.Time `db:"date" json:"date"`
	GradedBy  string    `db:"graded_by" json:"graded_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreFilter scopes score queries.
type ScoreFilter struct {
	ClassID   string
	StudentID string
}
