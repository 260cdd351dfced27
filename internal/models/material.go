package models

import "time"

// LearningMaterial is one uploaded document for a class and week.
type LearningMaterial struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	ClassID     string    `db:"class_id" json:"class_id"`
	WeekNumber  int       `db:"week_number" json:"week_number"`
	FilePath    string    `db:"file_path" json:"-"`
	FileName    string    `db:"file_name" json:"file_name"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy  string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LearningMaterialFilter scopes material listings.
type LearningMaterialFilter struct {
	ClassID    string
	WeekNumber *int
}
