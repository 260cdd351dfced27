package models

import (
	"fmt"
	"time"
)

// ProvisioningBatch tracks a bulk student account creation run.
type ProvisioningBatch struct {
	ID        string              `json:"id"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Done      bool                `json:"done"`
	Failures  []ProvisioningError `json:"failures,omitempty"`
	CreatedBy string              `json:"created_by"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// ProvisioningError names a student whose account could not be created.
type ProvisioningError struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// Summary renders the batch outcome the way the admin screen reports it.
func (b ProvisioningBatch) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed", b.Succeeded, b.Failed)
}
