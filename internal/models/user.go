package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleGLV     UserRole = "glv"
	RoleStudent UserRole = "student"
)

// Valid reports whether the role is one of the supported app roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleGLV, RoleStudent:
		return true
	default:
		return false
	}
}

// IsStaff is true for admins and catechists.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleGLV
}

// Profile is a login identity stored in the profiles table.
type Profile struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfileWithRole joins a profile with its user_roles entry.
type ProfileWithRole struct {
	Profile
	Role UserRole `db:"role" json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
