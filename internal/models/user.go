package models

import "time"

// UserRole represents the portal roles.
type UserRole string

const (
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Valid returns true when the role is a supported value.
func (r UserRole) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Elevated reports whether the role sees default-channel traffic across
// every section.
func (r UserRole) Elevated() bool {
	return r == RoleTeacher
}

// User represents a portal participant stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         UserRole  `db:"role" json:"role"`
	Section      string    `db:"section" json:"section"`
	Subject      *string   `db:"subject" json:"subject,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Contact is the slimmed user view exposed to the private messaging picker.
type Contact struct {
	ID      string   `db:"id" json:"id"`
	Name    string   `db:"name" json:"name"`
	Email   string   `db:"email" json:"email"`
	Role    UserRole `db:"role" json:"role"`
	Section string   `db:"section" json:"section"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
