package models

import "time"

// AttendanceCode is the time-boxed one-time code issued by a teacher.
// Immutable after creation; expiry is evaluated lazily against ExpiresAt.
type AttendanceCode struct {
	Code      string        `json:"code"`
	IssuerID  string        `json:"issuer_id"`
	Section   string        `json:"section"`
	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Duration  time.Duration `json:"-"`
}

// Active reports whether the code is still valid at the given instant.
func (c *AttendanceCode) Active(now time.Time) bool {
	return c != nil && !now.After(c.ExpiresAt)
}

// DurationSeconds exposes the duration the way clients requested it.
func (c *AttendanceCode) DurationSeconds() int {
	if c == nil {
		return 0
	}
	return int(c.Duration / time.Second)
}

// AttendanceRecord is an accepted submission. Append-only, never mutated.
type AttendanceRecord struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	RollNumber  string    `db:"roll_number" json:"roll_number"`
	Code        string    `db:"code" json:"code"`
	Section     string    `db:"section" json:"section"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// AttendanceFilter scopes record listing.
type AttendanceFilter struct {
	Code      string
	StudentID string
	Section   string
	Page      int
	PageSize  int
}
