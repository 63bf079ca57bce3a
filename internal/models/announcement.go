package models

import "time"

// AnnouncementAudience defines who can see an announcement.
type AnnouncementAudience string

const (
	AnnouncementAudienceAll      AnnouncementAudience = "ALL"
	AnnouncementAudienceTeachers AnnouncementAudience = "TEACHERS"
	AnnouncementAudienceStudents AnnouncementAudience = "STUDENTS"
	AnnouncementAudienceSection  AnnouncementAudience = "SECTION"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID            string               `db:"id" json:"id"`
	Title         string               `db:"title" json:"title"`
	Content       string               `db:"content" json:"content"`
	Audience      AnnouncementAudience `db:"audience" json:"audience"`
	TargetSection *string              `db:"target_section" json:"target_section,omitempty"`
	IsPinned      bool                 `db:"is_pinned" json:"is_pinned"`
	PublishedAt   time.Time            `db:"published_at" json:"published_at"`
	ExpiresAt     *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy     string               `db:"created_by" json:"created_by"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter allows listing announcements for a viewer.
type AnnouncementFilter struct {
	ViewerRole    UserRole
	ViewerSection string
	Page          int
	PageSize      int
}
