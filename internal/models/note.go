package models

import "time"

// Note is shared study material scoped to a section.
// Exactly one of FilePath or DriveURL is set.
type Note struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Subject     string    `db:"subject" json:"subject"`
	Description string    `db:"description" json:"description"`
	FilePath    *string   `db:"file_path" json:"-"`
	FileName    *string   `db:"file_name" json:"file_name,omitempty"`
	FileSize    *int64    `db:"file_size" json:"file_size,omitempty"`
	DriveURL    *string   `db:"drive_url" json:"drive_url,omitempty"`
	UploadedBy  string    `db:"uploaded_by" json:"uploaded_by"`
	Section     string    `db:"section" json:"section"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// HasFile reports whether the note carries a stored file.
func (n *Note) HasFile() bool {
	return n != nil && n.FilePath != nil && *n.FilePath != ""
}

// NoteFilter scopes note listing.
type NoteFilter struct {
	Section  string
	Subject  string
	Page     int
	PageSize int
}
