package models

import "time"

// VisibilityMode partitions the message log into channel and direct traffic.
type VisibilityMode string

const (
	VisibilityPublic  VisibilityMode = "public"
	VisibilityPrivate VisibilityMode = "private"
)

// ChatChannel is the closed set of public channels.
type ChatChannel string

const (
	// ChannelStudents is the default section-partitioned student-teacher channel.
	ChannelStudents ChatChannel = "students"
	// ChannelTeachers is visible to teachers only, across sections.
	ChannelTeachers ChatChannel = "teachers"
)

// Valid returns true when the channel is a supported value.
func (c ChatChannel) Valid() bool {
	return c == ChannelStudents || c == ChannelTeachers
}

// Message is a single chat entry. Append-only, ordered by SentAt ascending.
// Invariants: a private message always has RecipientID set; a public message
// in the students channel always has Section set.
type Message struct {
	ID          string         `db:"id" json:"id"`
	SenderID    string         `db:"sender_id" json:"sender_id"`
	SenderName  string         `db:"sender_name" json:"sender_name"`
	SenderRole  UserRole       `db:"sender_role" json:"sender_role"`
	Body        string         `db:"body" json:"body"`
	Visibility  VisibilityMode `db:"visibility" json:"visibility"`
	Channel     *ChatChannel   `db:"channel" json:"channel,omitempty"`
	Section     *string        `db:"section" json:"section,omitempty"`
	RecipientID *string        `db:"recipient_id" json:"recipient_id,omitempty"`
	SentAt      time.Time      `db:"sent_at" json:"sent_at"`
}

// ViewerContext describes who is looking at the log and through which lens.
// Supplied per query; never persisted.
type ViewerContext struct {
	UserID         string
	Role           UserRole
	Section        string
	Mode           VisibilityMode
	Channel        ChatChannel
	SelectedPeerID string
}
