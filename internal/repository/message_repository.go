package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edubridge-api/internal/models"
)

// MessageRepository stores the chat log. Append-only; messages are never
// mutated or deleted, and the log is always read in sent_at order.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a new message.
func (r *MessageRepository) Append(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	const query = `INSERT INTO messages (id, sender_id, sender_name, sender_role, body, visibility, channel, section, recipient_id, sent_at)
VALUES (:id, :sender_id, :sender_name, :sender_role, :body, :visibility, :channel, :section, :recipient_id, :sent_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListPublic returns public messages for a channel, oldest first.
func (r *MessageRepository) ListPublic(ctx context.Context, channel models.ChatChannel) ([]models.Message, error) {
	const query = `SELECT id, sender_id, sender_name, sender_role, body, visibility, channel, section, recipient_id, sent_at
FROM messages WHERE visibility = $1 AND channel = $2 ORDER BY sent_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, models.VisibilityPublic, channel); err != nil {
		return nil, fmt.Errorf("list public messages: %w", err)
	}
	return messages, nil
}

// ListPrivateFor returns private messages the user sent or received, oldest first.
func (r *MessageRepository) ListPrivateFor(ctx context.Context, userID string) ([]models.Message, error) {
	const query = `SELECT id, sender_id, sender_name, sender_role, body, visibility, channel, section, recipient_id, sent_at
FROM messages WHERE visibility = $1 AND (sender_id = $2 OR recipient_id = $2) ORDER BY sent_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, models.VisibilityPrivate, userID); err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}
	return messages, nil
}
