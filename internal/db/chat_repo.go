package db

import (
	"context"

	"agripal/internal/types"
)

// ChatRepository provides data access for the chat_messages table. Each row
// is one user or assistant turn of the field-assistant conversation.
type ChatRepository struct {
	db DBTX
}

// NewChatRepository creates a new ChatRepository backed by the given database
// connection (pool or transaction).
func NewChatRepository(db DBTX) *ChatRepository {
	return &ChatRepository{db: db}
}

// Insert persists one conversation turn. Callers skip the call entirely when
// no user identity is present; an empty UserID here is a programming error
// surfaced by the NOT NULL constraint.
func (r *ChatRepository) Insert(ctx context.Context, m *types.ChatMessage) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages
		 (message_id, user_id, device_id, farm_id, role, message, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		m.ID,
		m.UserID,
		m.DeviceID,
		m.FarmID,
		string(m.Role),
		m.Content,
		nilIfZeroTime(m.Timestamp),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert chat message", err)
	}
	return nil
}

// Compile-time interface compliance check.
var _ types.ChatStore = (*ChatRepository)(nil)
