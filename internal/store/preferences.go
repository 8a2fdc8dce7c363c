package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetChatMessageLimit returns owner's remembered page size for the
// owner/partner conversation, inserting the default (50) lazily on first
// read, per spec §3/§4.1.
func (s *Store) GetChatMessageLimit(ctx context.Context, owner, partner string) (int32, error) {
	var limit int
	err := s.db.GetContext(ctx, &limit,
		`SELECT message_limit FROM chat_preferences WHERE username = ? AND partner = ?`, owner, partner)
	if err == sql.ErrNoRows {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO chat_preferences (username, partner, message_limit) VALUES (?, ?, ?)`,
			owner, partner, defaultChatMessageLimit)
		if err != nil {
			return 0, fmt.Errorf("store: get_chat_message_limit %s/%s: insert default: %w", owner, partner, err)
		}
		return defaultChatMessageLimit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get_chat_message_limit %s/%s: %w", owner, partner, err)
	}
	return int32(limit), nil
}

// UpdateChatMessageLimit sets owner's remembered page size for the
// owner/partner conversation.
func (s *Store) UpdateChatMessageLimit(ctx context.Context, owner, partner string, limit int32) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_preferences (username, partner, message_limit) VALUES (?, ?, ?)
		 ON CONFLICT(username, partner) DO UPDATE SET message_limit = excluded.message_limit`,
		owner, partner, limit)
	if err != nil {
		return false, fmt.Errorf("store: update_chat_message_limit %s/%s: %w", owner, partner, err)
	}
	return true, nil
}
