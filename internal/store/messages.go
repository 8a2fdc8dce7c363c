package store

import (
	"database/sql"
	"context"
	"fmt"
	"strings"
)

// Message is a row of the messages table.
type Message struct {
	ID               int64   `db:"id"`
	Sender           string  `db:"sender"`
	Recipient        string  `db:"recipient"`
	Content          string  `db:"content"`
	Timestamp        float64 `db:"timestamp"`
	IsRead           bool    `db:"is_read"`
	IsDelivered      bool    `db:"is_delivered"`
	SenderDeleted    bool    `db:"sender_deleted"`
	RecipientDeleted bool    `db:"recipient_deleted"`
}

// StoreMessage inserts a message and returns its assigned id. When forcedID
// is non-nil (a follower applying REPLICATE_MESSAGE), the id is used
// verbatim; if a row with that id already exists, success is still reported
// provided sender/recipient/content match (idempotent replication per
// §4.2's REPLICATE_MESSAGE follower action and testable property E6).
func (s *Store) StoreMessage(ctx context.Context, sender, recipient, content string, isDelivered bool, forcedID *int64) (int64, error) {
	if forcedID != nil {
		var existing Message
		err := s.db.GetContext(ctx, &existing,
			`SELECT id, sender, recipient, content, timestamp, is_read, is_delivered, sender_deleted, recipient_deleted
			 FROM messages WHERE id = ?`, *forcedID)
		switch {
		case err == nil:
			if existing.Sender == sender && existing.Recipient == recipient && existing.Content == content {
				return existing.ID, nil
			}
			return 0, fmt.Errorf("store: store_message: id %d already exists with different participants", *forcedID)
		case err != sql.ErrNoRows:
			return 0, fmt.Errorf("store: store_message forced id lookup: %w", err)
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO messages (id, sender, recipient, content, timestamp, is_delivered) VALUES (?, ?, ?, ?, ?, ?)`,
			*forcedID, sender, recipient, content, nowSeconds(), isDelivered)
		if err != nil {
			return 0, fmt.Errorf("store: store_message forced id %d: %w", *forcedID, err)
		}
		return *forcedID, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender, recipient, content, timestamp, is_delivered) VALUES (?, ?, ?, ?, ?)`,
		sender, recipient, content, nowSeconds(), isDelivered)
	if err != nil {
		return 0, fmt.Errorf("store: store_message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: store_message last insert id: %w", err)
	}
	return id, nil
}

// DeleteMessageHard physically removes a row. Used exclusively by the RM's
// rollback-on-failed-replication path (§4.2 "critical consistency rule");
// never exposed to clients, which only ever soft-delete via DeleteMessages.
func (s *Store) DeleteMessageHard(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete_message_hard %d: %w", id, err)
	}
	return nil
}

func (s *Store) MarkMessageAsDelivered(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET is_delivered = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: mark_message_as_delivered %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkMessagesAsRead sets is_read=true for rows where recipient=owner and
// id in ids; an empty ids slice means "all of owner's inbox" per §4.1.
func (s *Store) MarkMessagesAsRead(ctx context.Context, owner string, ids []int64) (bool, error) {
	exists, err := s.UserExists(ctx, owner)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if len(ids) == 0 {
		_, err := s.db.ExecContext(ctx,
			`UPDATE messages SET is_read = 1 WHERE recipient = ? AND recipient_deleted = 0`, owner)
		if err != nil {
			return false, fmt.Errorf("store: mark_messages_as_read %s: %w", owner, err)
		}
		return true, nil
	}

	placeholders, args := idsPlaceholders(ids)
	query := `UPDATE messages SET is_read = 1 WHERE recipient = ? AND id IN (` + placeholders + `)`
	args = append([]interface{}{owner}, args...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("store: mark_messages_as_read %s: %w", owner, err)
	}
	return true, nil
}

// DeleteMessages soft-deletes: sets sender_deleted if owner is the sender,
// recipient_deleted if owner is the recipient. An empty ids slice is a
// no-op (unlike MarkMessagesAsRead, §4.1 names no "all" shorthand here).
func (s *Store) DeleteMessages(ctx context.Context, owner string, ids []int64) (bool, error) {
	exists, err := s.UserExists(ctx, owner)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: delete_messages %s: begin: %w", owner, err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var sender, recipient string
		err := tx.QueryRowContext(ctx, `SELECT sender, recipient FROM messages WHERE id = ?`, id).Scan(&sender, &recipient)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("store: delete_messages %s: lookup %d: %w", owner, id, err)
		}
		switch owner {
		case sender:
			if _, err := tx.ExecContext(ctx, `UPDATE messages SET sender_deleted = 1 WHERE id = ?`, id); err != nil {
				return false, fmt.Errorf("store: delete_messages %s: update %d: %w", owner, id, err)
			}
		case recipient:
			if _, err := tx.ExecContext(ctx, `UPDATE messages SET recipient_deleted = 1 WHERE id = ?`, id); err != nil {
				return false, fmt.Errorf("store: delete_messages %s: update %d: %w", owner, id, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: delete_messages %s: commit: %w", owner, err)
	}
	return true, nil
}

// ConversationPage is the result of GetMessagesBetweenUsers.
type ConversationPage struct {
	Messages []Message
	Total    int32
}

// GetMessagesBetweenUsers returns rows visible to u1 in its conversation
// with u2, newest first, with an inclusive total count. Negative
// offset/limit clamp to 0, per §4.1.
func (s *Store) GetMessagesBetweenUsers(ctx context.Context, u1, u2 string, offset, limit int32) (ConversationPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	var total int
	err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM messages WHERE
		   (sender = ? AND recipient = ? AND sender_deleted = 0)
		   OR (sender = ? AND recipient = ? AND recipient_deleted = 0)`,
		u1, u2, u2, u1)
	if err != nil {
		return ConversationPage{}, fmt.Errorf("store: get_messages_between_users count: %w", err)
	}

	var msgs []Message
	err = s.db.SelectContext(ctx, &msgs,
		`SELECT id, sender, recipient, content, timestamp, is_read, is_delivered, sender_deleted, recipient_deleted
		 FROM messages WHERE
		   (sender = ? AND recipient = ? AND sender_deleted = 0)
		   OR (sender = ? AND recipient = ? AND recipient_deleted = 0)
		 ORDER BY timestamp DESC
		 LIMIT ? OFFSET ?`,
		u1, u2, u2, u1, limit, offset)
	if err != nil {
		return ConversationPage{}, fmt.Errorf("store: get_messages_between_users select: %w", err)
	}

	return ConversationPage{Messages: msgs, Total: int32(total)}, nil
}

// GetUndeliveredMessages returns a recipient's undelivered, non-deleted
// messages ascending by timestamp, per §4.1/§4.3 delivery-fan-out drain.
func (s *Store) GetUndeliveredMessages(ctx context.Context, recipient string) ([]Message, error) {
	var msgs []Message
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT id, sender, recipient, content, timestamp, is_read, is_delivered, sender_deleted, recipient_deleted
		 FROM messages WHERE recipient = ? AND is_delivered = 0 AND recipient_deleted = 0
		 ORDER BY timestamp ASC`, recipient)
	if err != nil {
		return nil, fmt.Errorf("store: get_undelivered_messages %s: %w", recipient, err)
	}
	return msgs, nil
}

// GetChatPartners returns distinct counterparties of me, ordered by name.
func (s *Store) GetChatPartners(ctx context.Context, me string) ([]string, error) {
	var partners []string
	err := s.db.SelectContext(ctx, &partners,
		`SELECT DISTINCT CASE WHEN sender = ? THEN recipient ELSE sender END AS partner
		 FROM messages WHERE sender = ? OR recipient = ?
		 ORDER BY partner`, me, me, me)
	if err != nil {
		return nil, fmt.Errorf("store: get_chat_partners %s: %w", me, err)
	}
	return partners, nil
}

// GetUnreadBetweenUsers counts unread messages where me is recipient and
// partner is sender.
func (s *Store) GetUnreadBetweenUsers(ctx context.Context, me, partner string) (int32, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM messages WHERE recipient = ? AND sender = ? AND is_read = 0`, me, partner)
	if err != nil {
		return 0, fmt.Errorf("store: get_unread_between_users %s/%s: %w", me, partner, err)
	}
	return int32(n), nil
}

func idsPlaceholders(ids []int64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "?"
		args[i] = id
	}
	return strings.Join(parts, ","), args
}
