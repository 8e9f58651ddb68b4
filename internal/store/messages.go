// ABOUTME: Flash messages queued against a browser session
// ABOUTME: Messages are returned once and deleted in the same transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MessageType is the severity of a session message.
type MessageType string

const (
	MessageValid   MessageType = "valid"
	MessageWarning MessageType = "warning"
	MessageError   MessageType = "error"
)

// SessionMessage is a one-time notice shown on the next page load.
type SessionMessage struct {
	Type      MessageType
	Text      string
	CreatedAt time.Time
}

// AddSessionMessage queues a message for the session.
func (s *SQLiteStore) AddSessionMessage(ctx context.Context, sessionID string, m SessionMessage) error {
	if m.Type == "" {
		m.Type = MessageValid
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_messages (session_id, type, text, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(m.Type), m.Text, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting session message: %w", err)
	}
	return nil
}

// TakeSessionMessages returns the session's queued messages in order and
// removes them.
func (s *SQLiteStore) TakeSessionMessages(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	var out []SessionMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT type, text, created_at FROM session_messages WHERE session_id = ? ORDER BY id`, sessionID)
		if err != nil {
			return fmt.Errorf("querying session messages: %w", err)
		}
		for rows.Next() {
			var m SessionMessage
			var typ, createdAt string
			if err := rows.Scan(&typ, &m.Text, &createdAt); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scanning session message: %w", err)
			}
			m.Type = MessageType(typ)
			if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
				_ = rows.Close()
				return err
			}
			out = append(out, m)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("closing session messages: %w", err)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating session messages: %w", err)
		}
		if len(out) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("deleting session messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
