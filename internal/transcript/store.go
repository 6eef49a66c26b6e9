// Package transcript keeps the chat log of each (tenant, user) pair so the
// assistant can rebuild recent history when the widget does not send it.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultRecentLimit is how many turns Recent returns when limit <= 0.
const DefaultRecentLimit = 8

// Message is one logged chat turn.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store persists chat turns in the chat_messages table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns nil when db is nil; a nil *Store is a valid no-op store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db, now: time.Now}
}

// Append logs one turn. Roles other than user and assistant are rejected.
func (s *Store) Append(ctx context.Context, tenantID, userID, role, content string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("transcript: unsupported role %q", role)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (tenant_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, tenantID, userID, role, content, s.now().UTC())
	if err != nil {
		return fmt.Errorf("transcript: insert message: %w", err)
	}
	return nil
}

// Recent returns the last limit turns in chronological order.
func (s *Store) Recent(ctx context.Context, tenantID, userID string, limit int) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM chat_messages
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY id DESC
		LIMIT $3
	`, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: query recent: %w", err)
	}
	defer rows.Close()

	var newestFirst []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan message: %w", err)
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: iterate messages: %w", err)
	}

	out := make([]Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out, nil
}
