package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	sqlGetChannel    = `SELECT chat_id, title FROM channels WHERE user_id = ?`
	sqlUpsertChannel = `INSERT INTO channels (user_id, chat_id, title, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		 chat_id = excluded.chat_id,
		 title = excluded.title,
		 updated_at = excluded.updated_at`
)

// Channel is the Telegram chat a user's picks are relayed to.
type Channel struct {
	ChatID int64
	Title  string
}

// GetChannel returns the user's linked channel, or (nil, nil) if none.
func (s *Store) GetChannel(ctx context.Context, user string) (*Channel, error) {
	var ch Channel

	err := s.db.QueryRowContext(ctx, sqlGetChannel, user).Scan(&ch.ChatID, &ch.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no channel linked yet
	}

	if err != nil {
		return nil, fmt.Errorf("store: reading channel for %s: %w", user, err)
	}

	return &ch, nil
}

// PutChannel links user to ch, replacing any previous link.
func (s *Store) PutChannel(ctx context.Context, user string, ch Channel) error {
	_, err := s.db.ExecContext(ctx, sqlUpsertChannel, user, ch.ChatID, ch.Title, s.nowFunc().Unix())
	if err != nil {
		return fmt.Errorf("store: writing channel for %s: %w", user, err)
	}

	return nil
}
