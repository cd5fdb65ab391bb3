package store

import (
	"context"
	"fmt"
	"time"
)

const (
	sqlHasDone   = `SELECT EXISTS(SELECT 1 FROM done_items WHERE destination = ? AND item_id = ?)`
	sqlMarkDone  = `INSERT OR IGNORE INTO done_items (destination, item_id, done_at) VALUES (?, ?, ?)`
	sqlCountDone = `SELECT COUNT(*) FROM done_items WHERE destination = ?`
	sqlListDone  = `SELECT item_id, done_at FROM done_items WHERE destination = ? ORDER BY done_at DESC, item_id LIMIT ?`
	sqlListDests = `SELECT destination, COUNT(*) FROM done_items GROUP BY destination ORDER BY destination`
)

// defaultListSize caps List when no limit is given.
const defaultListSize = 50

// Ledger records which picked items have been delivered to one destination.
// Entries are only ever added, so a re-run over the same selection skips
// everything already sent.
type Ledger struct {
	store *Store
	dest  string
}

// DoneItem is one ledger entry.
type DoneItem struct {
	ItemID string
	DoneAt time.Time
}

// DestinationCount is the number of delivered items for one destination.
type DestinationCount struct {
	Destination string
	Items       int
}

// Ledger returns the ledger scoped to dest (a chat id in string form).
func (s *Store) Ledger(dest string) *Ledger {
	return &Ledger{store: s, dest: dest}
}

// Destination returns the ledger's destination key.
func (l *Ledger) Destination() string {
	return l.dest
}

// Has reports whether itemID was already delivered.
func (l *Ledger) Has(ctx context.Context, itemID string) (bool, error) {
	var found bool

	if err := l.store.db.QueryRowContext(ctx, sqlHasDone, l.dest, itemID).Scan(&found); err != nil {
		return false, fmt.Errorf("store: checking ledger for %s: %w", itemID, err)
	}

	return found, nil
}

// MarkDone records itemID as delivered. Recording twice is a no-op.
func (l *Ledger) MarkDone(ctx context.Context, itemID string) error {
	if _, err := l.store.db.ExecContext(ctx, sqlMarkDone, l.dest, itemID, l.store.nowFunc().Unix()); err != nil {
		return fmt.Errorf("store: recording %s as delivered: %w", itemID, err)
	}

	return nil
}

// Count returns how many items were delivered to the destination.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int

	if err := l.store.db.QueryRowContext(ctx, sqlCountDone, l.dest).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting ledger: %w", err)
	}

	return n, nil
}

// List returns the most recent deliveries, newest first. A non-positive
// limit uses a default page size.
func (l *Ledger) List(ctx context.Context, limit int) ([]DoneItem, error) {
	if limit <= 0 {
		limit = defaultListSize
	}

	rows, err := l.store.db.QueryContext(ctx, sqlListDone, l.dest, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing ledger: %w", err)
	}
	defer rows.Close()

	var items []DoneItem

	for rows.Next() {
		var (
			it  DoneItem
			sec int64
		)

		if err := rows.Scan(&it.ItemID, &sec); err != nil {
			return nil, fmt.Errorf("store: scanning ledger row: %w", err)
		}

		it.DoneAt = time.Unix(sec, 0).UTC()
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing ledger: %w", err)
	}

	return items, nil
}

// Destinations summarizes the ledger across every destination.
func (s *Store) Destinations(ctx context.Context) ([]DestinationCount, error) {
	rows, err := s.db.QueryContext(ctx, sqlListDests)
	if err != nil {
		return nil, fmt.Errorf("store: listing destinations: %w", err)
	}
	defer rows.Close()

	var out []DestinationCount

	for rows.Next() {
		var dc DestinationCount
		if err := rows.Scan(&dc.Destination, &dc.Items); err != nil {
			return nil, fmt.Errorf("store: scanning destination row: %w", err)
		}

		out = append(out, dc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing destinations: %w", err)
	}

	return out, nil
}
