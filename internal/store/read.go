package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// Get returns the record with the given id, or a NotFound error.
func (s *Store) Get(ctx context.Context, id int64) (*event.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+Columns+` FROM events WHERE id = ?`, id)
	r, err := ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.NewNotFound(id, "event")
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return r, nil
}

// GetByAnnouncement returns the record whose announcement has the given ref.
func (s *Store) GetByAnnouncement(ctx context.Context, ref string) (*event.Record, error) {
	if ref == "" {
		return nil, event.NewNotFound(0, "announcement")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+Columns+` FROM events
		WHERE announcement_ref = ?
		ORDER BY id ASC
		LIMIT 1
	`, ref)
	r, err := ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.NewNotFound(0, "event for announcement "+ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get event by announcement: %w", err)
	}
	return r, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// All returns every record ordered by start_at ASC, id ASC.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) All(ctx context.Context) ([]*event.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+Columns+` FROM events ORDER BY start_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []*event.Record{}
	for rows.Next() {
		r, err := ScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// Setting returns a runtime configuration value and whether it was set.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Settings returns every stored runtime configuration value.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
