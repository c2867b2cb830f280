package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/muster/internal/event"
)

// Insert adds a new record.
// Uses ON CONFLICT(id) DO NOTHING so a duplicate id never overwrites an
// existing row; the duplicate is reported as a persistence failure.
func (s *Store) Insert(ctx context.Context, r *event.Record) error {
	args, err := RecordArgs(r)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (`+Columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, args...)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return expectOneRow(res, r.ID, "insert")
}

// Update overwrites every mutable column of an existing record.
func (s *Store) Update(ctx context.Context, r *event.Record) error {
	attendees, err := EncodeAttendees(r.Attendees)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			title = ?, description = ?, url = ?, start_at = ?, end_at = ?,
			announcement_ref = ?, space_ref = ?, attendees = ?,
			participant_count = ?, flags = ?
		WHERE id = ?
	`,
		r.Title, r.Description, r.URL, r.Start.Unix(), r.End.Unix(),
		r.AnnouncementRef, r.SpaceRef, attendees,
		r.ParticipantCount, int64(r.Flags()),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return expectOneRow(res, r.ID, "update")
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectOneRow(res, id, "delete")
}

// SetSetting stores a runtime configuration value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func expectOneRow(res sql.Result, id int64, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s event: rows affected: %w", op, err)
	}
	if n != 1 {
		return event.NewPersistenceFailure(id, op, n)
	}
	return nil
}
