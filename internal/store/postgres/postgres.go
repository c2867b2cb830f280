// Package postgres is an event store on PostgreSQL with the same semantics as
// the SQLite store. It talks to the server through pgx's database/sql driver
// so rows are decoded by the shared store codec.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/roach88/muster/internal/event"
	"github.com/roach88/muster/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is an event store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection. The schema is assumed to exist.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, r *event.Record) error {
	args, err := store.RecordArgs(r)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+store.Columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) ON CONFLICT (id) DO NOTHING`,
		args...)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return expectOneRow(res, r.ID, "insert")
}

func (s *Store) Update(ctx context.Context, r *event.Record) error {
	attendees, err := store.EncodeAttendees(r.Attendees)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET title = $1, description = $2, url = $3, start_at = $4, end_at = $5, announcement_ref = $6, space_ref = $7, attendees = $8, participant_count = $9, flags = $10 WHERE id = $11`,
		r.Title, r.Description, r.URL, r.Start.Unix(), r.End.Unix(),
		r.AnnouncementRef, r.SpaceRef, attendees, r.ParticipantCount, int64(r.Flags()),
		r.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return expectOneRow(res, r.ID, "update")
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectOneRow(res, id, "delete")
}

func (s *Store) Get(ctx context.Context, id int64) (*event.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+store.Columns+` FROM events WHERE id = $1`, id)
	r, err := store.ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.NewNotFound(id, "event")
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return r, nil
}

func (s *Store) GetByAnnouncement(ctx context.Context, ref string) (*event.Record, error) {
	if ref == "" {
		return nil, event.NewNotFound(0, "announcement")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+store.Columns+` FROM events WHERE announcement_ref = $1 ORDER BY id ASC LIMIT 1`, ref)
	r, err := store.ScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, event.NewNotFound(0, "event for announcement "+ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get event by announcement: %w", err)
	}
	return r, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) All(ctx context.Context) ([]*event.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+store.Columns+` FROM events ORDER BY start_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []*event.Record{}
	for rows.Next() {
		r, err := store.ScanRecord(rows)
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

func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

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
