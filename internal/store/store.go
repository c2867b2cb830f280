package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration), or the bot's first layout with
//     start/end/message_id/channel_id/attending_ids columns
// 1 - Lifecycle markers stored as is_started/is_skipped/is_notified columns
// 2 - Lifecycle markers packed into the flags bitset
const currentSchemaVersion = 2

// Store provides durable storage for event records.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion returns the database's user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if err := importFirstLayout(db); err != nil {
		return err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// importFirstLayout rewrites an events table in the bot's first layout
// (start, end, message_id, channel_id, attending_ids plus is_* markers) into
// the current schema. It runs before the schema so the indexes find their
// columns. NULL references become empty strings and the markers become flags.
func importFirstLayout(db *sql.DB) error {
	cols, err := tableColumns(db, "events")
	if err != nil {
		return fmt.Errorf("import first layout: %w", err)
	}
	if !cols["start"] || cols["start_at"] {
		return nil
	}

	col := func(name, fallback string) string {
		if cols[name] {
			return fmt.Sprintf("COALESCE(%q, %s)", name, fallback)
		}
		return fallback
	}
	flags := col("flags", "0")
	if cols["is_started"] {
		flags += " | (CASE WHEN is_started THEN 1 ELSE 0 END)"
	}
	if cols["is_skipped"] {
		skipped := "is_skipped"
		if cols["is_started"] {
			skipped += " AND NOT is_started"
		}
		flags += fmt.Sprintf(" | (CASE WHEN %s THEN 2 ELSE 0 END)", skipped)
	}
	if cols["is_notified"] {
		flags += " | (CASE WHEN is_notified THEN 4 ELSE 0 END)"
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("import first layout: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`ALTER TABLE events RENAME TO events_first_layout`); err != nil {
		return fmt.Errorf("import first layout: rename: %w", err)
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("import first layout: create schema: %w", err)
	}

	copyRows := fmt.Sprintf(`
		INSERT INTO events (id, title, url, start_at, end_at, announcement_ref,
			space_ref, attendees, participant_count, flags)
		SELECT id, %s, %s, "start", "end", %s, %s, %s, %s, %s
		FROM events_first_layout`,
		col("title", "''"), col("url", "''"),
		col("message_id", "''"), col("channel_id", "''"), col("attending_ids", "'[]'"),
		col("participant_count", "0"), flags,
	)
	if _, err := tx.Exec(copyRows); err != nil {
		return fmt.Errorf("import first layout: copy rows: %w", err)
	}
	if _, err := tx.Exec(`DROP TABLE events_first_layout`); err != nil {
		return fmt.Errorf("import first layout: drop old table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import first layout: %w", err)
	}
	return nil
}

// migrateToV2 folds this store's v1 boolean lifecycle columns
// (start_at/end_at layout with is_started/is_skipped/is_notified) into flags.
// Databases created at v2 have no such columns and are left untouched.
func migrateToV2(db *sql.DB) error {
	cols, err := tableColumns(db, "events")
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	if !cols["is_started"] {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	defer tx.Rollback()

	if !cols["flags"] {
		if _, err := tx.Exec(`ALTER TABLE events ADD COLUMN flags INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("migrate to v2: add flags: %w", err)
		}
	}

	// Started wins if a legacy row somehow carries both markers.
	if _, err := tx.Exec(`
		UPDATE events SET flags =
			(CASE WHEN is_started THEN 1 ELSE 0 END) |
			(CASE WHEN is_skipped AND NOT is_started THEN 2 ELSE 0 END) |
			(CASE WHEN is_notified THEN 4 ELSE 0 END)
	`); err != nil {
		return fmt.Errorf("migrate to v2: fill flags: %w", err)
	}

	for _, col := range []string{"is_started", "is_skipped", "is_notified"} {
		if !cols[col] {
			continue
		}
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE events DROP COLUMN %s", col)); err != nil {
			return fmt.Errorf("migrate to v2: drop %s: %w", col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
