// Package store provides SQLite-backed durable storage for event records.
//
// The store holds one row per record plus a small key/value settings table
// for configuration changed at runtime.
//
// # Write discipline
//
// Every write targets exactly one row. Insert uses ON CONFLICT(id) DO NOTHING
// so re-ingesting a known event is harmless, and every write checks
// RowsAffected: anything other than 1 is reported as a persistence failure
// (event.ErrCodePersistenceFailure) and left to the caller to log or escalate.
//
// # Migrations
//
// Open upgrades older databases in place. A table in the bot's first layout
// (start, end, message_id, channel_id, attending_ids and is_* booleans) is
// copied into the current schema. Schema v1 is this store's own earlier
// layout, which already used start_at/end_at/announcement_ref but kept the
// lifecycle markers as is_* columns; v2 packs them into the flags bitset.
//
// # Ordering
//
// All() returns records ordered by start_at ASC, id ASC so sweeps visit
// records in a stable order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
