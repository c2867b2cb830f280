// Package lifecycle applies state transitions to persisted event records.
//
// Each exported operation takes a record id, acquires the per-id lock,
// re-reads the record from the store, decides whether the transition is
// legal, persists the new state and only then performs side effects on the
// announcement, the space and direct messages. Side-effect failures are
// logged and swallowed: a transition that reached the store is never rolled
// back.
//
// State machine:
//
//	Voting --tryStart--> Started --expire--> (deleted)
//	Voting --skip------> Skipped --expire--> (deleted)
//	Voting --expire----> (deleted)
//
// Notified is orthogonal and set at most once, from Voting or Started.
// A forced start may also move a Skipped record to Started.
package lifecycle
