// Package event defines the persisted event record, its lifecycle state and
// the error taxonomy shared by the store, the lifecycle engine and the
// scheduler.
//
// A Record is in exactly one State (Voting, Started or Skipped). Notified is
// an independent one-shot marker. On disk the three markers are packed into
// a Flags bitset so older databases that stored boolean columns can be
// migrated without loss.
package event
