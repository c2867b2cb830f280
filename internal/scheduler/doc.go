// Package scheduler reconciles persisted events with the wall clock.
//
// Two periodic operations drive it. Ingest pulls the external feed and admits
// new events. Sweep scans every stored record and arms one-shot timers for
// the transitions that fall due before the next sweep. Timers live in a
// single time-ordered Queue drained by Run.
//
// Sweep does not remember which timers it armed in earlier cycles, so the
// same transition may be armed more than once. The lifecycle operations the
// timers invoke are idempotent: a second start yields AlreadyStarted and a
// second expire finds nothing to remove.
package scheduler
