// Package store provides SQLite-backed storage for binding traces.
//
// Each call to the harness records one run: the scenario it came from, its
// outcome, and the ordered events the binding engine emitted. Runs are kept
// so traces can be compared across versions of a template or handler set.
//
// # Tables
//
//   - runs: one row per recorded run, with the canonical trace hash
//   - events: the ordered trace of a run, deleted with it
//
// # Ordering
//
// All ordering uses seq (a logical clock), never timestamps. Queries order
// by seq with id as a binary-collated tie break so results are identical
// across machines.
//
// # Idempotency
//
// Writing a run ID that already exists returns the stored run unchanged.
// Run IDs are UUIDv7, so retries of the same run never create duplicates.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and speed
//   - busy_timeout=5000: wait up to 5 seconds for locks
//   - foreign_keys=ON: events cascade with their run
package store
