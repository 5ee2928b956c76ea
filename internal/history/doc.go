// Package history provides the SQLite-backed transaction history log.
//
// The log is append-only: records are written once, never updated, and only
// removed by a wholesale administrative Clear. Ordering uses the engine's
// logical seq (never wall-clock timestamps), so Recent is deterministic
// across runs with the same input sequence; the timestamp column exists for
// display only.
//
// Recent returns records most-recent-first. This ordering is part of the
// log's contract - the presentation layer shows the newest event at the top.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Open ":memory:" for an ephemeral log (tests, scenario runs) or a file
// path for a log that survives restarts. Transactional machine state never
// persists either way; only the record log does.
package history
