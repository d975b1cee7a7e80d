// Package audit persists evaluation traces so a decision can be fetched and
// checked after the fact by its trace id.
//
// # Records
//
// A Record carries the policy identity and the decision summary as columns,
// plus the complete trace as canonical JSON (RFC 8785). The record hash is
// the SHA-256 of that payload, so any backend can be verified independently
// of how it stores the bytes.
//
// # Backends
//
// The storage subpackage provides four Store implementations:
//
//   - memory: process-local map, used by tests and the CLI
//   - sqlite: embedded file database, mattn/go-sqlite3 or the pure Go modernc driver
//   - postgres: shared database through lib/pq
//   - redis: key per trace with a TTL and a sorted-set index
//
// storage.Open picks one from configuration.
//
// # Recording
//
// The recorder subpackage turns engine traces into records and writes them,
// either inline or through a buffered background worker.
//
// # Retention
//
// The retention subpackage prunes records by age and by total count, on a
// cron schedule.
package audit
