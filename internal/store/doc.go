// ABOUTME: Package documentation for the store package.
// ABOUTME: Describes the supervision event ledger and its SQLite backing.

// Package store persists the supervision event ledger: every lifecycle
// transition a supervisor observes (start, stop, crash, restart,
// exhaustion) is appended as one immutable row.
//
// The ledger is an audit trail. Nothing reads it on the hot path;
// supervision decisions are made from in-memory state and the ledger
// exists so operators can reconstruct what happened to an agent after
// the fact.
//
// # Implementation
//
// SQLiteStore backs the Store interface with a modernc.org/sqlite
// database in WAL mode. The schema is created automatically on open.
// Recorder adapts the Store to supervisor.EventSink, writing events
// asynchronously so a slow disk never stalls the control loop.
package store
