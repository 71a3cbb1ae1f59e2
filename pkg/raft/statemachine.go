package raft

import "context"

// StateMachine is the pluggable application state machine spec.md §1
// leaves out of scope ("the application state machine itself"). The
// session manager calls Apply on the state execution context; Query,
// Snapshot and Restore are called on the goroutine that calls into the
// session manager, concurrently with Apply.
type StateMachine interface {
	Apply(index Index, payload []byte) ([]byte, error)
	// Query services a read-only request without advancing the log;
	// the consistency guarantees around when it's safe to call this
	// are the session manager's responsibility, not the state
	// machine's (spec.md §4.5).
	Query(payload []byte) ([]byte, error)
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// EntryResult is what applying one committed log entry produced: a
// result to hand back to the client that submitted it (command,
// open/close-session, keep-alive) or an error. State-machine
// application errors are captured here rather than crashing the
// server (spec.md §7).
type EntryResult struct {
	Result []byte
	Err    error
}

// QueryResult is the outcome of executing a gated read (§4.5).
type QueryResult struct {
	Index  Index
	Result []byte
	Err    error
}

// SessionManager is the state-machine manager and client session
// registry (spec.md §4.5), defined here as the interface ServerContext
// and the roles depend on, so pkg/raft never imports pkg/raft/session
// (which imports pkg/raft) — composition happens in the binary that
// wires both together.
//
// In session.Manager, Apply and Expire hand their work off to the
// state execution context and return at once; Await blocks the caller
// on a channel; Query, SessionProgress, Snapshot and InstallSnapshot
// run on the caller's goroutine (InstallSnapshot, for one, is called
// directly from the protocol context).
type SessionManager interface {
	// Apply applies one committed entry in index order. leader
	// indicates whether this server may publish session events for
	// it (spec.md §4.5 "Only the current leader transmits events").
	Apply(entry *LogEntry, leader bool, now int64)

	// Await blocks until the entry at index has been applied (or ctx
	// is done), returning its result. This is the "future/promise"
	// continuation pattern of spec.md §9.
	Await(ctx context.Context, index Index) (EntryResult, error)

	// Query executes a gated read once the named session has observed
	// at least MinSequence commands and MinIndex log entries.
	Query(ctx context.Context, req *QueryRequest) (QueryResult, error)

	// SessionProgress reports, for a registered session, the last log
	// index applied and the last command sequence number it has seen;
	// ok is false for an unknown session.
	SessionProgress(id SessionID) (lastApplied Index, commandSeq uint64, ok bool)

	// Expire scans sessions for staleness (timestamp+timeout < now)
	// and transitions them EXPIRED -> CLOSED (§4.5). now is state
	// machine time, nanoseconds, supplied by the caller so tests can
	// control it.
	Expire(now int64)

	// InstallSnapshot replaces the manager's session registry and
	// application state from a freshly completed snapshot (§4.4).
	InstallSnapshot(snap Snapshot, data []byte) error
	// Snapshot serializes the current session registry + application
	// state for a new snapshot.
	Snapshot() ([]byte, error)
}
