package raft

import "context"

// EntryKind tags what a LogEntry carries (spec.md §3).
type EntryKind string

const (
	EntryInitialize    EntryKind = "INITIALIZE"
	EntryConfiguration EntryKind = "CONFIGURATION"
	EntryCommand       EntryKind = "COMMAND"
	EntryOpenSession   EntryKind = "OPEN_SESSION"
	EntryCloseSession  EntryKind = "CLOSE_SESSION"
	EntryKeepAlive     EntryKind = "KEEP_ALIVE"
	EntryQuery         EntryKind = "QUERY"
	EntryMetadata      EntryKind = "METADATA"
)

// LogEntry is one append-only record of the replicated log (spec.md
// §3, invariants L1-L3). Entries are never rewritten once committed;
// an uncommitted suffix may be truncated by a new leader's append
// pipeline.
type LogEntry struct {
	Index   Index
	Term    Term
	Kind    EntryKind
	Payload []byte
}

// Log is the durable log contract (spec.md §6). It is an external
// collaborator — this package only depends on the interface; see
// pkg/raftstore for a concrete bbolt-backed implementation.
type Log interface {
	Open(ctx context.Context) error
	Writer() LogWriter
	Reader() LogReader
	FirstIndex() Index
	LastIndex() Index
	Close() error
	Delete() error
}

// LogWriter is the single-producer append/truncate/commit side of the
// log, serialized by the protocol execution context (spec.md §5).
type LogWriter interface {
	Append(entry *LogEntry) error
	// Truncate drops all entries with index >= from. The leader never
	// truncates its own log (§4.6); only followers truncate.
	Truncate(from Index) error
	Commit(index Index) error
	LastIndex() Index
}

// LogReader is a sequential, independently-positioned view over the
// log. Each follower's appender owns its own reader with its own lock
// (spec.md §5 "Resource sharing").
type LogReader interface {
	// Seek repositions the reader so the next Next() returns the
	// entry at index, if present.
	Seek(index Index) error
	// Next advances and returns the entry at the reader's current
	// position, or nil if the entry has been compacted away (spec.md
	// §4.3 "null log entry... is skipped").
	Next() (*LogEntry, error)
	Current() Index
	HasNext() bool
	Reset() error
	Close() error
}
