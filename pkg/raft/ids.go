package raft

// Term identifies an election epoch. Monotonically increasing,
// persisted, never decreases across restarts (spec.md §3).
type Term uint64

// Index is a position in the replicated log, starting at 1.
type Index uint64

// SessionID identifies a client session. It equals the log index at
// which the session's open-session entry was applied (spec.md §3).
type SessionID = Index

// MemberID identifies a cluster member. Opaque to the protocol beyond
// equality comparison.
type MemberID string

// EventIndex is the log index at which a batch of session events was
// published; used for resend/ack (GLOSSARY).
type EventIndex = Index
