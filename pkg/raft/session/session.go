// Package session implements the state-machine manager and client
// session registry spec.md §4.5 describes: linearizable command
// application with per-session sequencing and result caching, gated
// reads under STRICT/LEASE/EVENTUAL consistency, and resendable
// server-push events.
//
// Manager satisfies raft.SessionManager structurally; pkg/raft never
// imports this package, avoiding the obvious import cycle (this
// package imports pkg/raft for its message and log-entry types).
package session

import "github.com/zhipwang/atomix/pkg/raft"

// State is a session's lifecycle stage (spec.md §4.5).
type State string

const (
	StateOpen    State = "OPEN"
	StateExpired State = "EXPIRED"
	StateClosed  State = "CLOSED"
)

// eventBatch is one resendable, acknowledgeable push of state-machine
// events to a session (spec.md §4.5 event path): Previous links it to
// the batch before it so a client that missed one can tell.
type eventBatch struct {
	Index    raft.EventIndex
	Previous raft.EventIndex
	Events   [][]byte
}

// Session is one client's registration (spec.md §3 Session). Sequence
// numbers and results are cached so a resent CommandRequest (the
// client's retry on a timeout) is answered from cache instead of
// re-applied — the idempotence half of linearizability.
type Session struct {
	ID           raft.SessionID
	Name         string
	Type         string
	Member       raft.MemberID
	Timeout      int64 // nanoseconds
	LastActivity int64 // state-machine clock reading at last observed activity
	State        State

	lastSequence uint64
	results      map[uint64]cachedResult

	nextEventIndex raft.EventIndex
	completeIndex  raft.EventIndex
	pending        []eventBatch
}

type cachedResult struct {
	value []byte
	err   string
}

func newSession(id raft.SessionID, req *raft.OpenSessionRequest, now int64) *Session {
	return &Session{
		ID:           id,
		Name:         req.Name,
		Type:         req.Type,
		Member:       req.Member,
		Timeout:      req.Timeout,
		LastActivity: now,
		State:        StateOpen,
		results:      make(map[uint64]cachedResult),
	}
}

// expired reports whether now is past this session's timeout measured
// from its last observed activity (spec.md §4.5 "no keep-alive within
// the session timeout").
func (s *Session) expired(now int64) bool {
	if s.Timeout <= 0 {
		return false
	}
	return now-s.LastActivity > s.Timeout
}

// ackCommands drops cached results at or below the acknowledged
// sequence (the client has seen them and will never resend).
func (s *Session) ackCommands(seq uint64) {
	for k := range s.results {
		if k <= seq {
			delete(s.results, k)
		}
	}
}

// ackEvents drops pending batches at or below the acknowledged index.
func (s *Session) ackEvents(index raft.EventIndex) {
	s.completeIndex = index
	kept := s.pending[:0]
	for _, b := range s.pending {
		if b.Index > index {
			kept = append(kept, b)
		}
	}
	s.pending = kept
}

// publish appends a new event batch for this session, tagged with the
// log index whose application produced it and linked to the index of
// the session's previous batch. Nothing in this module calls publish
// or resend, and no PublishRequest is sent.
func (s *Session) publish(index raft.EventIndex, events [][]byte) eventBatch {
	previous := s.nextEventIndex
	s.nextEventIndex = index
	batch := eventBatch{Index: index, Previous: previous, Events: events}
	s.pending = append(s.pending, batch)
	return batch
}

// resend returns every event batch not yet acknowledged, for delivery
// after a client Reset (spec.md §4.5 "resendable").
func (s *Session) resend() []eventBatch {
	return append([]eventBatch(nil), s.pending...)
}
