package session

import (
	"context"
	"sync"

	"github.com/zhipwang/atomix/pkg/metrics"
	"github.com/zhipwang/atomix/pkg/raft"
)

// Manager applies committed log entries to an application
// raft.StateMachine and maintains the client session registry
// (spec.md §4.5). Apply and Expire post their work to the state
// execution context (raft.Executor); InstallSnapshot replaces the
// registry on the caller's goroutine. Manager's mutex guards the
// bookkeeping (sessions, waiters, results) that Await, Query,
// SessionProgress, Snapshot and InstallSnapshot touch from outside
// that context.
type Manager struct {
	sm       raft.StateMachine
	executor *raft.Executor

	mu           sync.Mutex
	sessions     map[raft.SessionID]*Session
	appliedIndex raft.Index
	waiters      map[raft.Index][]chan raft.EntryResult
	results      map[raft.Index]raft.EntryResult
}

var _ raft.SessionManager = (*Manager)(nil)

func NewManager(sm raft.StateMachine, executor *raft.Executor) *Manager {
	return &Manager{
		sm:       sm,
		executor: executor,
		sessions: make(map[raft.SessionID]*Session),
		waiters:  make(map[raft.Index][]chan raft.EntryResult),
		results:  make(map[raft.Index]raft.EntryResult),
	}
}

// Apply posts application of one committed entry onto the state
// executor and returns immediately; completion is observed through
// Await. Entries must be applied in index order — callers (the
// leader and follower roles) already guarantee that by construction,
// since commitIndex only advances over a contiguous, appended log.
func (m *Manager) Apply(entry *raft.LogEntry, leader bool, now int64) {
	m.executor.Post(func() {
		res := m.applyOne(entry, leader, now)
		m.mu.Lock()
		m.appliedIndex = entry.Index
		metrics.AppliedIndex.Set(float64(entry.Index))
		m.results[entry.Index] = res
		waiters := m.waiters[entry.Index]
		delete(m.waiters, entry.Index)
		m.mu.Unlock()
		for _, w := range waiters {
			w <- res
			close(w)
		}
	})
}

func (m *Manager) applyOne(entry *raft.LogEntry, leader bool, now int64) raft.EntryResult {
	switch entry.Kind {
	case raft.EntryOpenSession:
		return m.applyOpenSession(entry, now)
	case raft.EntryCloseSession:
		return m.applyCloseSession(entry)
	case raft.EntryKeepAlive:
		return m.applyKeepAlive(entry, now)
	case raft.EntryCommand:
		return m.applyCommand(entry, leader)
	default:
		// CONFIGURATION, METADATA, QUERY, INITIALIZE entries don't
		// touch application state; they're logged for ordering only.
		return raft.EntryResult{}
	}
}

func decodeOpenSessionPayload(payload []byte) (*raft.OpenSessionRequest, error) {
	return decodeJSON[raft.OpenSessionRequest](payload)
}

func (m *Manager) applyOpenSession(entry *raft.LogEntry, now int64) raft.EntryResult {
	req, err := decodeOpenSessionPayload(entry.Payload)
	if err != nil {
		return raft.EntryResult{Err: err}
	}
	sess := newSession(entry.Index, req, now)
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	metrics.SessionsOpenTotal.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return raft.EntryResult{}
}

func (m *Manager) applyCloseSession(entry *raft.LogEntry) raft.EntryResult {
	req, err := decodeJSON[raft.CloseSessionRequest](entry.Payload)
	if err != nil {
		return raft.EntryResult{Err: err}
	}
	m.mu.Lock()
	if sess, ok := m.sessions[req.Session]; ok {
		sess.State = StateClosed
		delete(m.sessions, req.Session)
		metrics.SessionsOpenTotal.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()
	return raft.EntryResult{}
}

func (m *Manager) applyKeepAlive(entry *raft.LogEntry, now int64) raft.EntryResult {
	req, err := decodeJSON[raft.KeepAliveRequest](entry.Payload)
	if err != nil {
		return raft.EntryResult{Err: err}
	}
	m.mu.Lock()
	sess, ok := m.sessions[req.Session]
	if !ok {
		m.mu.Unlock()
		return raft.EntryResult{Err: raft.NewError(raft.ErrUnknownSession, "session %d not found", req.Session)}
	}
	sess.LastActivity = now
	sess.ackCommands(req.CommandAckSequence)
	sess.ackEvents(req.EventAckIndex)
	m.updateEventBacklogLocked()
	m.mu.Unlock()
	return raft.EntryResult{}
}

// updateEventBacklogLocked recomputes the total unacknowledged event
// backlog across every session. Callers must hold m.mu.
func (m *Manager) updateEventBacklogLocked() {
	total := 0
	for _, sess := range m.sessions {
		total += len(sess.pending)
	}
	metrics.EventBacklogSize.Set(float64(total))
}

func (m *Manager) applyCommand(entry *raft.LogEntry, leader bool) raft.EntryResult {
	req, err := decodeJSON[raft.CommandRequest](entry.Payload)
	if err != nil {
		return raft.EntryResult{Err: err}
	}
	m.mu.Lock()
	sess, ok := m.sessions[req.Session]
	if !ok {
		m.mu.Unlock()
		return raft.EntryResult{Err: raft.NewError(raft.ErrUnknownSession, "session %d not found", req.Session)}
	}
	if cached, ok := sess.results[req.Sequence]; ok {
		m.mu.Unlock()
		if cached.err != "" {
			return raft.EntryResult{Err: raft.NewError(raft.ErrApplicationError, "%s", cached.err)}
		}
		return raft.EntryResult{Result: cached.value}
	}
	sess.ackCommands(req.AckSequence)
	m.mu.Unlock()

	timer := metrics.NewTimer()
	result, applyErr := m.sm.Apply(entry.Index, req.Payload)
	timer.ObserveDuration(metrics.CommandLatency)
	metrics.CommandsAppliedTotal.Inc()

	m.mu.Lock()
	cr := cachedResult{value: result}
	if applyErr != nil {
		cr.err = applyErr.Error()
	}
	sess.results[req.Sequence] = cr
	sess.lastSequence = req.Sequence
	m.mu.Unlock()

	return raft.EntryResult{Result: result, Err: applyErr}
}

func (m *Manager) Await(ctx context.Context, index raft.Index) (raft.EntryResult, error) {
	m.mu.Lock()
	if index <= m.appliedIndex {
		res := m.results[index]
		m.mu.Unlock()
		return res, nil
	}
	ch := make(chan raft.EntryResult, 1)
	m.waiters[index] = append(m.waiters[index], ch)
	m.mu.Unlock()

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return raft.EntryResult{}, ctx.Err()
	}
}

// Query executes a gated read once the requesting session has
// observed at least MinSequence commands (so the read reflects
// everything the client itself has already caused) and the manager
// has applied at least MinIndex (spec.md §4.5). For STRICT reads the
// leader role confirms it is still leader before calling Query; LEASE
// reads get no such check. Query only enforces the session-progress
// gate.
func (m *Manager) Query(ctx context.Context, req *raft.QueryRequest) (raft.QueryResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.QueryLatency, consistencyLabel(req.Consistency))

	m.mu.Lock()
	sess, ok := m.sessions[req.Session]
	if req.Session != 0 && !ok {
		m.mu.Unlock()
		return raft.QueryResult{}, raft.NewError(raft.ErrUnknownSession, "session %d not found", req.Session)
	}
	appliedIndex := m.appliedIndex
	m.mu.Unlock()

	if req.MinIndex > appliedIndex {
		return raft.QueryResult{}, raft.NewError(raft.ErrQueryFailure, "not yet applied index %d", req.MinIndex)
	}
	if ok && req.MinSequence > sess.lastSequence {
		return raft.QueryResult{}, raft.NewError(raft.ErrQueryFailure, "not yet applied sequence %d", req.MinSequence)
	}

	result, err := m.sm.Query(req.Payload)
	if err != nil {
		return raft.QueryResult{}, err
	}
	return raft.QueryResult{Index: appliedIndex, Result: result}, nil
}

func consistencyLabel(c raft.QueryConsistency) string {
	switch c {
	case raft.QueryConsistencyStrict:
		return "strict"
	case raft.QueryConsistencyLease:
		return "lease"
	case raft.QueryConsistencyEventual:
		return "eventual"
	default:
		return "unknown"
	}
}

func (m *Manager) SessionProgress(id raft.SessionID) (raft.Index, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return 0, 0, false
	}
	return m.appliedIndex, sess.lastSequence, true
}

// Expire sweeps every OPEN session for staleness (spec.md §4.5); a
// stale session is marked EXPIRED, then CLOSED, and removed from the
// registry, dropping its cached results and pending events.
func (m *Manager) Expire(now int64) {
	m.executor.Post(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for id, sess := range m.sessions {
			if sess.State == StateOpen && sess.expired(now) {
				sess.State = StateExpired
				sess.State = StateClosed
				delete(m.sessions, id)
			}
		}
		metrics.SessionsOpenTotal.Set(float64(len(m.sessions)))
	})
}
