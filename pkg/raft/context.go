package raft

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AppenderConfig bounds a leader's per-member replication pipeline
// (spec.md §4.3). MaxInFlight is the K of "at most K outstanding
// AppendEntries RPCs per member"; the Open Question on K's default is
// decided in favor of 1 (see SPEC_FULL.md §9). The appender does not
// read MaxInFlight: it always has at most one request outstanding.
type AppenderConfig struct {
	MaxInFlight    int
	MaxBatchSize   int
	RetryBackoff   time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultAppenderConfig matches the decision recorded in SPEC_FULL.md
// §9 for the Open Questions this spec leaves unresolved.
func DefaultAppenderConfig() AppenderConfig {
	return AppenderConfig{
		MaxInFlight:     1,
		MaxBatchSize:    256,
		RetryBackoff:    10 * time.Millisecond,
		MaxRetryBackoff: 1 * time.Second,
	}
}

// TimeoutConfig holds the election/heartbeat timing parameters every
// role references (spec.md §4.2).
type TimeoutConfig struct {
	HeartbeatInterval  time.Duration
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
}

func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		HeartbeatInterval:  100 * time.Millisecond,
		ElectionTimeoutMin: 300 * time.Millisecond,
		ElectionTimeoutMax: 600 * time.Millisecond,
	}
}

// ElectionListener is notified whenever the server observes a new
// leader or loses track of one (spec.md §4.1 "registered handlers").
type ElectionListener func(term Term, leader MemberID)

// StateChangeListener is notified on every role transition.
type StateChangeListener func(role RoleName)

// ServerContext owns every piece of server-wide volatile state plus
// the durable metadata and role holder (spec.md §4.1): current term,
// leader hint, commit index, voted-for, the current Configuration,
// registered listeners, and the two single-threaded execution
// contexts ("protocol" and "state", spec.md §5). Exactly one
// ServerContext exists per server process.
//
// Fields that may be read from either execution context (term,
// leader, commitIndex, votedFor, configuration, role) are atomics;
// memberStates, the listener lists and installCursors are guarded by
// mu.
type ServerContext struct {
	Local MemberID

	term       atomic.Uint64
	leader     atomic.Value // MemberID
	commitIndex atomic.Uint64
	votedFor   atomic.Value // MemberID

	config atomic.Pointer[Configuration]
	role   atomic.Pointer[roleHolder]

	Log          Log
	MetaStore    MetaStore
	Snapshots    SnapshotStore
	Transport    Transport
	Sessions     SessionManager

	ProtocolExecutor *Executor
	StateExecutor    *Executor

	Appender AppenderConfig
	Timeouts TimeoutConfig

	Log_ zerolog.Logger // explicit sink, never the global logger (SPEC_FULL.md §9)

	mu                   sync.Mutex
	memberStates         map[MemberID]*MemberState
	electionListeners    []ElectionListener
	stateChangeListeners []StateChangeListener
	installCursors       map[string]*installCursor
}

func (sc *ServerContext) installCursor(id string) (*installCursor, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	c, ok := sc.installCursors[id]
	return c, ok
}

func (sc *ServerContext) setInstallCursor(id string, c *installCursor) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.installCursors == nil {
		sc.installCursors = make(map[string]*installCursor)
	}
	sc.installCursors[id] = c
}

func (sc *ServerContext) clearInstallCursor(id string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.installCursors, id)
}

// roleHolder boxes a Role so atomic.Pointer has a consistent pointee
// type across role-interface implementations (which differ in size).
type roleHolder struct {
	role Role
}

// NewServerContext wires the collaborators a server needs. The
// initial role is always inactive; the caller transitions it once
// startup has loaded durable state (spec.md §4.2 INACTIVE).
func NewServerContext(local MemberID, log Log, meta MetaStore, snaps SnapshotStore, transport Transport, sessions SessionManager, logger zerolog.Logger) *ServerContext {
	sc := &ServerContext{
		Local:            local,
		Log:              log,
		MetaStore:        meta,
		Snapshots:        snaps,
		Transport:        transport,
		Sessions:         sessions,
		ProtocolExecutor: NewExecutor(256),
		StateExecutor:    NewExecutor(256),
		Appender:         DefaultAppenderConfig(),
		Timeouts:         DefaultTimeoutConfig(),
		Log_:             logger,
		memberStates:     make(map[MemberID]*MemberState),
	}
	sc.leader.Store(MemberID(""))
	sc.votedFor.Store(MemberID(""))
	sc.config.Store(&Configuration{})
	sc.role.Store(&roleHolder{role: newInactiveRole(sc)})
	return sc
}

func (sc *ServerContext) Term() Term { return Term(sc.term.Load()) }

func (sc *ServerContext) Leader() MemberID {
	if v := sc.leader.Load(); v != nil {
		return v.(MemberID)
	}
	return ""
}

func (sc *ServerContext) CommitIndex() Index { return Index(sc.commitIndex.Load()) }

func (sc *ServerContext) VotedFor() MemberID {
	if v := sc.votedFor.Load(); v != nil {
		return v.(MemberID)
	}
	return ""
}

func (sc *ServerContext) Configuration() Configuration {
	if c := sc.config.Load(); c != nil {
		return *c
	}
	return Configuration{}
}

func (sc *ServerContext) Role() Role {
	return sc.role.Load().role
}

func (sc *ServerContext) RoleName() RoleName {
	return sc.Role().Name()
}

// SetConfiguration installs a new Configuration, persisting it first
// (spec.md §3: the last configuration is durable metadata).
func (sc *ServerContext) SetConfiguration(c Configuration) error {
	if err := sc.MetaStore.StoreConfiguration(c); err != nil {
		return err
	}
	sc.config.Store(&c)
	return nil
}

// SetCommitIndex advances the commit index. It never moves backward;
// callers that might race (appender success callbacks) should compare
// before calling, but SetCommitIndex itself also guards against
// regression for safety.
func (sc *ServerContext) SetCommitIndex(c Index) {
	for {
		cur := sc.commitIndex.Load()
		if uint64(c) <= cur {
			return
		}
		if sc.commitIndex.CompareAndSwap(cur, uint64(c)) {
			return
		}
	}
}

// SetTerm durably persists and installs a new current term. Per
// spec.md §4.1, SetTerm must run on the protocol execution context;
// callers are responsible for that (it is posted there by the roles
// that call it).
func (sc *ServerContext) SetTerm(t Term) error {
	if err := sc.MetaStore.StoreTerm(t); err != nil {
		return err
	}
	sc.term.Store(uint64(t))
	sc.votedFor.Store(MemberID(""))
	if err := sc.MetaStore.StoreVote(""); err != nil {
		return err
	}
	return nil
}

// SetVote records this server's vote for the current term.
func (sc *ServerContext) SetVote(id MemberID) error {
	if err := sc.MetaStore.StoreVote(id); err != nil {
		return err
	}
	sc.votedFor.Store(id)
	return nil
}

// SetLeader updates the leader hint and notifies election listeners.
// A blank id means "no known leader" (e.g. on election timeout).
func (sc *ServerContext) SetLeader(term Term, id MemberID) {
	sc.leader.Store(id)
	sc.mu.Lock()
	listeners := append([]ElectionListener(nil), sc.electionListeners...)
	sc.mu.Unlock()
	for _, l := range listeners {
		l(term, id)
	}
}

// Transition installs a new Role as current, closing the old one
// first and opening the new one. Must be called from the protocol
// execution context (spec.md §4.1: "a programming error to invoke
// transition from another context").
func (sc *ServerContext) Transition(next Role) {
	old := sc.Role()
	old.Close()
	sc.role.Store(&roleHolder{role: next})
	next.Open()
	sc.mu.Lock()
	listeners := append([]StateChangeListener(nil), sc.stateChangeListeners...)
	sc.mu.Unlock()
	name := next.Name()
	for _, l := range listeners {
		l(name)
	}
}

// AddElectionListener registers a callback for leader/term changes.
func (sc *ServerContext) AddElectionListener(l ElectionListener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.electionListeners = append(sc.electionListeners, l)
}

// AddStateChangeListener registers a callback for role transitions.
func (sc *ServerContext) AddStateChangeListener(l StateChangeListener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stateChangeListeners = append(sc.stateChangeListeners, l)
}

// MemberStateFor returns (creating if absent) the leader-side bookkeeping
// for id, seeded with nextIndex if newly created.
func (sc *ServerContext) MemberStateFor(id MemberID, nextIndex Index) *MemberState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	ms, ok := sc.memberStates[id]
	if !ok {
		ms = NewMemberState(id, nextIndex)
		sc.memberStates[id] = ms
	}
	return ms
}

// ResetMemberStates clears all leader-side bookkeeping, called when a
// server steps up as leader or installs a new configuration (spec.md
// §4.2 LEADER "on election": reinitialize per-member state").
func (sc *ServerContext) ResetMemberStates(members []Member, nextIndex Index) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.memberStates = make(map[MemberID]*MemberState, len(members))
	for _, m := range members {
		if m.ID == sc.Local {
			continue
		}
		sc.memberStates[m.ID] = NewMemberState(m.ID, nextIndex)
	}
}

// memberStateLocked looks up existing bookkeeping without creating it.
func (sc *ServerContext) memberStateLocked(id MemberID) (*MemberState, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	ms, ok := sc.memberStates[id]
	return ms, ok
}

func (sc *ServerContext) MemberStateSnapshots() map[MemberID]MemberState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make(map[MemberID]MemberState, len(sc.memberStates))
	for id, ms := range sc.memberStates {
		out[id] = ms.Snapshot()
	}
	return out
}

// Close stops both execution contexts. Queued work already posted is
// drained before the executors exit (spec.md §5 "graceful shutdown").
func (sc *ServerContext) Close() {
	sc.Role().Close()
	sc.ProtocolExecutor.Stop()
	sc.StateExecutor.Stop()
}
