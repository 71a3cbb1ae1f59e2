package raft

// Messages exchanged between servers and between a server and its
// clients, field sets taken from spec.md §6. Shape (plain structs,
// grouped request/response pairs) is grounded on
// ep-eaglepoint-ai-bd_datasets_003/vzdtic-distributed-consensus-raft-kv-store's
// pkg/raft/types.go (RequestVoteArgs/AppendEntriesArgs style), extended
// with the session/query/membership messages this spec adds.

// Status is the outcome of a handled request.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// VoteRequest solicits a binding vote for a candidacy.
type VoteRequest struct {
	Term          Term
	Candidate     MemberID
	LastLogIndex  Index
	LastLogTerm   Term
}

type VoteResponse struct {
	Status Status
	Term   Term
	Voted  bool
}

// PollRequest is a non-binding pre-vote probe (§4.2 FOLLOWER).
type PollRequest struct {
	Term         Term
	Candidate    MemberID
	LastLogIndex Index
	LastLogTerm  Term
}

type PollResponse struct {
	Status   Status
	Term     Term
	Accepted bool
}

// AppendRequest carries a batch of log entries (or none, as a
// heartbeat) from the leader to a follower or learner.
type AppendRequest struct {
	Term         Term
	Leader       MemberID
	PrevLogIndex Index
	PrevLogTerm  Term
	Entries      []*LogEntry
	CommitIndex  Index
}

type AppendResponse struct {
	Status        Status
	Term          Term
	Succeeded     bool
	LastLogIndex  Index
}

// InstallRequest streams a snapshot chunk to a follower that has
// fallen behind the log prefix (§4.4).
type InstallRequest struct {
	Term           Term
	Leader         MemberID
	SnapshotID     string
	SnapshotIndex  Index
	SnapshotTerm   Term
	Offset         int64
	Data           []byte
	Complete       bool
}

type InstallResponse struct {
	Status Status
	Term   Term
}

// ConfigureRequest pushes a new Configuration to a member (used for
// RESERVE/PASSIVE members that receive configuration but don't vote).
type ConfigureRequest struct {
	Term         Term
	Leader       MemberID
	ConfigIndex  Index
	ConfigTime   uint64
	Members      []Member
}

type ConfigureResponse struct {
	Status Status
	Term   Term
}

// JoinRequest asks the leader to admit a new member, starting as
// RESERVE (§4.7).
type JoinRequest struct {
	Member Member
}

// LeaveRequest asks the leader to remove a member.
type LeaveRequest struct {
	Member MemberID
}

// ReconfigureRequest replaces the member set wholesale, e.g. to
// promote a caught-up learner to ACTIVE.
type ReconfigureRequest struct {
	Members    []Member
	ConfigTime uint64
	ConfigIndex Index
}

// MembershipResponse is the shared response shape for
// Join/Leave/Reconfigure: the resulting configuration, once applied.
type MembershipResponse struct {
	Status        Status
	Error         ErrorKind
	Message       string
	Configuration Configuration
}

// OpenSessionRequest registers a new client session.
type OpenSessionRequest struct {
	Member  MemberID
	Name    string
	Type    string
	Timeout int64 // nanoseconds
}

type OpenSessionResponse struct {
	Status    Status
	Error     ErrorKind
	Session   SessionID
	Leader    MemberID
}

// KeepAliveRequest refreshes a session and acknowledges delivered
// results/events so the manager can garbage-collect them.
type KeepAliveRequest struct {
	Session           SessionID
	CommandAckSequence uint64
	EventAckIndex     EventIndex
}

type KeepAliveResponse struct {
	Status  Status
	Error   ErrorKind
	Leader  MemberID
}

// CloseSessionRequest explicitly closes a session (vs. letting it
// expire).
type CloseSessionRequest struct {
	Session SessionID
}

type CloseSessionResponse struct {
	Status Status
	Error  ErrorKind
}

// CommandRequest is a linearizable write against the state machine.
type CommandRequest struct {
	Session     SessionID
	Sequence    uint64
	AckSequence uint64
	Payload     []byte
}

type CommandResponse struct {
	Status  Status
	Error   ErrorKind
	Index   Index
	Result  []byte
	Leader  MemberID
}

// QueryConsistency selects the staleness bound for a read (§4.5).
type QueryConsistency int

const (
	QueryConsistencyStrict QueryConsistency = iota
	QueryConsistencyLease
	QueryConsistencyEventual
)

// QueryRequest is a read against the state machine, gated on the
// requested consistency mode and the session's observed progress.
type QueryRequest struct {
	Session      SessionID
	MinSequence  uint64
	MinIndex     Index
	Consistency  QueryConsistency
	Payload      []byte
}

type QueryResponse struct {
	Status Status
	Error  ErrorKind
	Index  Index
	Result []byte
	Leader MemberID
}

// PublishRequest is a server push of events accumulated on a session
// since previousIndex, resendable after a Reset (§4.5 event path).
type PublishRequest struct {
	Session       SessionID
	EventIndex    EventIndex
	PreviousIndex EventIndex
	Events        [][]byte
}

type PublishResponse struct {
	Status Status
}

// ResetRequest acks delivered events up to and including Index and
// asks for any remaining batches to be resent.
type ResetRequest struct {
	Session SessionID
	Index   EventIndex
}

type ResetResponse struct {
	Status Status
}

// MetadataRequest queries cluster/session bookkeeping without
// touching the application state machine.
type MetadataRequest struct {
	Session SessionID
}

type MetadataResponse struct {
	Status        Status
	Leader        MemberID
	Term          Term
	Configuration Configuration
}
