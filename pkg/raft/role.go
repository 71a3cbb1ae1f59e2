package raft

// RoleName identifies which role state machine is currently active on
// a server (spec.md §4.2).
type RoleName string

const (
	RoleInactiveName RoleName = "INACTIVE"
	RoleReserveName  RoleName = "RESERVE"
	RolePassiveName  RoleName = "PASSIVE"
	RoleFollowerName RoleName = "FOLLOWER"
	RoleCandidateName RoleName = "CANDIDATE"
	RoleLeaderName   RoleName = "LEADER"
)

// Role is the handler set for whichever role is currently active,
// modeled as a tagged variant per spec.md §9 ("Role polymorphism via
// class hierarchy → represent role as a tagged variant with a
// trait/interface for the handler set"). Exactly one Role is active
// per server at a time, swapped atomically on the protocol execution
// context by ServerContext.Transition.
//
// All methods run on the protocol execution context except where
// noted; none of them may block on network I/O synchronously — async
// work is posted back via the server's Executor (spec.md §5).
type Role interface {
	Name() RoleName

	// Open is called once, after the role is installed as current,
	// before any requests are dispatched to it. Close is called once,
	// before the role is replaced, to unwind its invariants (cancel
	// timers, stop appenders).
	Open()
	Close()

	HandleVote(req *VoteRequest) *VoteResponse
	HandlePoll(req *PollRequest) *PollResponse
	HandleAppend(req *AppendRequest) *AppendResponse
	HandleInstall(req *InstallRequest) *InstallResponse
	HandleConfigure(req *ConfigureRequest) *ConfigureResponse

	HandleJoin(req *JoinRequest) *MembershipResponse
	HandleLeave(req *LeaveRequest) *MembershipResponse
	HandleReconfigure(req *ReconfigureRequest) *MembershipResponse

	HandleOpenSession(req *OpenSessionRequest) *OpenSessionResponse
	HandleCloseSession(req *CloseSessionRequest) *CloseSessionResponse
	HandleKeepAlive(req *KeepAliveRequest) *KeepAliveResponse
	HandleCommand(req *CommandRequest) *CommandResponse
	HandleQuery(req *QueryRequest) *QueryResponse
	HandleMetadata(req *MetadataRequest) *MetadataResponse
}
