package raft

import (
	"context"
	"sync"
)

// leaderRole drives replication and services every client-facing
// request directly (spec.md §4.2 LEADER). On entry it appends a
// no-op CONFIGURATION-carrying entry for its own term (the classic
// "commit a no-op to surface prior-term entries" rule) and starts one
// appender per non-local member.
type leaderRole struct {
	roleBase

	mu        sync.Mutex
	appenders map[MemberID]*appender

	membership *membershipCoordinator
}

var _ Role = (*leaderRole)(nil)

func newLeaderRole(ctx *ServerContext) *leaderRole {
	return &leaderRole{
		roleBase:  newRoleBase(ctx, RoleLeaderName),
		appenders: make(map[MemberID]*appender),
	}
}

func (r *leaderRole) Open() {
	ctx := r.ctx
	cfg := ctx.Configuration()
	ctx.ResetMemberStates(cfg.Members, ctx.Log.LastIndex()+1)
	r.membership = newMembershipCoordinator(ctx)

	for _, m := range cfg.Members {
		if m.ID == ctx.Local {
			continue
		}
		state := ctx.MemberStateFor(m.ID, ctx.Log.LastIndex()+1)
		r.appenders[m.ID] = newAppender(ctx, m, state)
	}

	// Commit a term-opening no-op so previously-uncommitted entries
	// from earlier terms become committable under the current-term
	// rule (spec.md §4.2 "only commit entries from the current term").
	entry := &LogEntry{
		Index: ctx.Log.LastIndex() + 1,
		Term:  ctx.Term(),
		Kind:  EntryConfiguration,
	}
	ctx.Log.Writer().Append(entry)
	ctx.SetLeader(ctx.Term(), ctx.Local)
	r.wakeAll()
}

func (r *leaderRole) Close() {
	r.mu.Lock()
	appenders := r.appenders
	r.appenders = nil
	r.mu.Unlock()
	for _, a := range appenders {
		a.Stop()
	}
	if r.membership != nil {
		r.membership.Stop()
	}
}

func (r *leaderRole) wakeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appenders {
		a.Wake()
	}
}

func (r *leaderRole) HandleVote(req *VoteRequest) *VoteResponse {
	ctx := r.ctx
	if req.Term <= ctx.Term() {
		return &VoteResponse{Status: StatusOK, Term: ctx.Term(), Voted: false}
	}
	ctx.SetTerm(req.Term)
	ctx.Transition(newFollowerRole(ctx))
	return ctx.Role().HandleVote(req)
}

func (r *leaderRole) HandleAppend(req *AppendRequest) *AppendResponse {
	ctx := r.ctx
	if req.Term <= ctx.Term() {
		return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false}
	}
	// A higher-term leader exists; step down (§4.2 L3 at most one
	// leader per term, but a higher term always wins).
	ctx.SetTerm(req.Term)
	ctx.Transition(newFollowerRole(ctx))
	return ctx.Role().HandleAppend(req)
}

func (r *leaderRole) HandleOpenSession(req *OpenSessionRequest) *OpenSessionResponse {
	ctx := r.ctx
	entry := &LogEntry{Index: ctx.Log.LastIndex() + 1, Term: ctx.Term(), Kind: EntryOpenSession, Payload: encodeOpenSession(req)}
	if err := ctx.Log.Writer().Append(entry); err != nil {
		return &OpenSessionResponse{Status: StatusError, Error: ErrProtocolError, Leader: ctx.Local}
	}
	r.wakeAll()
	res, err := ctx.Sessions.Await(context.Background(), entry.Index)
	if err != nil || res.Err != nil {
		return &OpenSessionResponse{Status: StatusError, Error: ErrCommandFailure, Leader: ctx.Local}
	}
	return &OpenSessionResponse{Status: StatusOK, Session: entry.Index, Leader: ctx.Local}
}

func (r *leaderRole) HandleCloseSession(req *CloseSessionRequest) *CloseSessionResponse {
	ctx := r.ctx
	entry := &LogEntry{Index: ctx.Log.LastIndex() + 1, Term: ctx.Term(), Kind: EntryCloseSession, Payload: encodeCloseSession(req)}
	if err := ctx.Log.Writer().Append(entry); err != nil {
		return &CloseSessionResponse{Status: StatusError, Error: ErrProtocolError}
	}
	r.wakeAll()
	_, err := ctx.Sessions.Await(context.Background(), entry.Index)
	if err != nil {
		return &CloseSessionResponse{Status: StatusError, Error: ErrCommandFailure}
	}
	return &CloseSessionResponse{Status: StatusOK}
}

func (r *leaderRole) HandleKeepAlive(req *KeepAliveRequest) *KeepAliveResponse {
	ctx := r.ctx
	entry := &LogEntry{Index: ctx.Log.LastIndex() + 1, Term: ctx.Term(), Kind: EntryKeepAlive, Payload: encodeKeepAlive(req)}
	if err := ctx.Log.Writer().Append(entry); err != nil {
		return &KeepAliveResponse{Status: StatusError, Error: ErrProtocolError, Leader: ctx.Local}
	}
	r.wakeAll()
	_, err := ctx.Sessions.Await(context.Background(), entry.Index)
	if err != nil {
		return &KeepAliveResponse{Status: StatusError, Error: ErrUnknownSession, Leader: ctx.Local}
	}
	return &KeepAliveResponse{Status: StatusOK, Leader: ctx.Local}
}

func (r *leaderRole) HandleCommand(req *CommandRequest) *CommandResponse {
	ctx := r.ctx
	entry := &LogEntry{Index: ctx.Log.LastIndex() + 1, Term: ctx.Term(), Kind: EntryCommand, Payload: encodeCommand(req)}
	if err := ctx.Log.Writer().Append(entry); err != nil {
		return &CommandResponse{Status: StatusError, Error: ErrProtocolError, Leader: ctx.Local}
	}
	r.wakeAll()
	res, err := ctx.Sessions.Await(context.Background(), entry.Index)
	if err != nil {
		return &CommandResponse{Status: StatusError, Error: ErrCommandFailure, Leader: ctx.Local}
	}
	if res.Err != nil {
		return &CommandResponse{Status: StatusError, Error: KindOf(res.Err), Leader: ctx.Local, Index: entry.Index}
	}
	return &CommandResponse{Status: StatusOK, Index: entry.Index, Result: res.Result, Leader: ctx.Local}
}

func (r *leaderRole) HandleQuery(req *QueryRequest) *QueryResponse {
	ctx := r.ctx
	if req.Consistency == QueryConsistencyStrict {
		// Confirm leadership against a quorum before reading (§4.5)
		// from the replies the appenders last recorded, without a
		// fresh round-trip per query. LEASE and EVENTUAL reads are
		// served without this check.
		if !r.confirmLeadership() {
			return &QueryResponse{Status: StatusError, Error: ErrNoLeader, Leader: ctx.Local}
		}
	}
	res, err := ctx.Sessions.Query(context.Background(), req)
	if err != nil {
		return &QueryResponse{Status: StatusError, Error: ErrQueryFailure, Leader: ctx.Local}
	}
	return &QueryResponse{Status: StatusOK, Index: res.Index, Result: res.Result, Leader: ctx.Local}
}

// confirmLeadership counts this leader plus every voter whose most
// recent append RPC left its MemberState marked Available, and
// reports whether that reaches a quorum. It reads no clock: how long
// ago those replies arrived is not checked.
func (r *leaderRole) confirmLeadership() bool {
	ctx := r.ctx
	cfg := ctx.Configuration()
	need := cfg.QuorumSize()
	available := 1 // self
	for _, v := range cfg.Voters() {
		if v.ID == ctx.Local {
			continue
		}
		if ms, ok := ctx.memberStateLocked(v.ID); ok && ms.Snapshot().Available {
			available++
		}
	}
	return available >= need
}

func (r *leaderRole) HandleJoin(req *JoinRequest) *MembershipResponse {
	return r.membership.Join(req)
}

func (r *leaderRole) HandleLeave(req *LeaveRequest) *MembershipResponse {
	return r.membership.Leave(req)
}

func (r *leaderRole) HandleReconfigure(req *ReconfigureRequest) *MembershipResponse {
	return r.membership.Reconfigure(req)
}

func (r *leaderRole) HandleMetadata(req *MetadataRequest) *MetadataResponse {
	ctx := r.ctx
	return &MetadataResponse{Status: StatusOK, Leader: ctx.Local, Term: ctx.Term(), Configuration: ctx.Configuration()}
}
