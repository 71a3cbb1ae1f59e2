package raft

// reserveRole is a member admitted to the configuration but not yet
// caught up enough to replicate the full log (spec.md §4.2 RESERVE:
// "receives configuration changes and heartbeats only, no command
// entries"). It accepts Configure and term-bearing Append heartbeats
// (empty entries) to track the leader and term, but never applies
// log entries and never votes.
type reserveRole struct {
	roleBase
}

var _ Role = (*reserveRole)(nil)

func newReserveRole(ctx *ServerContext) *reserveRole {
	return &reserveRole{roleBase: newRoleBase(ctx, RoleReserveName)}
}

func (r *reserveRole) HandleAppend(req *AppendRequest) *AppendResponse {
	ctx := r.ctx
	if req.Term < ctx.Term() {
		return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false}
	}
	if req.Term > ctx.Term() {
		ctx.SetTerm(req.Term)
	}
	ctx.SetLeader(req.Term, req.Leader)
	// RESERVE never applies entries, only observes term/leader, and
	// acknowledges the heartbeat; the leader reads only the term from
	// this reply.
	return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: true, LastLogIndex: 0}
}

func (r *reserveRole) HandleConfigure(req *ConfigureRequest) *ConfigureResponse {
	ctx := r.ctx
	if req.Term < ctx.Term() {
		return &ConfigureResponse{Status: StatusOK, Term: ctx.Term()}
	}
	if req.Term > ctx.Term() {
		ctx.SetTerm(req.Term)
	}
	ctx.SetLeader(req.Term, req.Leader)
	ctx.SetConfiguration(Configuration{Index: req.ConfigIndex, Time: req.ConfigTime, Members: req.Members})
	return &ConfigureResponse{Status: StatusOK, Term: ctx.Term()}
}

func (r *reserveRole) HandlePoll(req *PollRequest) *PollResponse {
	return &PollResponse{Status: StatusOK, Term: r.ctx.Term(), Accepted: false}
}
