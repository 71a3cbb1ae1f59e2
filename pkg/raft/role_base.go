package raft

// roleBase implements Role with the "shared request handlers (all
// roles)" fallback behavior spec.md describes: anything a role
// doesn't specifically override is rejected with a NO_LEADER/
// ILLEGAL_MEMBER_STATE-flavored response carrying the current leader
// hint, so a client or peer can redirect. Concrete roles embed
// roleBase and override only the handlers their state actually
// services.
type roleBase struct {
	ctx  *ServerContext
	name RoleName
}

func newRoleBase(ctx *ServerContext, name RoleName) roleBase {
	return roleBase{ctx: ctx, name: name}
}

func (b roleBase) Name() RoleName { return b.name }

func (b roleBase) Open()  {}
func (b roleBase) Close() {}

func (b roleBase) HandleVote(req *VoteRequest) *VoteResponse {
	return &VoteResponse{Status: StatusOK, Term: b.ctx.Term(), Voted: false}
}

func (b roleBase) HandlePoll(req *PollRequest) *PollResponse {
	return &PollResponse{Status: StatusOK, Term: b.ctx.Term(), Accepted: false}
}

func (b roleBase) HandleAppend(req *AppendRequest) *AppendResponse {
	return &AppendResponse{Status: StatusOK, Term: b.ctx.Term(), Succeeded: false, LastLogIndex: b.ctx.Log.LastIndex()}
}

func (b roleBase) HandleInstall(req *InstallRequest) *InstallResponse {
	return &InstallResponse{Status: StatusOK, Term: b.ctx.Term()}
}

func (b roleBase) HandleConfigure(req *ConfigureRequest) *ConfigureResponse {
	return &ConfigureResponse{Status: StatusOK, Term: b.ctx.Term()}
}

func (b roleBase) noLeader(msg string) *MembershipResponse {
	return &MembershipResponse{
		Status:        StatusError,
		Error:         ErrNoLeader,
		Message:       msg,
		Configuration: b.ctx.Configuration(),
	}
}

func (b roleBase) HandleJoin(req *JoinRequest) *MembershipResponse {
	return b.noLeader("not leader")
}

func (b roleBase) HandleLeave(req *LeaveRequest) *MembershipResponse {
	return b.noLeader("not leader")
}

func (b roleBase) HandleReconfigure(req *ReconfigureRequest) *MembershipResponse {
	return b.noLeader("not leader")
}

func (b roleBase) HandleOpenSession(req *OpenSessionRequest) *OpenSessionResponse {
	return &OpenSessionResponse{Status: StatusError, Error: ErrNoLeader, Leader: b.ctx.Leader()}
}

func (b roleBase) HandleCloseSession(req *CloseSessionRequest) *CloseSessionResponse {
	return &CloseSessionResponse{Status: StatusError, Error: ErrNoLeader}
}

func (b roleBase) HandleKeepAlive(req *KeepAliveRequest) *KeepAliveResponse {
	return &KeepAliveResponse{Status: StatusError, Error: ErrNoLeader, Leader: b.ctx.Leader()}
}

func (b roleBase) HandleCommand(req *CommandRequest) *CommandResponse {
	return &CommandResponse{Status: StatusError, Error: ErrNoLeader, Leader: b.ctx.Leader()}
}

func (b roleBase) HandleQuery(req *QueryRequest) *QueryResponse {
	return &QueryResponse{Status: StatusError, Error: ErrNoLeader, Leader: b.ctx.Leader()}
}

func (b roleBase) HandleMetadata(req *MetadataRequest) *MetadataResponse {
	return &MetadataResponse{Status: StatusOK, Leader: b.ctx.Leader(), Term: b.ctx.Term(), Configuration: b.ctx.Configuration()}
}
