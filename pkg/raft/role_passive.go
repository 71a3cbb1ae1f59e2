package raft

// passiveRole is a learner that receives every committed entry but
// never votes and never stands for election (spec.md §4.2 PASSIVE).
// It is the promotion stage between RESERVE and full ACTIVE
// membership, advanced once its match index is within
// DefaultPromotionLagThreshold of the leader's last log index.
type passiveRole struct {
	roleBase
}

var _ Role = (*passiveRole)(nil)

func newPassiveRole(ctx *ServerContext) *passiveRole {
	return &passiveRole{roleBase: newRoleBase(ctx, RolePassiveName)}
}

func (r *passiveRole) HandleAppend(req *AppendRequest) *AppendResponse {
	return applyAppend(r.ctx, req)
}

func (r *passiveRole) HandleInstall(req *InstallRequest) *InstallResponse {
	return applyInstall(r.ctx, req)
}

func (r *passiveRole) HandleConfigure(req *ConfigureRequest) *ConfigureResponse {
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

func (r *passiveRole) HandlePoll(req *PollRequest) *PollResponse {
	return &PollResponse{Status: StatusOK, Term: r.ctx.Term(), Accepted: false}
}
