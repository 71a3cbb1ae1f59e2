package raft

import "context"

// Server is the externally addressable unit: it owns a ServerContext
// and dispatches every inbound Handler call onto the protocol
// execution context, so role methods never have to worry about
// concurrent invocation (spec.md §5). Transports (pkg/transport) hold
// a Server behind the Handler interface; they never reach into
// ServerContext directly.
type Server struct {
	ctx *ServerContext
}

var _ Handler = (*Server)(nil)

func NewServer(ctx *ServerContext) *Server {
	return &Server{ctx: ctx}
}

// Start loads durable metadata and the last known configuration, then
// transitions out of INACTIVE into the role implied by this server's
// standing in that configuration (spec.md §4.2). A server with no
// persisted configuration stays INACTIVE until a Join admits it.
func (s *Server) Start(ctx context.Context) error {
	sc := s.ctx
	if err := sc.Log.Open(ctx); err != nil {
		return err
	}
	term, err := sc.MetaStore.LoadTerm()
	if err != nil {
		return err
	}
	vote, err := sc.MetaStore.LoadVote()
	if err != nil {
		return err
	}
	cfg, ok, err := sc.MetaStore.LoadConfiguration()
	if err != nil {
		return err
	}

	sc.term.Store(uint64(term))
	sc.votedFor.Store(vote)
	if ok {
		sc.config.Store(&cfg)
	}

	sc.ProtocolExecutor.PostSync(func() {
		if !ok {
			return
		}
		member, present := cfg.Member(sc.Local)
		if !present {
			return
		}
		switch member.Role {
		case RoleActive:
			sc.Transition(newFollowerRole(sc))
		case RolePassive:
			sc.Transition(newPassiveRole(sc))
		case RoleReserve:
			sc.Transition(newReserveRole(sc))
		}
	})
	return nil
}

// Stop tears down both execution contexts (spec.md §5 graceful
// shutdown: the current role's timers/appenders are closed first).
func (s *Server) Stop() {
	s.ctx.Close()
}

func (s *Server) dispatch(fn func(Role) any) any {
	var result any
	s.ctx.ProtocolExecutor.PostSync(func() {
		result = fn(s.ctx.Role())
	})
	return result
}

func (s *Server) HandleVote(ctx context.Context, req *VoteRequest) *VoteResponse {
	return s.dispatch(func(r Role) any { return r.HandleVote(req) }).(*VoteResponse)
}

func (s *Server) HandlePoll(ctx context.Context, req *PollRequest) *PollResponse {
	return s.dispatch(func(r Role) any { return r.HandlePoll(req) }).(*PollResponse)
}

func (s *Server) HandleAppend(ctx context.Context, req *AppendRequest) *AppendResponse {
	return s.dispatch(func(r Role) any { return r.HandleAppend(req) }).(*AppendResponse)
}

func (s *Server) HandleInstall(ctx context.Context, req *InstallRequest) *InstallResponse {
	return s.dispatch(func(r Role) any { return r.HandleInstall(req) }).(*InstallResponse)
}

func (s *Server) HandleConfigure(ctx context.Context, req *ConfigureRequest) *ConfigureResponse {
	return s.dispatch(func(r Role) any { return r.HandleConfigure(req) }).(*ConfigureResponse)
}

func (s *Server) HandleJoin(ctx context.Context, req *JoinRequest) *MembershipResponse {
	return s.dispatch(func(r Role) any { return r.HandleJoin(req) }).(*MembershipResponse)
}

func (s *Server) HandleLeave(ctx context.Context, req *LeaveRequest) *MembershipResponse {
	return s.dispatch(func(r Role) any { return r.HandleLeave(req) }).(*MembershipResponse)
}

func (s *Server) HandleReconfigure(ctx context.Context, req *ReconfigureRequest) *MembershipResponse {
	return s.dispatch(func(r Role) any { return r.HandleReconfigure(req) }).(*MembershipResponse)
}

func (s *Server) HandleOpenSession(ctx context.Context, req *OpenSessionRequest) *OpenSessionResponse {
	return s.dispatch(func(r Role) any { return r.HandleOpenSession(req) }).(*OpenSessionResponse)
}

func (s *Server) HandleCloseSession(ctx context.Context, req *CloseSessionRequest) *CloseSessionResponse {
	return s.dispatch(func(r Role) any { return r.HandleCloseSession(req) }).(*CloseSessionResponse)
}

func (s *Server) HandleKeepAlive(ctx context.Context, req *KeepAliveRequest) *KeepAliveResponse {
	return s.dispatch(func(r Role) any { return r.HandleKeepAlive(req) }).(*KeepAliveResponse)
}

func (s *Server) HandleCommand(ctx context.Context, req *CommandRequest) *CommandResponse {
	return s.dispatch(func(r Role) any { return r.HandleCommand(req) }).(*CommandResponse)
}

func (s *Server) HandleQuery(ctx context.Context, req *QueryRequest) *QueryResponse {
	return s.dispatch(func(r Role) any { return r.HandleQuery(req) }).(*QueryResponse)
}

func (s *Server) HandleMetadata(ctx context.Context, req *MetadataRequest) *MetadataResponse {
	return s.dispatch(func(r Role) any { return r.HandleMetadata(req) }).(*MetadataResponse)
}
