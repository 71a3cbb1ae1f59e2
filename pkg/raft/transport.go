package raft

import "context"

// Transport is the client side of the message-oriented request/response
// channel spec.md §1 leaves as an external collaborator ("any reliable
// unicast transport suffices"). Concrete implementations live in
// pkg/transport; this package depends only on the interface.
type Transport interface {
	SendVote(ctx context.Context, target Member, req *VoteRequest) (*VoteResponse, error)
	SendPoll(ctx context.Context, target Member, req *PollRequest) (*PollResponse, error)
	SendAppend(ctx context.Context, target Member, req *AppendRequest) (*AppendResponse, error)
	SendInstall(ctx context.Context, target Member, req *InstallRequest) (*InstallResponse, error)
	SendConfigure(ctx context.Context, target Member, req *ConfigureRequest) (*ConfigureResponse, error)
	SendJoin(ctx context.Context, target Member, req *JoinRequest) (*MembershipResponse, error)
	SendMetadata(ctx context.Context, target Member, req *MetadataRequest) (*MetadataResponse, error)
}

// Handler is the server side: what a transport implementation
// dispatches an inbound request to. *Server implements this.
type Handler interface {
	HandleVote(ctx context.Context, req *VoteRequest) *VoteResponse
	HandlePoll(ctx context.Context, req *PollRequest) *PollResponse
	HandleAppend(ctx context.Context, req *AppendRequest) *AppendResponse
	HandleInstall(ctx context.Context, req *InstallRequest) *InstallResponse
	HandleConfigure(ctx context.Context, req *ConfigureRequest) *ConfigureResponse
	HandleJoin(ctx context.Context, req *JoinRequest) *MembershipResponse
	HandleLeave(ctx context.Context, req *LeaveRequest) *MembershipResponse
	HandleReconfigure(ctx context.Context, req *ReconfigureRequest) *MembershipResponse
	HandleOpenSession(ctx context.Context, req *OpenSessionRequest) *OpenSessionResponse
	HandleCloseSession(ctx context.Context, req *CloseSessionRequest) *CloseSessionResponse
	HandleKeepAlive(ctx context.Context, req *KeepAliveRequest) *KeepAliveResponse
	HandleCommand(ctx context.Context, req *CommandRequest) *CommandResponse
	HandleQuery(ctx context.Context, req *QueryRequest) *QueryResponse
	HandleMetadata(ctx context.Context, req *MetadataRequest) *MetadataResponse
}
