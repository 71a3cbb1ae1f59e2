package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/zhipwang/atomix/pkg/raft"
)

// serviceName is the gRPC service path every RPC below is registered
// and dialed under.
const serviceName = "atomix.raft.Raft"

// Every request/response is JSON-encoded and carried inside a
// wrapperspb.BytesValue — a real, already-generated proto.Message from
// google.golang.org/protobuf/types/known/wrapperspb — rather than a
// hand-maintained .pb.go for this protocol's own messages. The
// ServiceDesc/MethodDesc pairing below is what protoc-gen-go-grpc
// would otherwise generate; unaryMethod builds each one generically
// instead of repeating the boilerplate fourteen times by hand.
func marshalEnvelope(v any) (*wrapperspb.BytesValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &wrapperspb.BytesValue{Value: b}, nil
}

func unmarshalEnvelope[T any](env *wrapperspb.BytesValue) (*T, error) {
	var v T
	if err := json.Unmarshal(env.Value, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// unaryMethod builds the grpc.MethodDesc for one RPC, generic over its
// request/response types, forwarding to call once both sides of the
// envelope have been translated.
func unaryMethod[Req, Resp any](name string, call func(h raft.Handler, ctx context.Context, req *Req) *Resp) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(wrapperspb.BytesValue)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, reqIface any) (any, error) {
				req, err := unmarshalEnvelope[Req](reqIface.(*wrapperspb.BytesValue))
				if err != nil {
					return nil, err
				}
				resp := call(srv.(raft.Handler), ctx, req)
				return marshalEnvelope(resp)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is registered on a *grpc.Server with a raft.Handler as
// its implementation (grpc.Server.RegisterService(&ServiceDesc, h)).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*raft.Handler)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Vote", func(h raft.Handler, ctx context.Context, req *raft.VoteRequest) *raft.VoteResponse {
			return h.HandleVote(ctx, req)
		}),
		unaryMethod("Poll", func(h raft.Handler, ctx context.Context, req *raft.PollRequest) *raft.PollResponse {
			return h.HandlePoll(ctx, req)
		}),
		unaryMethod("Append", func(h raft.Handler, ctx context.Context, req *raft.AppendRequest) *raft.AppendResponse {
			return h.HandleAppend(ctx, req)
		}),
		unaryMethod("Install", func(h raft.Handler, ctx context.Context, req *raft.InstallRequest) *raft.InstallResponse {
			return h.HandleInstall(ctx, req)
		}),
		unaryMethod("Configure", func(h raft.Handler, ctx context.Context, req *raft.ConfigureRequest) *raft.ConfigureResponse {
			return h.HandleConfigure(ctx, req)
		}),
		unaryMethod("Join", func(h raft.Handler, ctx context.Context, req *raft.JoinRequest) *raft.MembershipResponse {
			return h.HandleJoin(ctx, req)
		}),
		unaryMethod("Leave", func(h raft.Handler, ctx context.Context, req *raft.LeaveRequest) *raft.MembershipResponse {
			return h.HandleLeave(ctx, req)
		}),
		unaryMethod("Reconfigure", func(h raft.Handler, ctx context.Context, req *raft.ReconfigureRequest) *raft.MembershipResponse {
			return h.HandleReconfigure(ctx, req)
		}),
		unaryMethod("OpenSession", func(h raft.Handler, ctx context.Context, req *raft.OpenSessionRequest) *raft.OpenSessionResponse {
			return h.HandleOpenSession(ctx, req)
		}),
		unaryMethod("CloseSession", func(h raft.Handler, ctx context.Context, req *raft.CloseSessionRequest) *raft.CloseSessionResponse {
			return h.HandleCloseSession(ctx, req)
		}),
		unaryMethod("KeepAlive", func(h raft.Handler, ctx context.Context, req *raft.KeepAliveRequest) *raft.KeepAliveResponse {
			return h.HandleKeepAlive(ctx, req)
		}),
		unaryMethod("Command", func(h raft.Handler, ctx context.Context, req *raft.CommandRequest) *raft.CommandResponse {
			return h.HandleCommand(ctx, req)
		}),
		unaryMethod("Query", func(h raft.Handler, ctx context.Context, req *raft.QueryRequest) *raft.QueryResponse {
			return h.HandleQuery(ctx, req)
		}),
		unaryMethod("Metadata", func(h raft.Handler, ctx context.Context, req *raft.MetadataRequest) *raft.MetadataResponse {
			return h.HandleMetadata(ctx, req)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raft.proto",
}

// RegisterServer exposes a raft.Handler over gRPC, e.g. a *raft.Server.
func RegisterServer(s *grpc.Server, handler raft.Handler) {
	s.RegisterService(&ServiceDesc, handler)
}

// GRPCTransport is the client side: a connection pool keyed on member
// address, dialing lazily and invoking each RPC by its full method
// path rather than through a generated client stub.
type GRPCTransport struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn

	dialOpts []grpc.DialOption
}

var _ raft.Transport = (*GRPCTransport)(nil)

// NewGRPCTransport builds a transport dialing with insecure transport
// credentials, suitable for a cluster running behind its own network
// perimeter. Pass additional grpc.DialOption (TLS, auth) via opts.
func NewGRPCTransport(opts ...grpc.DialOption) *GRPCTransport {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return &GRPCTransport{conns: make(map[string]*grpc.ClientConn), dialOpts: dialOpts}
}

func (t *GRPCTransport) conn(address string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[address]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(address, t.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	t.conns[address] = c
	return c, nil
}

func (t *GRPCTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, c := range t.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}

func invoke[Req, Resp any](ctx context.Context, t *GRPCTransport, target raft.Member, method string, req *Req) (*Resp, error) {
	conn, err := t.conn(target.Address)
	if err != nil {
		return nil, err
	}
	in, err := marshalEnvelope(req)
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return unmarshalEnvelope[Resp](out)
}

func (t *GRPCTransport) SendVote(ctx context.Context, target raft.Member, req *raft.VoteRequest) (*raft.VoteResponse, error) {
	return invoke[raft.VoteRequest, raft.VoteResponse](ctx, t, target, "Vote", req)
}

func (t *GRPCTransport) SendPoll(ctx context.Context, target raft.Member, req *raft.PollRequest) (*raft.PollResponse, error) {
	return invoke[raft.PollRequest, raft.PollResponse](ctx, t, target, "Poll", req)
}

func (t *GRPCTransport) SendAppend(ctx context.Context, target raft.Member, req *raft.AppendRequest) (*raft.AppendResponse, error) {
	return invoke[raft.AppendRequest, raft.AppendResponse](ctx, t, target, "Append", req)
}

func (t *GRPCTransport) SendInstall(ctx context.Context, target raft.Member, req *raft.InstallRequest) (*raft.InstallResponse, error) {
	return invoke[raft.InstallRequest, raft.InstallResponse](ctx, t, target, "Install", req)
}

func (t *GRPCTransport) SendConfigure(ctx context.Context, target raft.Member, req *raft.ConfigureRequest) (*raft.ConfigureResponse, error) {
	return invoke[raft.ConfigureRequest, raft.ConfigureResponse](ctx, t, target, "Configure", req)
}

func (t *GRPCTransport) SendJoin(ctx context.Context, target raft.Member, req *raft.JoinRequest) (*raft.MembershipResponse, error) {
	return invoke[raft.JoinRequest, raft.MembershipResponse](ctx, t, target, "Join", req)
}

func (t *GRPCTransport) SendMetadata(ctx context.Context, target raft.Member, req *raft.MetadataRequest) (*raft.MetadataResponse, error) {
	return invoke[raft.MetadataRequest, raft.MetadataResponse](ctx, t, target, "Metadata", req)
}
