// Package transport provides raft.Transport implementations: an
// in-process LocalTransport for tests and simulation, and a
// GRPCTransport for real network deployment.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhipwang/atomix/pkg/raft"
)

// LocalTransport wires raft.Handler instances directly together in
// one process, with simulated partitions (Partition/Heal/HealAll) and
// no latency simulation — the harness a test suite drives servers
// through without a real network. Grounded on
// vzdtic-distributed-consensus-raft-kv-store's pkg/rpc/transport.go
// (a registry of nodes plus a disabled-pairs set for partition
// simulation), generalized from raft.Node to raft.Handler.
type LocalTransport struct {
	mu       sync.RWMutex
	handlers map[raft.MemberID]raft.Handler
	disabled map[raft.MemberID]map[raft.MemberID]bool
}

var _ raft.Transport = (*LocalTransport)(nil)

func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		handlers: make(map[raft.MemberID]raft.Handler),
		disabled: make(map[raft.MemberID]map[raft.MemberID]bool),
	}
}

// Register associates a member ID with the Handler that services its
// requests — normally a *raft.Server running in the same process.
func (t *LocalTransport) Register(id raft.MemberID, h raft.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[id] = h
}

// Partition makes every call between a and b fail until Heal, in
// both directions (simulating a network split for P-WIN-style tests).
func (t *LocalTransport) Partition(a, b raft.MemberID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disable(a, b)
	t.disable(b, a)
}

func (t *LocalTransport) disable(from, to raft.MemberID) {
	if t.disabled[from] == nil {
		t.disabled[from] = make(map[raft.MemberID]bool)
	}
	t.disabled[from][to] = true
}

func (t *LocalTransport) Heal(a, b raft.MemberID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.disabled[a], b)
	delete(t.disabled[b], a)
}

func (t *LocalTransport) HealAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = make(map[raft.MemberID]map[raft.MemberID]bool)
}

func (t *LocalTransport) connected(from, to raft.MemberID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.disabled[from][to]
}

func (t *LocalTransport) handler(id raft.MemberID) (raft.Handler, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[id]
	if !ok {
		return nil, fmt.Errorf("transport: unknown member %s", id)
	}
	return h, nil
}

func (t *LocalTransport) SendVote(ctx context.Context, target raft.Member, req *raft.VoteRequest) (*raft.VoteResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	if !t.connected(req.Candidate, target.ID) {
		return nil, fmt.Errorf("transport: %s unreachable from %s", target.ID, req.Candidate)
	}
	return h.HandleVote(ctx, req), nil
}

func (t *LocalTransport) SendPoll(ctx context.Context, target raft.Member, req *raft.PollRequest) (*raft.PollResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	if !t.connected(req.Candidate, target.ID) {
		return nil, fmt.Errorf("transport: %s unreachable from %s", target.ID, req.Candidate)
	}
	return h.HandlePoll(ctx, req), nil
}

func (t *LocalTransport) SendAppend(ctx context.Context, target raft.Member, req *raft.AppendRequest) (*raft.AppendResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	if !t.connected(req.Leader, target.ID) {
		return nil, fmt.Errorf("transport: %s unreachable from %s", target.ID, req.Leader)
	}
	return h.HandleAppend(ctx, req), nil
}

func (t *LocalTransport) SendInstall(ctx context.Context, target raft.Member, req *raft.InstallRequest) (*raft.InstallResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	if !t.connected(req.Leader, target.ID) {
		return nil, fmt.Errorf("transport: %s unreachable from %s", target.ID, req.Leader)
	}
	return h.HandleInstall(ctx, req), nil
}

func (t *LocalTransport) SendConfigure(ctx context.Context, target raft.Member, req *raft.ConfigureRequest) (*raft.ConfigureResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	if !t.connected(req.Leader, target.ID) {
		return nil, fmt.Errorf("transport: %s unreachable from %s", target.ID, req.Leader)
	}
	return h.HandleConfigure(ctx, req), nil
}

func (t *LocalTransport) SendJoin(ctx context.Context, target raft.Member, req *raft.JoinRequest) (*raft.MembershipResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	return h.HandleJoin(ctx, req), nil
}

func (t *LocalTransport) SendMetadata(ctx context.Context, target raft.Member, req *raft.MetadataRequest) (*raft.MetadataResponse, error) {
	h, err := t.handler(target.ID)
	if err != nil {
		return nil, err
	}
	return h.HandleMetadata(ctx, req), nil
}
