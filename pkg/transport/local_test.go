package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhipwang/atomix/pkg/raft"
)

type stubHandler struct {
	raft.Handler
	term raft.Term
}

func (s *stubHandler) HandleVote(ctx context.Context, req *raft.VoteRequest) *raft.VoteResponse {
	return &raft.VoteResponse{Status: raft.StatusOK, Term: s.term, Voted: true}
}

func TestLocalTransportRoutesToRegisteredHandler(t *testing.T) {
	tr := NewLocalTransport()
	tr.Register("n2", &stubHandler{term: 4})

	resp, err := tr.SendVote(context.Background(), raft.Member{ID: "n2"}, &raft.VoteRequest{Candidate: "n1"})
	require.NoError(t, err)
	require.True(t, resp.Voted)
	require.Equal(t, raft.Term(4), resp.Term)
}

func TestLocalTransportPartitionBlocksDelivery(t *testing.T) {
	tr := NewLocalTransport()
	tr.Register("n2", &stubHandler{term: 1})
	tr.Partition("n1", "n2")

	_, err := tr.SendVote(context.Background(), raft.Member{ID: "n2"}, &raft.VoteRequest{Candidate: "n1"})
	require.Error(t, err)

	tr.Heal("n1", "n2")
	_, err = tr.SendVote(context.Background(), raft.Member{ID: "n2"}, &raft.VoteRequest{Candidate: "n1"})
	require.NoError(t, err)
}

func TestLocalTransportUnknownMember(t *testing.T) {
	tr := NewLocalTransport()
	_, err := tr.SendVote(context.Background(), raft.Member{ID: "ghost"}, &raft.VoteRequest{Candidate: "n1"})
	require.Error(t, err)
}
