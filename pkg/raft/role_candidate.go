package raft

import (
	"context"
	"math/rand"
	"time"

	"github.com/zhipwang/atomix/pkg/metrics"
)

// candidateRole runs the pre-vote/vote election protocol (spec.md
// §4.2 CANDIDATE). It first solicits non-binding Poll acceptances
// from a quorum (pre-vote, so a partitioned server can't keep forcing
// term bumps); only once a quorum of polls is accepted does it
// advance the term and solicit binding votes.
type candidateRole struct {
	roleBase
	timer   *time.Timer
	cancel  context.CancelFunc
}

var _ Role = (*candidateRole)(nil)

func newCandidateRole(ctx *ServerContext) *candidateRole {
	return &candidateRole{roleBase: newRoleBase(ctx, RoleCandidateName)}
}

func (r *candidateRole) Open() {
	metrics.ElectionsTotal.Inc()
	r.resetTimer()
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.runElection(runCtx)
}

func (r *candidateRole) Close() {
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *candidateRole) electionTimeout() time.Duration {
	lo := r.ctx.Timeouts.ElectionTimeoutMin
	hi := r.ctx.Timeouts.ElectionTimeoutMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func (r *candidateRole) resetTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
	ctx := r.ctx
	r.timer = time.AfterFunc(r.electionTimeout(), func() {
		ctx.ProtocolExecutor.Post(func() {
			if ctx.RoleName() != RoleCandidateName {
				return
			}
			// No decision reached before the timeout: start a fresh
			// round with a new timer (§4.2 "a split vote restarts the
			// round with a randomized timeout").
			ctx.Transition(newCandidateRole(ctx))
		})
	})
}

// runElection performs the poll round and, if it wins, the vote round,
// entirely off the protocol executor (network calls block); only the
// final decision (become leader / step back to follower) is posted
// back onto it.
func (r *candidateRole) runElection(runCtx context.Context) {
	ctx := r.ctx
	cfg := ctx.Configuration()
	voters := cfg.Voters()
	lastIndex := ctx.Log.LastIndex()
	lastTerm := localLastTerm(ctx)

	if !r.pollQuorum(runCtx, voters, lastIndex, lastTerm) {
		return
	}

	nextTerm := ctx.Term() + 1
	ctx.ProtocolExecutor.Post(func() {
		if ctx.RoleName() != RoleCandidateName {
			return
		}
		ctx.SetTerm(nextTerm)
		ctx.SetVote(ctx.Local)
	})

	if !r.voteQuorum(runCtx, voters, nextTerm, lastIndex, lastTerm) {
		return
	}

	ctx.ProtocolExecutor.Post(func() {
		if ctx.RoleName() != RoleCandidateName || ctx.Term() != nextTerm {
			return
		}
		ctx.Transition(newLeaderRole(ctx))
	})
}

func (r *candidateRole) pollQuorum(runCtx context.Context, voters []Member, lastIndex Index, lastTerm Term) bool {
	ctx := r.ctx
	need := ctx.Configuration().QuorumSize()
	accepted := 1 // self
	if need <= 1 {
		return true
	}
	type result struct{ ok bool }
	results := make(chan result, len(voters))
	req := &PollRequest{Term: ctx.Term() + 1, Candidate: ctx.Local, LastLogIndex: lastIndex, LastLogTerm: lastTerm}
	for _, m := range voters {
		if m.ID == ctx.Local {
			continue
		}
		m := m
		go func() {
			resp, err := ctx.Transport.SendPoll(runCtx, m, req)
			results <- result{ok: err == nil && resp != nil && resp.Accepted}
		}()
	}
	for i := 0; i < len(voters)-1; i++ {
		select {
		case res := <-results:
			if res.ok {
				accepted++
			}
			if accepted >= need {
				return true
			}
		case <-runCtx.Done():
			return false
		}
	}
	return accepted >= need
}

func (r *candidateRole) voteQuorum(runCtx context.Context, voters []Member, term Term, lastIndex Index, lastTerm Term) bool {
	ctx := r.ctx
	need := ctx.Configuration().QuorumSize()
	granted := 1 // self
	if need <= 1 {
		return true
	}
	type result struct{ ok bool }
	results := make(chan result, len(voters))
	req := &VoteRequest{Term: term, Candidate: ctx.Local, LastLogIndex: lastIndex, LastLogTerm: lastTerm}
	for _, m := range voters {
		if m.ID == ctx.Local {
			continue
		}
		m := m
		go func() {
			resp, err := ctx.Transport.SendVote(runCtx, m, req)
			results <- result{ok: err == nil && resp != nil && resp.Voted}
		}()
	}
	for i := 0; i < len(voters)-1; i++ {
		select {
		case res := <-results:
			if res.ok {
				granted++
			}
			if granted >= need {
				return true
			}
		case <-runCtx.Done():
			return false
		}
	}
	return granted >= need
}

func (r *candidateRole) HandleVote(req *VoteRequest) *VoteResponse {
	ctx := r.ctx
	if req.Term <= ctx.Term() {
		return &VoteResponse{Status: StatusOK, Term: ctx.Term(), Voted: false}
	}
	ctx.SetTerm(req.Term)
	ctx.Transition(newFollowerRole(ctx))
	return ctx.Role().HandleVote(req)
}

func (r *candidateRole) HandleAppend(req *AppendRequest) *AppendResponse {
	ctx := r.ctx
	if req.Term < ctx.Term() {
		return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false}
	}
	// A current leader exists at this term or higher; stand down
	// (§4.2 "a valid AppendEntries at an equal or higher term ends a
	// candidacy").
	ctx.Transition(newFollowerRole(ctx))
	return ctx.Role().HandleAppend(req)
}
