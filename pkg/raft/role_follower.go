package raft

import (
	"context"
	"math/rand"
	"time"
)

// followerRole is a full voting member taking direction from a known
// or suspected leader (spec.md §4.2 FOLLOWER). It resets its election
// timer on every valid Append/Install/Vote-grant and, on timeout,
// moves to CANDIDATE by way of a non-binding Poll round (pre-vote,
// §4.2 "avoid disrupting a stable leader").
type followerRole struct {
	roleBase
	timer *time.Timer
}

var _ Role = (*followerRole)(nil)

func newFollowerRole(ctx *ServerContext) *followerRole {
	return &followerRole{roleBase: newRoleBase(ctx, RoleFollowerName)}
}

func (r *followerRole) Open() {
	r.resetTimer()
}

func (r *followerRole) Close() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *followerRole) electionTimeout() time.Duration {
	lo := r.ctx.Timeouts.ElectionTimeoutMin
	hi := r.ctx.Timeouts.ElectionTimeoutMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func (r *followerRole) resetTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
	ctx := r.ctx
	r.timer = time.AfterFunc(r.electionTimeout(), func() {
		ctx.ProtocolExecutor.Post(func() {
			if ctx.RoleName() != RoleFollowerName {
				return
			}
			ctx.Transition(newCandidateRole(ctx))
		})
	})
}

func (r *followerRole) HandleVote(req *VoteRequest) *VoteResponse {
	ctx := r.ctx
	if req.Term < ctx.Term() {
		return &VoteResponse{Status: StatusOK, Term: ctx.Term(), Voted: false}
	}
	if req.Term > ctx.Term() {
		ctx.SetTerm(req.Term)
	}
	if !r.logUpToDate(req.LastLogIndex, req.LastLogTerm) {
		return &VoteResponse{Status: StatusOK, Term: ctx.Term(), Voted: false}
	}
	voted := ctx.VotedFor()
	if voted != "" && voted != req.Candidate {
		return &VoteResponse{Status: StatusOK, Term: ctx.Term(), Voted: false}
	}
	if err := ctx.SetVote(req.Candidate); err != nil {
		return &VoteResponse{Status: StatusError, Term: ctx.Term(), Voted: false}
	}
	r.resetTimer()
	return &VoteResponse{Status: StatusOK, Term: ctx.Term(), Voted: true}
}

func (r *followerRole) HandlePoll(req *PollRequest) *PollResponse {
	ctx := r.ctx
	if req.Term < ctx.Term() {
		return &PollResponse{Status: StatusOK, Term: ctx.Term(), Accepted: false}
	}
	accepted := r.logUpToDate(req.LastLogIndex, req.LastLogTerm)
	return &PollResponse{Status: StatusOK, Term: ctx.Term(), Accepted: accepted}
}

// logUpToDate implements the election restriction (§4.2, the "at
// least as up to date" rule): compare last entry's term first, then
// index.
func (r *followerRole) logUpToDate(lastIndex Index, lastTerm Term) bool {
	ourIndex := r.ctx.Log.LastIndex()
	ourTerm := localLastTerm(r.ctx)
	if lastTerm != ourTerm {
		return lastTerm > ourTerm
	}
	return lastIndex >= ourIndex
}

func localLastTerm(ctx *ServerContext) Term {
	last := ctx.Log.LastIndex()
	if last == 0 {
		return 0
	}
	entry := localEntryAt(ctx, last)
	if entry == nil {
		return 0
	}
	return entry.Term
}

func (r *followerRole) HandleAppend(req *AppendRequest) *AppendResponse {
	resp := applyAppend(r.ctx, req)
	if resp.Status == StatusOK && req.Term >= r.ctx.Term() {
		r.resetTimer()
	}
	return resp
}

func (r *followerRole) HandleInstall(req *InstallRequest) *InstallResponse {
	resp := applyInstall(r.ctx, req)
	if req.Term >= r.ctx.Term() {
		r.resetTimer()
	}
	return resp
}

func (r *followerRole) HandleConfigure(req *ConfigureRequest) *ConfigureResponse {
	ctx := r.ctx
	if req.Term < ctx.Term() {
		return &ConfigureResponse{Status: StatusOK, Term: ctx.Term()}
	}
	if req.Term > ctx.Term() {
		ctx.SetTerm(req.Term)
	}
	ctx.SetLeader(req.Term, req.Leader)
	ctx.SetConfiguration(Configuration{Index: req.ConfigIndex, Time: req.ConfigTime, Members: req.Members})
	r.resetTimer()
	return &ConfigureResponse{Status: StatusOK, Term: ctx.Term()}
}

// Client-facing requests a follower can't service itself: redirect
// via the shared NO_LEADER fallback unless a leader hint is known, in
// which case embed it so the client can retry there directly.

func (r *followerRole) HandleCommand(req *CommandRequest) *CommandResponse {
	return &CommandResponse{Status: StatusError, Error: ErrNoLeader, Leader: r.ctx.Leader()}
}

func (r *followerRole) HandleQuery(req *QueryRequest) *QueryResponse {
	if req.Consistency == QueryConsistencyEventual {
		result, err := r.ctx.Sessions.Query(context.Background(), req)
		if err == nil {
			return &QueryResponse{Status: StatusOK, Index: result.Index, Result: result.Result, Leader: r.ctx.Leader()}
		}
	}
	return &QueryResponse{Status: StatusError, Error: ErrNoLeader, Leader: r.ctx.Leader()}
}

func (r *followerRole) HandleOpenSession(req *OpenSessionRequest) *OpenSessionResponse {
	return &OpenSessionResponse{Status: StatusError, Error: ErrNoLeader, Leader: r.ctx.Leader()}
}
