package raft

import (
	"context"
	"time"

	"github.com/zhipwang/atomix/pkg/metrics"
)

// appender replicates to exactly one member on the leader's behalf
// (spec.md §4.3). It sends one request at a time and waits for its
// reply before sending the next; AppenderConfig.MaxInFlight is not
// read. Each request carries up to MaxBatchSize entries, a
// log-matching rejection moves NextIndex back using the follower's
// reply, and once NextIndex is at or below the first index of a
// compacted log (FirstIndex > 1) it sends the current snapshot
// instead of a batch.
//
// One appender goroutine runs per member for the lifetime of a
// leadership term; Stop tears it down when the leader role closes.
// A member removed from the configuration keeps its appender until
// then.
type appender struct {
	ctx    *ServerContext
	member Member
	state  *MemberState

	stop   chan struct{}
	done   chan struct{}
	wake   chan struct{}

	failureLogged int
}

func newAppender(ctx *ServerContext, member Member, state *MemberState) *appender {
	a := &appender{
		ctx:    ctx,
		member: member,
		state:  state,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	go a.run()
	return a
}

// Wake nudges the appender to send immediately (a new entry was
// appended locally) rather than waiting for its heartbeat interval.
func (a *appender) Wake() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *appender) Stop() {
	close(a.stop)
	<-a.done
}

func (a *appender) run() {
	defer close(a.done)
	interval := a.ctx.Timeouts.HeartbeatInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-a.wake:
			a.sendOnce()
		case <-ticker.C:
			a.sendOnce()
		}
	}
}

func (a *appender) sendOnce() {
	ctx := a.ctx
	if ctx.RoleName() != RoleLeaderName {
		return
	}

	if a.member.Role == RoleReserve {
		a.sendHeartbeat()
		return
	}

	nextIndex := a.state.Snapshot().NextIndex
	if nextIndex == 0 {
		nextIndex = 1
	}

	if nextIndex <= ctx.Log.FirstIndex() && ctx.Log.FirstIndex() > 1 {
		// The entry the follower needs has already been compacted;
		// cut over to snapshot transfer instead of a log batch.
		a.sendSnapshot()
		return
	}

	prevIndex := nextIndex - 1
	prevTerm := Term(0)
	if prevIndex > 0 {
		if e := localEntryAt(ctx, prevIndex); e != nil {
			prevTerm = e.Term
		}
	}

	entries := a.collectBatch(nextIndex)

	req := &AppendRequest{
		Term:         ctx.Term(),
		Leader:       ctx.Local,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		CommitIndex:  ctx.CommitIndex(),
	}

	timer := metrics.NewTimer()
	rpcCtx, cancel := context.WithTimeout(context.Background(), a.ctx.Timeouts.HeartbeatInterval*5)
	defer cancel()
	resp, err := ctx.Transport.SendAppend(rpcCtx, a.member, req)
	timer.ObserveDurationVec(metrics.AppendLatency, string(a.member.ID))
	if err != nil {
		a.recordFailure()
		return
	}
	if resp.Term > ctx.Term() {
		ctx.ProtocolExecutor.Post(func() {
			if resp.Term > ctx.Term() {
				ctx.SetTerm(resp.Term)
				ctx.Transition(newFollowerRole(ctx))
			}
		})
		return
	}
	if !resp.Succeeded {
		a.state.RecordMismatch(resp.LastLogIndex)
		return
	}
	lastSent := prevIndex
	if len(entries) > 0 {
		lastSent = entries[len(entries)-1].Index
	}
	a.state.RecordSuccess(lastSent)
	a.maybeAdvanceCommit()
}

func (a *appender) sendHeartbeat() {
	ctx := a.ctx
	req := &AppendRequest{
		Term:        ctx.Term(),
		Leader:      ctx.Local,
		CommitIndex: ctx.CommitIndex(),
	}
	rpcCtx, cancel := context.WithTimeout(context.Background(), ctx.Timeouts.HeartbeatInterval*5)
	defer cancel()
	resp, err := ctx.Transport.SendAppend(rpcCtx, a.member, req)
	if err != nil {
		a.recordFailure()
		return
	}
	if resp.Term > ctx.Term() {
		ctx.ProtocolExecutor.Post(func() {
			if resp.Term > ctx.Term() {
				ctx.SetTerm(resp.Term)
				ctx.Transition(newFollowerRole(ctx))
			}
		})
	}
}

func (a *appender) collectBatch(from Index) []*LogEntry {
	ctx := a.ctx
	last := ctx.Log.LastIndex()
	if from > last {
		return nil
	}
	reader := ctx.Log.Reader()
	defer reader.Close()
	if err := reader.Seek(from); err != nil {
		return nil
	}
	max := ctx.Appender.MaxBatchSize
	if max <= 0 {
		max = 256
	}
	entries := make([]*LogEntry, 0, max)
	for reader.HasNext() && len(entries) < max {
		entry, err := reader.Next()
		if err != nil {
			break
		}
		if entry == nil {
			// A compacted hole mid-batch: stop here, snapshot transfer
			// will pick up the rest next round.
			break
		}
		entries = append(entries, entry)
	}
	return entries
}

func (a *appender) sendSnapshot() {
	ctx := a.ctx
	snap, ok, err := ctx.Snapshots.GetCurrent()
	if err != nil || !ok {
		return
	}
	reader, err := ctx.Snapshots.OpenReader(snap.ID)
	if err != nil {
		return
	}
	defer reader.Close()

	buf := make([]byte, 32*1024)
	var offset int64
	for {
		n, rerr := reader.Read(buf)
		complete := rerr != nil
		req := &InstallRequest{
			Term:          ctx.Term(),
			Leader:        ctx.Local,
			SnapshotID:    snap.ID,
			SnapshotIndex: snap.Index,
			SnapshotTerm:  snap.Term,
			Offset:        offset,
			Data:          append([]byte(nil), buf[:n]...),
			Complete:      complete,
		}
		rpcCtx, cancel := context.WithTimeout(context.Background(), ctx.Timeouts.HeartbeatInterval*10)
		resp, serr := ctx.Transport.SendInstall(rpcCtx, a.member, req)
		cancel()
		if serr != nil {
			a.recordFailure()
			return
		}
		if resp.Term > ctx.Term() {
			ctx.ProtocolExecutor.Post(func() {
				if resp.Term > ctx.Term() {
					ctx.SetTerm(resp.Term)
					ctx.Transition(newFollowerRole(ctx))
				}
			})
			return
		}
		offset += int64(n)
		if complete {
			a.state.RecordSuccess(snap.Index)
			a.state.ResetSnapshotCursor()
			metrics.SnapshotTransfersTotal.Inc()
			return
		}
	}
}

// maybeAdvanceCommit recomputes the commit index from the leader's own
// last index and every member's match index, per the matching-term
// safety rule (§4.2 LEADER "only commit entries from the current
// term directly; earlier-term entries are committed as a side effect").
func (a *appender) maybeAdvanceCommit() {
	ctx := a.ctx
	if ctx.RoleName() != RoleLeaderName {
		return
	}
	cfg := ctx.Configuration()
	voters := cfg.Voters()
	matches := make([]Index, 0, len(voters))
	for _, v := range voters {
		if v.ID == ctx.Local {
			matches = append(matches, ctx.Log.LastIndex())
			continue
		}
		if ms, ok := ctx.memberStateLocked(v.ID); ok {
			matches = append(matches, ms.Snapshot().MatchIndex)
		} else {
			matches = append(matches, 0)
		}
	}
	need := cfg.QuorumSize()
	candidate := majorityIndex(matches, need)
	if candidate <= ctx.CommitIndex() {
		return
	}
	entry := localEntryAt(ctx, candidate)
	if entry == nil || entry.Term != ctx.Term() {
		return
	}
	ctx.ProtocolExecutor.Post(func() {
		ctx.SetCommitIndex(candidate)
	})
}

func (a *appender) recordFailure() {
	n := a.state.RecordFailure()
	metrics.AppendFailuresTotal.WithLabelValues(string(a.member.ID)).Inc()
	logger := a.ctx.Log_
	if n <= 3 || n%100 == 0 {
		logger.Warn().Str("member", string(a.member.ID)).Int("failures", n).Msg("append rpc failed")
	}
}

// majorityIndex returns the highest index held by at least `need` of
// the given match indices (the classic Raft commit-index computation).
func majorityIndex(matches []Index, need int) Index {
	if len(matches) == 0 {
		return 0
	}
	sorted := append([]Index(nil), matches...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	// The (len-need)-th smallest (0-indexed) is held by exactly `need`
	// members at or above it.
	pos := len(sorted) - need
	if pos < 0 {
		return 0
	}
	return sorted[pos]
}
