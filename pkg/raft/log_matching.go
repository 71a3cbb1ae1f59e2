package raft

// applyAppend implements the receiver side of log replication shared
// by FOLLOWER and PASSIVE (spec.md §4.3 log matching, invariants
// L1-L3): reject stale terms, adopt the leader's term/hint, verify the
// previous-entry match, truncate any conflicting suffix, append the
// new entries, and advance the local commit index no further than the
// leader's and no further than what was just appended.
//
// Must run on the protocol execution context (the log's single
// writer).
func applyAppend(ctx *ServerContext, req *AppendRequest) *AppendResponse {
	if req.Term < ctx.Term() {
		return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false, LastLogIndex: ctx.Log.LastIndex()}
	}
	if req.Term > ctx.Term() {
		if err := ctx.SetTerm(req.Term); err != nil {
			return &AppendResponse{Status: StatusError, Term: ctx.Term(), Succeeded: false}
		}
	}
	ctx.SetLeader(req.Term, req.Leader)

	writer := ctx.Log.Writer()

	if req.PrevLogIndex > 0 {
		reader := ctx.Log.Reader()
		defer reader.Close()
		if err := reader.Seek(req.PrevLogIndex); err != nil {
			return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false, LastLogIndex: ctx.Log.LastIndex()}
		}
		prev, err := reader.Next()
		if err != nil {
			return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false, LastLogIndex: ctx.Log.LastIndex()}
		}
		if prev == nil || prev.Term != req.PrevLogTerm {
			// Backtracking hint (§4.3 step 4): offer the index just
			// below the mismatched one, so the leader's appender
			// retreats one entry per rejection.
			hint := req.PrevLogIndex
			if hint > 0 {
				hint--
			}
			return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false, LastLogIndex: hint}
		}
	}

	next := req.PrevLogIndex + 1
	for _, entry := range req.Entries {
		if entry.Index != next {
			// Defensive: leader batches are expected contiguous; a gap
			// means this reply is stale or misrouted.
			return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: false, LastLogIndex: ctx.Log.LastIndex()}
		}
		if existing := localEntryAt(ctx, entry.Index); existing != nil && existing.Term != entry.Term {
			if err := writer.Truncate(entry.Index); err != nil {
				return &AppendResponse{Status: StatusError, Term: ctx.Term(), Succeeded: false}
			}
		}
		if localEntryAt(ctx, entry.Index) == nil {
			if err := writer.Append(entry); err != nil {
				return &AppendResponse{Status: StatusError, Term: ctx.Term(), Succeeded: false}
			}
		}
		next++
	}

	lastLocal := ctx.Log.LastIndex()
	lastNew := req.PrevLogIndex + Index(len(req.Entries))
	if req.CommitIndex > ctx.CommitIndex() {
		newCommit := req.CommitIndex
		if newCommit > lastNew {
			newCommit = lastNew
		}
		ctx.SetCommitIndex(newCommit)
	}

	return &AppendResponse{Status: StatusOK, Term: ctx.Term(), Succeeded: true, LastLogIndex: lastLocal}
}

// localEntryAt is a best-effort point lookup used only to decide
// whether an incoming entry conflicts with what's on disk; nil means
// "nothing at that index" rather than an error, since that's the
// common case past the end of the log.
func localEntryAt(ctx *ServerContext, index Index) *LogEntry {
	if index > ctx.Log.LastIndex() || index < ctx.Log.FirstIndex() {
		return nil
	}
	reader := ctx.Log.Reader()
	defer reader.Close()
	if err := reader.Seek(index); err != nil {
		return nil
	}
	entry, err := reader.Next()
	if err != nil {
		return nil
	}
	return entry
}
