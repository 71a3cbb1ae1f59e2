package raft

import "io"

// installCursor tracks an in-progress InstallRequest stream per
// snapshot ID, keyed on the context so a follower can receive a
// snapshot across several calls (spec.md §4.4). A chunk at Offset 0
// starts the stream over with a fresh writer; later chunks are
// appended in arrival order and their Offset is not checked.
type installCursor struct {
	writer SnapshotWriter
	id     string
}

var _ = io.Writer(nil) // SnapshotWriter embeds io.Writer; documents the dependency.

// applyInstall is the receiver side of snapshot transfer, shared by
// FOLLOWER and PASSIVE (spec.md §4.4). Chunks are written through to
// the SnapshotStore in order; the final chunk (Complete) commits the
// snapshot and hands it to the session manager, which absorbs the
// application state and session registry it carries.
func applyInstall(ctx *ServerContext, req *InstallRequest) *InstallResponse {
	if req.Term < ctx.Term() {
		return &InstallResponse{Status: StatusOK, Term: ctx.Term()}
	}
	if req.Term > ctx.Term() {
		ctx.SetTerm(req.Term)
	}
	ctx.SetLeader(req.Term, req.Leader)

	cur, ok := ctx.installCursor(req.SnapshotID)
	if ok && req.Offset == 0 {
		cur.writer.Cancel()
		ctx.clearInstallCursor(req.SnapshotID)
		ok = false
	}
	if !ok {
		writer, err := ctx.Snapshots.Create(req.SnapshotIndex, req.SnapshotTerm, req.SnapshotID)
		if err != nil {
			return &InstallResponse{Status: StatusError, Term: ctx.Term()}
		}
		cur = &installCursor{writer: writer, id: req.SnapshotID}
		ctx.setInstallCursor(req.SnapshotID, cur)
	}

	if len(req.Data) > 0 {
		if _, err := cur.writer.Write(req.Data); err != nil {
			cur.writer.Cancel()
			ctx.clearInstallCursor(req.SnapshotID)
			return &InstallResponse{Status: StatusError, Term: ctx.Term()}
		}
	}

	if !req.Complete {
		return &InstallResponse{Status: StatusOK, Term: ctx.Term()}
	}

	if err := cur.writer.Commit(); err != nil {
		ctx.clearInstallCursor(req.SnapshotID)
		return &InstallResponse{Status: StatusError, Term: ctx.Term()}
	}
	ctx.clearInstallCursor(req.SnapshotID)

	reader, err := ctx.Snapshots.OpenReader(req.SnapshotID)
	if err != nil {
		return &InstallResponse{Status: StatusError, Term: ctx.Term()}
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return &InstallResponse{Status: StatusError, Term: ctx.Term()}
	}

	snap := Snapshot{ID: req.SnapshotID, Index: req.SnapshotIndex, Term: req.SnapshotTerm}
	if err := ctx.Sessions.InstallSnapshot(snap, data); err != nil {
		return &InstallResponse{Status: StatusError, Term: ctx.Term()}
	}
	if req.SnapshotIndex > ctx.CommitIndex() {
		ctx.SetCommitIndex(req.SnapshotIndex)
	}

	return &InstallResponse{Status: StatusOK, Term: ctx.Term()}
}
