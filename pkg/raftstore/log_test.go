package raftstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhipwang/atomix/pkg/raft"
)

func TestBoltLogAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	log, err := NewBoltLog(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	require.NoError(t, log.Open(context.Background()))
	defer log.Close()

	w := log.Writer()
	for i := raft.Index(1); i <= 3; i++ {
		require.NoError(t, w.Append(&raft.LogEntry{Index: i, Term: 1, Kind: raft.EntryCommand, Payload: []byte("x")}))
	}
	require.Equal(t, raft.Index(3), log.LastIndex())
	require.Equal(t, raft.Index(1), log.FirstIndex())

	r := log.Reader()
	defer r.Close()
	require.NoError(t, r.Seek(1))
	var got []raft.Index
	for r.HasNext() {
		entry, err := r.Next()
		require.NoError(t, err)
		require.NotNil(t, entry)
		got = append(got, entry.Index)
	}
	require.Equal(t, []raft.Index{1, 2, 3}, got)
}

func TestBoltLogTruncate(t *testing.T) {
	dir := t.TempDir()
	log, err := NewBoltLog(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	require.NoError(t, log.Open(context.Background()))
	defer log.Close()

	w := log.Writer()
	for i := raft.Index(1); i <= 5; i++ {
		require.NoError(t, w.Append(&raft.LogEntry{Index: i, Term: 1, Kind: raft.EntryCommand}))
	}
	require.NoError(t, w.Truncate(3))
	require.Equal(t, raft.Index(2), log.LastIndex())

	r := log.Reader()
	defer r.Close()
	require.NoError(t, r.Seek(3))
	entry, err := r.Next()
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestBoltLogReopenPreservesBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.db")
	log, err := NewBoltLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Open(context.Background()))
	w := log.Writer()
	require.NoError(t, w.Append(&raft.LogEntry{Index: 1, Term: 1, Kind: raft.EntryCommand}))
	require.NoError(t, w.Append(&raft.LogEntry{Index: 2, Term: 1, Kind: raft.EntryCommand}))
	require.NoError(t, log.Close())

	reopened, err := NewBoltLog(path)
	require.NoError(t, err)
	require.NoError(t, reopened.Open(context.Background()))
	defer reopened.Close()
	require.Equal(t, raft.Index(1), reopened.FirstIndex())
	require.Equal(t, raft.Index(2), reopened.LastIndex())
}
