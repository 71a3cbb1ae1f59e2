package raftstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhipwang/atomix/pkg/raft"
)

func TestMetaStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenMetaStore(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreTerm(raft.Term(7)))
	term, err := store.LoadTerm()
	require.NoError(t, err)
	require.Equal(t, raft.Term(7), term)

	require.NoError(t, store.StoreVote(raft.MemberID("n2")))
	vote, err := store.LoadVote()
	require.NoError(t, err)
	require.Equal(t, raft.MemberID("n2"), vote)

	cfg := raft.Configuration{Index: 1, Time: 1, Members: []raft.Member{{ID: "n1", Role: raft.RoleActive}}}
	require.NoError(t, store.StoreConfiguration(cfg))
	loaded, ok, err := store.LoadConfiguration()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg, loaded)
}

func TestMetaStoreDeleteResets(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenMetaStore(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreTerm(raft.Term(3)))
	require.NoError(t, store.Delete())

	term, err := store.LoadTerm()
	require.NoError(t, err)
	require.Equal(t, raft.Term(0), term)
}
