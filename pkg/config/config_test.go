package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_id: n1\nbind_addr: 10.0.0.1:9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "n1", cfg.NodeID)
	require.Equal(t, "10.0.0.1:9000", cfg.BindAddr)
	require.Equal(t, 1, cfg.Appender.MaxInFlight)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadRequiresNodeID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bind_addr: 10.0.0.1:9000\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
