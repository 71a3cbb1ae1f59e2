// Package config loads the on-disk YAML configuration for a raftd
// node: identity, storage paths, timing, and the ambient logging/
// metrics knobs. Grounded on the teacher's Config pattern
// (pkg/manager.Config: a small struct of the fields a node needs to
// start, no nested indirection) but loaded from a file with
// gopkg.in/yaml.v3 rather than assembled from cobra flags alone.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a single raftd node's configuration file.
type Config struct {
	NodeID   string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`
	DataDir  string `yaml:"data_dir"`

	Peers []PeerConfig `yaml:"peers"`

	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Appender AppenderConfig `yaml:"appender"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PeerConfig is one other member known at startup time, used only to
// seed the transport's dial targets; cluster membership itself is
// governed by the replicated Configuration, not this file.
type PeerConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

type TimeoutsConfig struct {
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	ElectionTimeoutMin time.Duration `yaml:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `yaml:"election_timeout_max"`
}

type AppenderConfig struct {
	MaxInFlight  int `yaml:"max_in_flight"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns a Config with the same timing defaults
// pkg/raft.DefaultTimeoutConfig/DefaultAppenderConfig use, so a file
// that omits a section still starts a working node.
func Default() Config {
	return Config{
		BindAddr: "127.0.0.1:8470",
		DataDir:  "./data",
		Timeouts: TimeoutsConfig{
			HeartbeatInterval:  100 * time.Millisecond,
			ElectionTimeoutMin: 300 * time.Millisecond,
			ElectionTimeoutMax: 600 * time.Millisecond,
		},
		Appender: AppenderConfig{MaxInFlight: 1, MaxBatchSize: 256},
		Log:      LogConfig{Level: "info"},
		Metrics:  MetricsConfig{Enabled: true, Addr: "127.0.0.1:9470"},
	}
}

// Load reads and parses a YAML config file, filling in Default()'s
// values for anything the file leaves zero.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.NodeID == "" {
		return Config{}, fmt.Errorf("config: node_id is required")
	}
	return cfg, nil
}
