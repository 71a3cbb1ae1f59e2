package main

import (
	"fmt"
	"path/filepath"

	"github.com/zhipwang/atomix/pkg/config"
	"github.com/zhipwang/atomix/pkg/kvstore"
	"github.com/zhipwang/atomix/pkg/log"
	"github.com/zhipwang/atomix/pkg/raft"
	"github.com/zhipwang/atomix/pkg/raft/session"
	"github.com/zhipwang/atomix/pkg/raftstore"
	"github.com/zhipwang/atomix/pkg/transport"
)

// node bundles the collaborators one raftd process wires together: the
// bbolt-backed log/metadata/snapshot stores (pkg/raftstore), the gRPC
// transport, the kvstore state machine behind the session manager, and
// the resulting raft.Server. Grounded on cmd/warren's clusterInitCmd,
// which wires an equivalent set of collaborators (storage, transport,
// FSM, manager) before calling Bootstrap/Join.
type node struct {
	cfg       config.Config
	boltLog   *raftstore.BoltLog
	meta      *raftstore.MetaStore
	snaps     *raftstore.FileSnapshotStore
	grpcTrans *transport.GRPCTransport
	ctx       *raft.ServerContext
	server    *raft.Server
}

// openNode opens every durable store under cfg.DataDir and assembles a
// raft.ServerContext, without starting it. Callers that only need the
// stores (bootstrap) may ignore ctx/server.
func openNode(cfg config.Config) (*node, error) {
	boltLog, err := raftstore.NewBoltLog(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	meta, err := raftstore.OpenMetaStore(filepath.Join(cfg.DataDir, "raft-meta.db"))
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	snaps, err := raftstore.OpenFileSnapshotStore(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	grpcTrans := transport.NewGRPCTransport()

	logger := log.WithNodeID(cfg.NodeID)
	sc := raft.NewServerContext(raft.MemberID(cfg.NodeID), boltLog, meta, snaps, grpcTrans, nil, logger)
	sc.Sessions = session.NewManager(kvstore.New(), sc.StateExecutor)

	sc.Appender = raft.DefaultAppenderConfig()
	if cfg.Appender.MaxInFlight > 0 {
		sc.Appender.MaxInFlight = cfg.Appender.MaxInFlight
	}
	if cfg.Appender.MaxBatchSize > 0 {
		sc.Appender.MaxBatchSize = cfg.Appender.MaxBatchSize
	}

	sc.Timeouts = raft.TimeoutConfig{
		HeartbeatInterval:  cfg.Timeouts.HeartbeatInterval,
		ElectionTimeoutMin: cfg.Timeouts.ElectionTimeoutMin,
		ElectionTimeoutMax: cfg.Timeouts.ElectionTimeoutMax,
	}
	if sc.Timeouts.HeartbeatInterval <= 0 {
		sc.Timeouts = raft.DefaultTimeoutConfig()
	}

	return &node{
		cfg:       cfg,
		boltLog:   boltLog,
		meta:      meta,
		snaps:     snaps,
		grpcTrans: grpcTrans,
		ctx:       sc,
		server:    raft.NewServer(sc),
	}, nil
}

// close releases the durable stores. The gRPC transport's connection
// pool is closed separately since serve keeps it open past server
// shutdown to drain in-flight client sessions.
func (n *node) close() {
	n.boltLog.Close()
	n.meta.Close()
	n.snaps.Close()
}
