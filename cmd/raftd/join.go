package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zhipwang/atomix/pkg/config"
	"github.com/zhipwang/atomix/pkg/log"
	"github.com/zhipwang/atomix/pkg/raft"
	"github.com/zhipwang/atomix/pkg/transport"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Ask an existing cluster's leader to admit this node",
	Long: `join sends a JoinRequest to --leader naming this node (from --config)
as a new RESERVE member. On success the leader's committed Configuration
(returned in the response) is persisted to this node's own metadata
store, so the next "raftd serve" starts as RESERVE instead of INACTIVE.
Grounded on cmd/warren's "manager join"/Manager.Join, generalized from a
TCP raft.Raft client RPC to this module's gRPC transport.`,
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().String("config", "raftd.yaml", "Path to the node's YAML config file")
	joinCmd.Flags().String("leader", "", "address of a current cluster member to contact (required)")
	joinCmd.MarkFlagRequired("leader")
}

func runJoin(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	leaderAddr, _ := cmd.Flags().GetString("leader")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	n, err := openNode(cfg)
	if err != nil {
		return err
	}
	defer n.close()
	defer n.grpcTrans.Close()

	if _, ok, err := n.meta.LoadConfiguration(); err != nil {
		return fmt.Errorf("check existing configuration: %w", err)
	} else if ok {
		return fmt.Errorf("join: %s already has a configuration; refusing to overwrite", cfg.DataDir)
	}

	correlation := uuid.NewString()
	log.WithNodeID(cfg.NodeID).Info().Str("leader", leaderAddr).Str("correlation_id", correlation).Msg("requesting to join cluster")

	req := &raft.JoinRequest{Member: raft.Member{ID: raft.MemberID(cfg.NodeID), Address: cfg.BindAddr}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := n.grpcTrans.SendJoin(ctx, raft.Member{ID: "leader", Address: leaderAddr}, req)
	if err != nil {
		return fmt.Errorf("join request %s: %w", correlation, err)
	}
	if resp.Status != raft.StatusOK {
		return fmt.Errorf("join request %s rejected: %s: %s", correlation, resp.Error, resp.Message)
	}

	if err := n.meta.StoreConfiguration(resp.Configuration); err != nil {
		return fmt.Errorf("store admitted configuration: %w", err)
	}

	fmt.Printf("Joined cluster as RESERVE (configuration index %d, %d members)\n", resp.Configuration.Index, len(resp.Configuration.Members))
	fmt.Println("Start it with: raftd serve --config " + configPath)
	return nil
}
