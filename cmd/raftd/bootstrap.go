package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhipwang/atomix/pkg/config"
	"github.com/zhipwang/atomix/pkg/raft"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Initialize a brand-new single-member cluster",
	Long: `bootstrap writes an initial Configuration naming this node the sole
ACTIVE member, so its first "serve" comes up as a one-member quorum
(i.e. leader of itself) instead of sitting INACTIVE forever. Grounded
on cmd/warren's "cluster init", generalized from spinning up a
container-orchestration manager to seeding a raft.Configuration
directly through pkg/raftstore.MetaStore.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().String("config", "raftd.yaml", "Path to the node's YAML config file")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
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
		return fmt.Errorf("bootstrap: %s already has a configuration; refusing to overwrite", cfg.DataDir)
	}

	initial := raft.Configuration{
		Index: 1,
		Time:  1,
		Members: []raft.Member{
			{ID: raft.MemberID(cfg.NodeID), Role: raft.RoleActive, Address: cfg.BindAddr},
		},
	}
	if err := n.meta.StoreConfiguration(initial); err != nil {
		return fmt.Errorf("store initial configuration: %w", err)
	}

	fmt.Printf("Cluster bootstrapped: %s is the sole ACTIVE member at %s\n", cfg.NodeID, cfg.BindAddr)
	fmt.Println("Start it with: raftd serve --config " + configPath)
	return nil
}
