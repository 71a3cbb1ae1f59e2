package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhipwang/atomix/pkg/raft"
	"github.com/zhipwang/atomix/pkg/transport"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query one node's view of the cluster",
	Long:  `status dials --addr directly and prints the term, leader hint, and Configuration that node's HandleMetadata reports — no local data directory required.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("addr", "127.0.0.1:8470", "address of the node to query")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	trans := transport.NewGRPCTransport()
	defer trans.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := trans.SendMetadata(ctx, raft.Member{ID: "queried", Address: addr}, &raft.MetadataRequest{})
	if err != nil {
		return fmt.Errorf("query %s: %w", addr, err)
	}

	fmt.Printf("Term:   %d\n", resp.Term)
	fmt.Printf("Leader: %s\n", resp.Leader)
	fmt.Printf("Configuration (index %d, time %d):\n", resp.Configuration.Index, resp.Configuration.Time)
	for _, m := range resp.Configuration.Members {
		fmt.Printf("  %-20s %-10s %s\n", m.ID, m.Role, m.Address)
	}
	return nil
}
