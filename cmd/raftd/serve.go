package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/zhipwang/atomix/pkg/config"
	"github.com/zhipwang/atomix/pkg/log"
	"github.com/zhipwang/atomix/pkg/metrics"
	"github.com/zhipwang/atomix/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this node, serving gRPC until interrupted",
	Long: `serve starts the node described by --config: it opens the durable
log/metadata/snapshot stores, starts the gRPC transport, and runs the
protocol and state execution contexts until it receives SIGINT or
SIGTERM. The node leaves INACTIVE at startup only if the data
directory already holds a configuration naming it (from a prior
bootstrap/join); a Join or Configure RPC that arrives while it is
INACTIVE does not change its role.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "raftd.yaml", "Path to the node's YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	if err := n.server.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer n.server.Stop()

	lis, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.BindAddr, err)
	}
	grpcServer := grpc.NewServer()
	transport.RegisterServer(grpcServer, n.server)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	defer grpcServer.GracefulStop()

	log.WithNodeID(cfg.NodeID).Info().Str("addr", cfg.BindAddr).Msg("raftd serving")

	metrics.SetVersion(Version)
	metrics.RegisterComponent("raft", true, "started")
	metrics.RegisterComponent("log", true, "open")
	metrics.RegisterComponent("transport", true, "listening")

	collector := metrics.NewCollector(n.ctx)
	collector.Start()
	defer collector.Stop()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer metricsSrv.Close()
		log.WithNodeID(cfg.NodeID).Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.WithNodeID(cfg.NodeID).Info().Msg("shutting down")
	return nil
}
