package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"docstore/internal/config"
	"docstore/internal/logger"
	"docstore/internal/node"
)

type serveFlags struct {
	configPath  string
	nodeID      string
	listen      string
	admin       string
	peers       string
	logLevel    string
	readQuorum  int
	writeQuorum int
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a docstore node until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&f.nodeID, "node-id", "", "node identifier")
	cmd.Flags().StringVar(&f.listen, "listen", "", "gRPC listen address")
	cmd.Flags().StringVar(&f.admin, "admin", "", "admin HTTP listen address (empty disables)")
	cmd.Flags().StringVar(&f.peers, "peers", "", "comma-separated peers: id1=addr1,id2=addr2")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().IntVar(&f.readQuorum, "read-quorum", 1, "copies, local included, a reconcile must collect")
	cmd.Flags().IntVar(&f.writeQuorum, "write-quorum", 1, "copies, local included, a write must reach")
	return cmd
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, f serveFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("node-id") {
		cfg.NodeID = f.nodeID
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = f.listen
	}
	if flags.Changed("admin") {
		cfg.AdminAddr = f.admin
	}
	if flags.Changed("peers") {
		peers, err := config.ParsePeers(f.peers)
		if err != nil {
			return nil, fmt.Errorf("invalid --peers: %w", err)
		}
		cfg.Peers = peers
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("read-quorum") {
		cfg.ReadQuorum = f.readQuorum
	}
	if flags.Changed("write-quorum") {
		cfg.WriteQuorum = f.writeQuorum
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(cfg *config.Config) error {
	log, err := logger.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if cfg.Log.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	n := node.NewNode(cfg, log)
	if err := n.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	n.Stop()
	return nil
}
