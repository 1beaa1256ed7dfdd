package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"docstore/internal/config"
	"docstore/internal/document"
	"docstore/internal/repair"
	"docstore/internal/storage"
)

// Node represents a single node: a document store served over gRPC, an
// optional admin HTTP endpoint, and the clients it uses to reconcile with
// its configured peers.
type Node struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.InMemoryStore
	clients  *ClientManager
	repairer *repair.ReadRepairer
	docOpts  []document.Option

	mu         sync.Mutex
	grpcServer *grpc.Server
	lis        net.Listener
	admin      *http.Server
	adminLis   net.Listener
}

// NewNode creates a new node instance from cfg.
func NewNode(cfg *config.Config, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node_id", cfg.NodeID)

	docOpts := []document.Option{
		document.WithLogger(logger),
		document.WithMaxHistory(cfg.MaxHistorySize),
	}
	clients := NewClientManager()

	return &Node{
		cfg:      cfg,
		logger:   logger,
		store:    storage.NewInMemoryStore(docOpts...),
		clients:  clients,
		repairer: repair.NewReadRepairer(clients.Merger, cfg.RepairTimeout, logger),
		docOpts:  docOpts,
	}
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.cfg.NodeID
}

// Store returns the node's local document store.
func (n *Node) Store() storage.Store {
	return n.store
}

// Addr returns the gRPC listen address, resolved once the node is started.
func (n *Node) Addr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lis != nil {
		return n.lis.Addr().String()
	}
	return n.cfg.ListenAddr
}

// AdminAddr returns the admin HTTP address, or "" when disabled.
func (n *Node) AdminAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.adminLis != nil {
		return n.adminLis.Addr().String()
	}
	return n.cfg.AdminAddr
}

// Start listens on the configured addresses and serves in the background.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.cfg.ListenAddr, err)
	}

	var adminLis net.Listener
	if n.cfg.AdminAddr != "" {
		adminLis, err = net.Listen("tcp", n.cfg.AdminAddr)
		if err != nil {
			lis.Close()
			return fmt.Errorf("failed to listen on %s: %w", n.cfg.AdminAddr, err)
		}
	}

	n.Serve(lis, adminLis)
	return nil
}

// Serve serves gRPC on lis and, when adminLis is non-nil, the admin API on
// adminLis. It returns immediately.
func (n *Node) Serve(lis, adminLis net.Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.lis = lis
	n.grpcServer = grpc.NewServer()
	RegisterDocumentsServer(n.grpcServer, NewServer(n.store, n.cfg.NodeID, n.logger))

	// Enable gRPC reflection for grpcurl
	reflection.Register(n.grpcServer)

	n.logger.Info("starting node", "addr", lis.Addr().String(), "peers", len(n.cfg.RemotePeers()))
	go func(srv *grpc.Server) {
		if err := srv.Serve(lis); err != nil {
			n.logger.Error("grpc server stopped", "error", err)
		}
	}(n.grpcServer)

	if adminLis == nil {
		return
	}
	n.adminLis = adminLis
	n.admin = &http.Server{
		Handler:           n.adminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	n.logger.Info("starting admin server", "addr", adminLis.Addr().String())
	go func(srv *http.Server) {
		if err := srv.Serve(adminLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("admin server stopped", "error", err)
		}
	}(n.admin)
}

// Stop gracefully stops the node and waits for pending read repairs.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.logger.Info("stopping node")
	if n.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.admin.Shutdown(ctx); err != nil {
			n.logger.Warn("admin shutdown failed", "error", err)
		}
		cancel()
		n.admin = nil
	}
	if n.grpcServer != nil {
		n.grpcServer.GracefulStop()
		n.grpcServer = nil
	}
	n.repairer.Wait()
	if err := n.clients.Close(); err != nil {
		n.logger.Warn("closing peer connections failed", "error", err)
	}
}
