// Package it runs multi-node docstore clusters in-process for integration
// tests.
package it

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"docstore/internal/config"
	"docstore/internal/node"
)

// Cluster represents a test cluster of nodes, each serving on its own
// loopback port and configured with every other node as a peer.
type Cluster struct {
	mu      sync.Mutex
	nodes   map[string]*node.Node
	order   []string
	clients *node.ClientManager
}

// NewCluster starts size nodes named n1..n<size>. Each option is applied to
// every node's configuration before it starts.
func NewCluster(size int, logger *slog.Logger, opts ...func(*config.Config)) (*Cluster, error) {
	listeners := make([]net.Listener, 0, size)
	peers := make([]config.Peer, 0, size)
	for i := 1; i <= size; i++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return nil, fmt.Errorf("failed to listen: %w", err)
		}
		listeners = append(listeners, lis)
		peers = append(peers, config.Peer{ID: fmt.Sprintf("n%d", i), Addr: lis.Addr().String()})
	}

	c := &Cluster{
		nodes:   make(map[string]*node.Node, size),
		clients: node.NewClientManager(),
	}
	for i, p := range peers {
		cfg := config.Default()
		cfg.NodeID = p.ID
		cfg.ListenAddr = p.Addr
		cfg.Peers = peers
		cfg.RepairTimeout = 2 * time.Second
		for _, opt := range opts {
			opt(cfg)
		}

		n := node.NewNode(cfg, logger)
		n.Serve(listeners[i], nil)
		c.nodes[p.ID] = n
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Node returns a node by ID.
func (c *Cluster) Node(id string) *node.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[id]
}

// Client returns a gRPC client connected to node id.
func (c *Cluster) Client(id string) (*node.Client, error) {
	n := c.Node(id)
	if n == nil {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return c.clients.GetClient(n.Addr())
}

// StopNode stops a single node; its peers see it as unreachable.
func (c *Cluster) StopNode(id string) error {
	c.mu.Lock()
	n, ok := c.nodes[id]
	delete(c.nodes, id)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	n.Stop()
	return nil
}

// Stop stops all nodes in the cluster.
func (c *Cluster) Stop() {
	c.mu.Lock()
	nodes := make([]*node.Node, 0, len(c.nodes))
	for _, id := range c.order {
		if n, ok := c.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	c.nodes = map[string]*node.Node{}
	c.mu.Unlock()

	for _, n := range nodes {
		n.Stop()
	}
	c.clients.Close()
}
