// Package config loads docstore node configuration from YAML files and
// command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docstore/internal/document"
	"docstore/internal/logger"
)

// Peer represents a peer node in the cluster.
type Peer struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr"`
}

// Config holds the node configuration.
type Config struct {
	NodeID         string        `yaml:"node_id"`
	ListenAddr     string        `yaml:"listen_addr"`
	AdminAddr      string        `yaml:"admin_addr"`
	Peers          []Peer        `yaml:"peers"`
	MaxHistorySize int           `yaml:"max_history_size"`
	RepairTimeout  time.Duration `yaml:"repair_timeout"`
	// ReadQuorum and WriteQuorum count copies including this node's own.
	ReadQuorum  int           `yaml:"read_quorum"`
	WriteQuorum int           `yaml:"write_quorum"`
	Log         logger.Config `yaml:"log"`
}

// Default returns a configuration suitable for a single local node.
func Default() *Config {
	return &Config{
		NodeID:         "n1",
		ListenAddr:     "127.0.0.1:50051",
		MaxHistorySize: document.MaxHistorySize,
		RepairTimeout:  2 * time.Second,
		ReadQuorum:     1,
		WriteQuorum:    1,
		Log: logger.Config{
			Level:       "info",
			Environment: "dev",
		},
	}
}

// Load reads a YAML file on top of Default. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields a node cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.NodeID == "" {
		errs = append(errs, errors.New("node_id is required"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.MaxHistorySize < 1 {
		errs = append(errs, fmt.Errorf("max_history_size must be positive, got %d", c.MaxHistorySize))
	}
	if c.RepairTimeout <= 0 {
		errs = append(errs, fmt.Errorf("repair_timeout must be positive, got %s", c.RepairTimeout))
	}
	replicas := len(c.RemotePeers()) + 1
	if c.ReadQuorum < 1 || c.ReadQuorum > replicas {
		errs = append(errs, fmt.Errorf("read_quorum must be between 1 and %d, got %d", replicas, c.ReadQuorum))
	}
	if c.WriteQuorum < 1 || c.WriteQuorum > replicas {
		errs = append(errs, fmt.Errorf("write_quorum must be between 1 and %d, got %d", replicas, c.WriteQuorum))
	}
	seen := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID == "" || p.Addr == "" {
			errs = append(errs, fmt.Errorf("peer ID and address cannot be empty: %q=%q", p.ID, p.Addr))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate peer id %s", p.ID))
		}
		seen[p.ID] = true
	}
	return errors.Join(errs...)
}

// RemotePeers returns the configured peers excluding this node.
func (c *Config) RemotePeers() []Peer {
	peers := make([]Peer, 0, len(c.Peers))
	for _, p := range c.Peers {
		if p.ID != c.NodeID {
			peers = append(peers, p)
		}
	}
	return peers
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, addr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}
		id = strings.TrimSpace(id)
		addr = strings.TrimSpace(addr)
		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{ID: id, Addr: addr})
	}

	return peers, nil
}
