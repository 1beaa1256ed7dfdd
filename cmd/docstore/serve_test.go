package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_id: from-file\nlisten_addr: 127.0.0.1:7000\n"), 0o600))

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--config", path,
		"--listen", "127.0.0.1:7001",
		"--peers", "n2=127.0.0.1:7002,n3=127.0.0.1:7003",
		"--log-level", "debug",
	}))

	f := serveFlags{}
	f.configPath, _ = cmd.Flags().GetString("config")
	f.listen, _ = cmd.Flags().GetString("listen")
	f.peers, _ = cmd.Flags().GetString("peers")
	f.logLevel, _ = cmd.Flags().GetString("log-level")

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.NodeID)
	assert.Equal(t, "127.0.0.1:7001", cfg.ListenAddr)
	assert.Len(t, cfg.Peers, 2)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_InvalidPeers(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--peers", "broken"}))

	_, err := loadConfig(cmd, serveFlags{peers: "broken"})
	assert.Error(t, err)
}

func TestLoadConfig_QuorumLargerThanCluster(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--peers", "n2=127.0.0.1:7002",
		"--write-quorum", "3",
	}))

	_, err := loadConfig(cmd, serveFlags{peers: "n2=127.0.0.1:7002", writeQuorum: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write_quorum")
}
