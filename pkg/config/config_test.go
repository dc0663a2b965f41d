package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendEthereum, cfg.Chain.Backend)
	assert.Equal(t, uint64(2000000), cfg.Chain.GasLimit)
	assert.Equal(t, int64(5000000000), cfg.Chain.GasPrice)
	assert.Equal(t, uint(256*1024), cfg.Storage.BlockSize)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Network.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.PendingTimeout())
	assert.Equal(t, time.Hour, cfg.SessionRetention())
	assert.Equal(t, "random", cfg.Network.PeerSelector)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
network:
  enabled: true
  port: 4001
  peer_selector: round-robin
storage:
  chunk_path: /tmp/landreg/chunks
  manifest_path: /tmp/landreg/manifests
  block_size: 65536
  session_retention: 0
journal:
  pending_timeout: 30
chain:
  backend: memory
  roles:
    "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266": inspector
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Network.Enabled)
	assert.Equal(t, 4001, cfg.Network.Port)
	assert.Equal(t, uint(65536), cfg.Storage.BlockSize)
	assert.Equal(t, BackendMemory, cfg.Chain.Backend)
	assert.Len(t, cfg.Chain.Roles, 1)
	assert.Equal(t, "json", cfg.Logging.Format)

	nodeCfg, err := cfg.ToNodeConfig()
	require.NoError(t, err)
	assert.Equal(t, 4001, nodeCfg.Port)
	assert.Equal(t, "landreg", nodeCfg.NameSpace)
	assert.Equal(t, "round-robin", nodeCfg.PeerSelector)
	assert.Equal(t, 30*time.Second, cfg.PendingTimeout())
	assert.Zero(t, cfg.SessionRetention())
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 9000\n")
	t.Setenv("LANDREG_HTTP_PORT", "9100")
	t.Setenv("LANDREG_RPC_URL", "http://chain:8545")
	t.Setenv("LANDREG_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTP.Port)
	assert.Equal(t, "http://chain:8545", cfg.Chain.RPCURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad backend", body: "chain:\n  backend: solana\n"},
		{name: "bad role", body: "chain:\n  backend: memory\n  roles:\n    \"0x01\": admin\n"},
		{name: "block size", body: "storage:\n  block_size: 10\n"},
		{name: "log level", body: "logging:\n  level: trace\n"},
		{name: "http port", body: "http:\n  port: 0\n"},
		{name: "p2p port", body: "network:\n  port: 70000\n"},
		{name: "peer selector", body: "network:\n  peer_selector: fastest\n"},
		{name: "pending timeout", body: "journal:\n  pending_timeout: -1\n"},
		{name: "session retention", body: "storage:\n  session_retention: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestBadBootstrapPeer(t *testing.T) {
	cfg, err := Load(writeConfig(t, "network:\n  bootstrap_peers:\n    - /ip4/127.0.0.1/tcp/4001\n"))
	require.NoError(t, err)
	_, err = cfg.ToNodeConfig()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	cfg.Storage.ChunkPath = filepath.Join(dir, "c")
	cfg.Storage.ManifestPath = filepath.Join(dir, "m")
	cfg.Vault.Path = filepath.Join(dir, "v", "vault.json")
	cfg.Journal.Path = filepath.Join(dir, "j", "journal.db")

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{"c", "m", "v", "j"} {
		assert.DirExists(t, filepath.Join(dir, d))
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "/x/config.yaml", GetConfigPath("/x/config.yaml"))
}
