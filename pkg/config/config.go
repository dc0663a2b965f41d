// Package config 提供土地登记客户端的配置加载功能
//
// 核心功能:
//   - 从 YAML 文件加载配置
//   - 支持环境变量覆盖
//   - 配置验证
//   - 转换为 p2p.Config 结构
//
// 使用示例:
//
//	cfg, err := config.Load(config.GetConfigPath(""))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	nodeCfg, err := cfg.ToNodeConfig()
//
// 配置优先级:
//  1. 环境变量（最高优先级）
//  2. 配置文件
//  3. 默认值（最低优先级）
//
// 环境变量命名规则:
//   - 配置项使用 LANDREG_ 前缀
//   - 使用大写字母和下划线
//   - 例如: LANDREG_RPC_URL, LANDREG_LOG_LEVEL
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"landRegistry/pkg/contract"
	"landRegistry/pkg/p2p"
)

const EnvPrefix = "LANDREG"

// Config 包含所有配置项
type Config struct {
	Network NetworkConfig `mapstructure:"network"`
	Storage StorageConfig `mapstructure:"storage"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Vault   VaultConfig   `mapstructure:"vault"`
	Journal JournalConfig `mapstructure:"journal"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// NetworkConfig P2P 网络配置
type NetworkConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	Insecure       bool     `mapstructure:"insecure"`
	Seed           int64    `mapstructure:"seed"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers"`
	ProtocolPrefix string   `mapstructure:"protocol_prefix"`
	AutoRefresh    bool     `mapstructure:"auto_refresh"`
	NameSpace      string   `mapstructure:"namespace"`
	MaxRetries     int      `mapstructure:"max_retries"`
	RequestTimeout int      `mapstructure:"request_timeout"`
	DataTimeout    int      `mapstructure:"data_timeout"`
	DHTTimeout     int      `mapstructure:"dht_timeout"`
	ServeRate      float64  `mapstructure:"serve_rate"`
	ServeBurst     int      `mapstructure:"serve_burst"`
	PeerSelector   string   `mapstructure:"peer_selector"`
}

// StorageConfig 文档存储配置
type StorageConfig struct {
	ChunkPath    string `mapstructure:"chunk_path"`
	ManifestPath string `mapstructure:"manifest_path"`
	BlockSize    uint   `mapstructure:"block_size"`
	// 已结束的上传会话保留时间（秒），0 表示不清理
	SessionRetention int `mapstructure:"session_retention"`
}

// ChainConfig 合约连接配置
type ChainConfig struct {
	Backend         string `mapstructure:"backend"`
	RPCURL          string `mapstructure:"rpc_url"`
	ArtifactPath    string `mapstructure:"artifact_path"`
	ContractAddress string `mapstructure:"contract_address"`
	GasLimit        uint64 `mapstructure:"gas_limit"`
	GasPrice        int64  `mapstructure:"gas_price"`
	Timeout         int    `mapstructure:"timeout"`
	// memory 后端的初始角色: 地址 -> seller / buyer / inspector
	Roles map[string]string `mapstructure:"roles"`
}

// VaultConfig 凭据存储配置
type VaultConfig struct {
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

// JournalConfig 提交记录配置
type JournalConfig struct {
	Path string `mapstructure:"path"`
	// pending 提交阻止重复提交的时间（秒），0 表示一直阻止
	PendingTimeout int `mapstructure:"pending_timeout"`
}

// HTTPConfig API 服务配置
type HTTPConfig struct {
	Port          int   `mapstructure:"port"`
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	BackendEthereum = "ethereum"
	BackendMemory   = "memory"
)

// Load 从配置文件加载配置
// 如果配置文件不存在，使用默认配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/landreg")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// 配置文件未找到，使用默认值
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("network.enabled", false)
	v.SetDefault("network.port", 0)
	v.SetDefault("network.insecure", false)
	v.SetDefault("network.seed", int64(0))
	v.SetDefault("network.bootstrap_peers", []string{})
	v.SetDefault("network.protocol_prefix", "/landreg")
	v.SetDefault("network.auto_refresh", true)
	v.SetDefault("network.namespace", "landreg")
	v.SetDefault("network.max_retries", 3)
	v.SetDefault("network.request_timeout", 5)
	v.SetDefault("network.data_timeout", 30)
	v.SetDefault("network.dht_timeout", 10)
	v.SetDefault("network.serve_rate", 32.0)
	v.SetDefault("network.serve_burst", 64)
	v.SetDefault("network.peer_selector", p2p.SelectorRandom)

	v.SetDefault("storage.chunk_path", "data/chunks")
	v.SetDefault("storage.manifest_path", "data/manifests")
	v.SetDefault("storage.block_size", 256*1024) // 256KB
	v.SetDefault("storage.session_retention", 3600)

	v.SetDefault("chain.backend", BackendEthereum)
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:7545")
	v.SetDefault("chain.artifact_path", "contracts/Land.json")
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.gas_limit", contract.DefaultGasLimit)
	v.SetDefault("chain.gas_price", contract.DefaultGasPrice)
	v.SetDefault("chain.timeout", 60)

	v.SetDefault("vault.path", "data/vault.json")
	v.SetDefault("vault.passphrase", "")

	v.SetDefault("journal.path", "data/journal.db")
	v.SetDefault("journal.pending_timeout", 600)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.max_upload_size", 32<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// bindEnvVars 绑定环境变量
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 常用配置项的短名称
	bindings := map[string]string{
		"network.enabled":         "P2P_ENABLED",
		"network.port":            "P2P_PORT",
		"network.bootstrap_peers": "BOOTSTRAP_PEERS",
		"storage.chunk_path":      "CHUNK_PATH",
		"storage.manifest_path":   "MANIFEST_PATH",
		"storage.block_size":      "BLOCK_SIZE",
		"chain.backend":           "CHAIN_BACKEND",
		"chain.rpc_url":           "RPC_URL",
		"chain.artifact_path":     "ARTIFACT_PATH",
		"chain.contract_address":  "CONTRACT_ADDRESS",
		"vault.path":              "VAULT_PATH",
		"vault.passphrase":        "VAULT_PASSPHRASE",
		"journal.path":            "JOURNAL_PATH",
		"http.port":               "HTTP_PORT",
		"logging.level":           "LOG_LEVEL",
		"logging.format":          "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), EnvPrefix+"_"+env); err != nil {
			fmt.Printf("Warning: failed to bind env var %s: %v\n", env, err)
		}
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Network.Port < 0 || c.Network.Port > 65535 {
		return fmt.Errorf("invalid p2p port: %d (must be 0-65535)", c.Network.Port)
	}
	if c.Network.ServeRate < 0 {
		return fmt.Errorf("invalid serve_rate: %v (must be >= 0)", c.Network.ServeRate)
	}
	if _, err := p2p.NewPeerSelector(c.Network.PeerSelector); err != nil {
		return fmt.Errorf("invalid peer_selector: %w", err)
	}

	if c.Storage.ChunkPath == "" || c.Storage.ManifestPath == "" {
		return fmt.Errorf("chunk_path and manifest_path cannot be empty")
	}
	if c.Storage.BlockSize < 1024 || c.Storage.BlockSize > 4*1024*1024 {
		return fmt.Errorf("invalid block_size: %d (must be 1KB-4MB)", c.Storage.BlockSize)
	}
	if c.Storage.SessionRetention < 0 {
		return fmt.Errorf("invalid session_retention: %d (must be >= 0)", c.Storage.SessionRetention)
	}

	switch c.Chain.Backend {
	case BackendEthereum:
		if c.Chain.RPCURL == "" {
			return fmt.Errorf("rpc_url cannot be empty for the ethereum backend")
		}
	case BackendMemory:
		for addr, role := range c.Chain.Roles {
			if _, err := contract.ParseRole(role); err != nil {
				return fmt.Errorf("invalid role for %s: %w", addr, err)
			}
		}
	default:
		return fmt.Errorf("invalid chain backend: %s (must be ethereum or memory)", c.Chain.Backend)
	}
	if c.Chain.GasLimit == 0 || c.Chain.GasPrice <= 0 {
		return fmt.Errorf("gas_limit and gas_price must be positive")
	}

	if c.Vault.Path == "" {
		return fmt.Errorf("vault path cannot be empty")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal path cannot be empty")
	}
	if c.Journal.PendingTimeout < 0 {
		return fmt.Errorf("invalid pending_timeout: %d (must be >= 0)", c.Journal.PendingTimeout)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d (must be 1-65535)", c.HTTP.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", c.Logging.Format)
	}
	return nil
}

// ToNodeConfig 转换为 p2p.Config
func (c *Config) ToNodeConfig() (p2p.Config, error) {
	cfg := p2p.NewConfig()
	cfg.Port = c.Network.Port
	cfg.Insecure = c.Network.Insecure
	cfg.Seed = c.Network.Seed
	cfg.ProtocolPrefix = c.Network.ProtocolPrefix
	cfg.EnableAutoRefresh = c.Network.AutoRefresh
	cfg.NameSpace = c.Network.NameSpace
	cfg.MaxRetries = c.Network.MaxRetries
	cfg.RequestTimeout = c.Network.RequestTimeout
	cfg.DataTimeout = c.Network.DataTimeout
	cfg.DHTTimeout = c.Network.DHTTimeout
	cfg.ServeRate = c.Network.ServeRate
	cfg.ServeBurst = c.Network.ServeBurst
	cfg.PeerSelector = c.Network.PeerSelector

	var peers []string
	for _, s := range c.Network.BootstrapPeers {
		peers = append(peers, strings.TrimSpace(s))
	}
	addrs, err := p2p.ParseBootstrapPeers(peers)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse bootstrap peers: %w", err)
	}
	cfg.BootstrapPeers = addrs
	return cfg, nil
}

// ChainTimeout returns the time allowed for one contract call.
func (c *Config) ChainTimeout() time.Duration {
	if c.Chain.Timeout <= 0 {
		return time.Minute
	}
	return time.Duration(c.Chain.Timeout) * time.Second
}

// PendingTimeout returns how long a pending submission blocks resubmission.
func (c *Config) PendingTimeout() time.Duration {
	return time.Duration(c.Journal.PendingTimeout) * time.Second
}

// SessionRetention returns how long finished upload sessions are kept.
func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.Storage.SessionRetention) * time.Second
}

// EnsureDirectories 确保必要的目录存在
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.ChunkPath,
		c.Storage.ManifestPath,
		filepath.Dir(c.Vault.Path),
		filepath.Dir(c.Journal.Path),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetConfigPath 获取配置文件路径
// 按优先级搜索：
// 1. 命令行指定的路径
// 2. 当前目录的 config.yaml
// 3. config/ 目录的 config.yaml
// 4. /etc/landreg/config.yaml
func GetConfigPath(cmdLinePath string) string {
	if cmdLinePath != "" {
		return cmdLinePath
	}
	paths := []string{
		"config.yaml",
		filepath.Join("config", "config.yaml"),
		"/etc/landreg/config.yaml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
