// Package p2p 提供基于 libp2p 的文档分发节点
//
// 核心功能:
//   - DHT (分布式哈希表): 节点发现、内容路由、文档清单发布
//   - 分块服务: 从本地文档存储向其他节点提供分块数据
//   - 分块获取: 查找提供者、校验存在性、下载并校验 SHA256
//   - 限流: 按节点限制分块请求速率
//
// 主要组件:
//   - Node: 核心服务，整合 host、DHT 和各协议处理器
//   - peerBook: 记录下载成功率，自动拉黑失败率高的节点
//   - PeerSelector: 节点选择策略（随机 / 轮询）
//   - peerLimiter: 分块服务的按节点限流
//
// 使用示例:
//
//	cfg := p2p.NewConfig()
//	cfg.Port = 0 // 随机端口
//
//	node, err := p2p.NewNode(ctx, cfg, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Shutdown()
//	store.SetNetwork(node, node)
package p2p

import (
	"context"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// ChunkSource locates chunks this node can serve.
type ChunkSource interface {
	ChunkPath(chunkHash string) string
}

// Config configures a Node.
type Config struct {
	Port              int
	Insecure          bool
	Seed              int64
	BootstrapPeers    []multiaddr.Multiaddr
	ProtocolPrefix    string
	EnableAutoRefresh bool
	NameSpace         string
	MaxRetries        int     // 单个分块最多尝试的提供者数
	RequestTimeout    int     // 请求超时时间（秒）
	DataTimeout       int     // 数据传输超时时间（秒）
	DHTTimeout        int     // DHT 操作超时时间（秒）
	ServeRate         float64 // 每个节点每秒可请求的分块数
	ServeBurst        int
	MaxStreams        int // 每个节点的最大并发下载流
	BlacklistTimeout  time.Duration
	PeerSelector      string // random 或 round-robin
}

// NewConfig 返回包含默认值的 Config
func NewConfig() Config {
	return Config{
		// 端口设为 0 即随机分配
		Port:              0,
		ProtocolPrefix:    "/landreg",
		EnableAutoRefresh: true,
		NameSpace:         "landreg",
		MaxRetries:        3,
		RequestTimeout:    5,
		DataTimeout:       30,
		DHTTimeout:        10,
		ServeRate:         32,
		ServeBurst:        64,
		MaxStreams:        5,
		BlacklistTimeout:  10 * time.Minute,
		PeerSelector:      SelectorRandom,
	}
}

// Node is a running document node.
type Node struct {
	Host     host.Host
	DHT      *dht.IpfsDHT
	Config   *Config
	Selector PeerSelector

	chunks  ChunkSource
	limiter *peerLimiter
	peers   *peerBook

	// 服务上下文，Shutdown 时取消
	ctx    context.Context
	cancel context.CancelFunc
}

// NewNode starts a host and DHT and registers all protocol handlers.
// chunks may be nil for a node that only fetches.
func NewNode(ctx context.Context, cfg Config, chunks ChunkSource) (*Node, error) {
	selector, err := NewPeerSelector(cfg.PeerSelector)
	if err != nil {
		return nil, err
	}

	h, err := newBasicHost(cfg.Port, cfg.Insecure, cfg.Seed)
	if err != nil {
		return nil, xerrors.Errorf("failed to create host: %w", err)
	}

	kdht, err := newDHT(ctx, h, cfg)
	if err != nil {
		h.Close()
		return nil, xerrors.Errorf("failed to create DHT instance: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	n := &Node{
		Host:     h,
		DHT:      kdht,
		Config:   &cfg,
		Selector: selector,
		chunks:   chunks,
		limiter:  newPeerLimiter(cfg.ServeRate, cfg.ServeBurst),
		peers:    newPeerBook(cfg.MaxStreams, cfg.BlacklistTimeout),
		ctx:      serviceCtx,
		cancel:   cancel,
	}
	n.registerAnnounceHandler()
	n.registerLookupHandler()
	if chunks != nil {
		n.registerChunkExistHandler()
		n.registerChunkDataHandler()
	}
	return n, nil
}

// Addrs returns the node's dialable addresses including its peer id.
func (n *Node) Addrs() []multiaddr.Multiaddr {
	suffix, err := multiaddr.NewMultiaddr("/p2p/" + n.Host.ID().String())
	if err != nil {
		return nil
	}
	out := make([]multiaddr.Multiaddr, 0, len(n.Host.Addrs()))
	for _, a := range n.Host.Addrs() {
		out = append(out, a.Encapsulate(suffix))
	}
	return out
}

func (n *Node) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// Shutdown 优雅关闭节点
func (n *Node) Shutdown() error {
	logrus.Info("Shutting down P2P node...")

	if n.cancel != nil {
		n.cancel()
	}
	if n.DHT != nil {
		if err := n.DHT.Close(); err != nil {
			logrus.Warnf("Error closing DHT: %v", err)
		}
	}
	if n.Host != nil {
		if err := n.Host.Close(); err != nil {
			logrus.Errorf("Error closing host: %v", err)
			return err
		}
	}

	logrus.Info("P2P node shutdown complete")
	return nil
}
