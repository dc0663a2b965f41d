// Package contract 提供土地登记合约的客户端适配层
//
// 主要组件:
//   - Client: 合约方法集合（addLand 写入 + 三个角色查询）
//   - Connector: 解析网络 ID 与已部署合约实例
//   - EthClient: 基于 go-ethereum 的实现，签名交易并等待上链
//   - Ledger: 内存账本实现，用于本地运行和测试
//
// 交易参数:
//   - gas 上限固定为 2000000
//   - gas 价格固定为 5000000000 wei
package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"landRegistry/pkg/land"
)

// Contract method names.
const (
	MethodAddLand         = "addLand"
	MethodIsSeller        = "isSeller"
	MethodIsBuyer         = "isBuyer"
	MethodIsLandInspector = "isLandInspector"
)

const (
	DefaultGasLimit uint64 = 2000000
	DefaultGasPrice int64  = 5000000000
)

var (
	ErrNotDeployed = errors.New("contract not deployed on this network")
	ErrReverted    = errors.New("transaction reverted")
	ErrNoKey       = errors.New("transaction requires a signing key")
)

// Auth authorizes a state-changing call.
type Auth struct {
	Key      *ecdsa.PrivateKey
	From     string
	GasLimit uint64
	GasPrice *big.Int
}

// NewAuth returns an Auth with the default gas parameters.
func NewAuth(key *ecdsa.PrivateKey, from string) Auth {
	return Auth{
		Key:      key,
		From:     from,
		GasLimit: DefaultGasLimit,
		GasPrice: big.NewInt(DefaultGasPrice),
	}
}

// Receipt summarizes a mined transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Status      uint64 `json:"status"`
	From        string `json:"from"`
}

// Network identifies where the contract instance lives.
type Network struct {
	ID              string `json:"networkId"`
	ChainID         string `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
}

// Client is the land contract's method set.
type Client interface {
	AddLand(ctx context.Context, auth Auth, rec land.Record) (*Receipt, error)
	IsSeller(ctx context.Context, address string) (bool, error)
	IsBuyer(ctx context.Context, address string) (bool, error)
	IsLandInspector(ctx context.Context, address string) (bool, error)
}

// Connector resolves the network and the deployed contract instance.
type Connector interface {
	Connect(ctx context.Context) (Client, *Network, error)
}

// Lazy connects on first use and reuses the connection afterwards. A failed
// connection attempt is retried on the next call.
type Lazy struct {
	connector Connector

	mu      sync.Mutex
	client  Client
	network *Network
}

// NewLazy wraps connector.
func NewLazy(connector Connector) *Lazy {
	return &Lazy{connector: connector}
}

// Connect implements Connector.
func (l *Lazy) Connect(ctx context.Context) (Client, *Network, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, l.network, nil
	}
	c, n, err := l.connector.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	l.client, l.network = c, n
	return c, n, nil
}

func (l *Lazy) AddLand(ctx context.Context, auth Auth, rec land.Record) (*Receipt, error) {
	c, _, err := l.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return c.AddLand(ctx, auth, rec)
}

func (l *Lazy) IsSeller(ctx context.Context, address string) (bool, error) {
	c, _, err := l.Connect(ctx)
	if err != nil {
		return false, err
	}
	return c.IsSeller(ctx, address)
}

func (l *Lazy) IsBuyer(ctx context.Context, address string) (bool, error) {
	c, _, err := l.Connect(ctx)
	if err != nil {
		return false, err
	}
	return c.IsBuyer(ctx, address)
}

func (l *Lazy) IsLandInspector(ctx context.Context, address string) (bool, error) {
	c, _, err := l.Connect(ctx)
	if err != nil {
		return false, err
	}
	return c.IsLandInspector(ctx, address)
}
