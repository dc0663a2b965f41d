package contract

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"landRegistry/pkg/land"
)

// EthConnector dials an Ethereum JSON-RPC endpoint and binds the artifact's
// deployment for the node's network id.
type EthConnector struct {
	RPCURL   string
	Artifact *Artifact
	// Address overrides the artifact's networks map when set.
	Address string
}

// Connect implements Connector.
func (c *EthConnector) Connect(ctx context.Context) (Client, *Network, error) {
	client, err := Dial(ctx, c.RPCURL, c.Artifact, c.Address)
	if err != nil {
		return nil, nil, err
	}
	n := client.Network()
	return client, &n, nil
}

// EthClient calls the land contract through go-ethereum bindings.
type EthClient struct {
	backend *ethclient.Client
	bound   *bind.BoundContract
	abi     abi.ABI
	chainID *big.Int
	network Network
}

// Dial connects to rpcURL and resolves the contract instance.
func Dial(ctx context.Context, rpcURL string, art *Artifact, address string) (*EthClient, error) {
	backend, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	networkID, err := backend.NetworkID(ctx)
	if err != nil {
		backend.Close()
		return nil, xerrors.Errorf("failed to get network id: %w", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, xerrors.Errorf("failed to get chain id: %w", err)
	}

	if address != "" {
		art = art.WithAddress(networkID.String(), address)
	}
	addr, err := art.Address(networkID.String())
	if err != nil {
		backend.Close()
		return nil, err
	}
	code, err := backend.CodeAt(ctx, addr, nil)
	if err != nil {
		backend.Close()
		return nil, xerrors.Errorf("failed to read contract code: %w", err)
	}
	if len(code) == 0 {
		backend.Close()
		return nil, xerrors.Errorf("%w: no code at %s", ErrNotDeployed, addr.Hex())
	}

	parsed, err := art.ParsedABI()
	if err != nil {
		backend.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"network":  networkID.String(),
		"chain":    chainID.String(),
		"contract": addr.Hex(),
	}).Info("Connected to land contract")

	return &EthClient{
		backend: backend,
		bound:   bind.NewBoundContract(addr, parsed, backend, backend, backend),
		abi:     parsed,
		chainID: chainID,
		network: Network{
			ID:              networkID.String(),
			ChainID:         chainID.String(),
			ContractAddress: addr.Hex(),
		},
	}, nil
}

// Network returns the resolved network.
func (c *EthClient) Network() Network {
	return c.network
}

// Close releases the RPC connection.
func (c *EthClient) Close() {
	c.backend.Close()
}

// AddLand sends addLand with the record's eight arguments and waits until the
// transaction is mined.
func (c *EthClient) AddLand(ctx context.Context, auth Auth, rec land.Record) (*Receipt, error) {
	if auth.Key == nil {
		return nil, ErrNoKey
	}
	args, err := PackArgs(c.abi, MethodAddLand, rec.Args())
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(auth.Key, c.chainID)
	if err != nil {
		return nil, xerrors.Errorf("failed to create transactor: %w", err)
	}
	if auth.From != "" && !strings.EqualFold(auth.From, opts.From.Hex()) {
		return nil, xerrors.Errorf("sender %s does not match signing key %s", auth.From, opts.From.Hex())
	}
	opts.Context = ctx
	opts.GasLimit = auth.GasLimit
	if auth.GasPrice != nil {
		opts.GasPrice = new(big.Int).Set(auth.GasPrice)
	}

	tx, err := c.bound.Transact(opts, MethodAddLand, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to send %s: %w", MethodAddLand, err)
	}
	logrus.WithFields(logrus.Fields{
		"tx":   tx.Hash().Hex(),
		"from": opts.From.Hex(),
	}).Debug("Transaction sent")

	mined, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, xerrors.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err)
	}
	receipt := &Receipt{
		TxHash:      mined.TxHash.Hex(),
		BlockNumber: mined.BlockNumber.Uint64(),
		GasUsed:     mined.GasUsed,
		Status:      mined.Status,
		From:        opts.From.Hex(),
	}
	if mined.Status != types.ReceiptStatusSuccessful {
		return receipt, xerrors.Errorf("%w: %s", ErrReverted, receipt.TxHash)
	}
	return receipt, nil
}

func (c *EthClient) IsSeller(ctx context.Context, address string) (bool, error) {
	return c.roleCall(ctx, MethodIsSeller, address)
}

func (c *EthClient) IsBuyer(ctx context.Context, address string) (bool, error) {
	return c.roleCall(ctx, MethodIsBuyer, address)
}

func (c *EthClient) IsLandInspector(ctx context.Context, address string) (bool, error) {
	return c.roleCall(ctx, MethodIsLandInspector, address)
}

func (c *EthClient) roleCall(ctx context.Context, method, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, xerrors.Errorf("invalid address %q", address)
	}
	var out []interface{}
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, common.HexToAddress(address))
	if err != nil {
		return false, xerrors.Errorf("failed to call %s: %w", method, err)
	}
	if len(out) != 1 {
		return false, xerrors.Errorf("%s returned %d values", method, len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, xerrors.Errorf("%s returned %T, want bool", method, out[0])
	}
	return v, nil
}

// PackArgs converts string arguments to the Go types the method's ABI inputs
// expect.
func PackArgs(parsed abi.ABI, method string, values []string) ([]interface{}, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, fmt.Errorf("abi has no method %s", method)
	}
	if len(m.Inputs) != len(values) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", method, len(m.Inputs), len(values))
	}
	out := make([]interface{}, len(values))
	for i, in := range m.Inputs {
		v, err := coerce(in.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, s string) (interface{}, error) {
	switch t.T {
	case abi.StringTy:
		return s, nil
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("%q is negative", s)
		}
		if t.Size > 64 {
			return n, nil
		}
		// go-ethereum packs small integer types from their native Go kinds.
		if t.T == abi.UintTy {
			if n.BitLen() > t.Size {
				return nil, fmt.Errorf("%q overflows %s", s, t.String())
			}
			return reflect.ValueOf(n.Uint64()).Convert(t.GetType()).Interface(), nil
		}
		if !n.IsInt64() || n.BitLen() >= t.Size {
			return nil, fmt.Errorf("%q overflows %s", s, t.String())
		}
		return reflect.ValueOf(n.Int64()).Convert(t.GetType()).Interface(), nil
	case abi.BoolTy:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		return b, nil
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%q is not an address", s)
		}
		return common.HexToAddress(s), nil
	}
	return nil, fmt.Errorf("unsupported abi type %s", t.String())
}
