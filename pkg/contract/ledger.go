package contract

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"landRegistry/pkg/land"
)

// Role is a registry role an address can hold.
type Role string

const (
	RoleSeller    Role = "seller"
	RoleBuyer     Role = "buyer"
	RoleInspector Role = "inspector"
)

// ParseRole accepts the role names used in configuration.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSeller:
		return RoleSeller, nil
	case RoleBuyer:
		return RoleBuyer, nil
	case RoleInspector, "landinspector", "land_inspector":
		return RoleInspector, nil
	}
	return "", xerrors.Errorf("unknown role %q", s)
}

// StoredLand is a record accepted by the ledger.
type StoredLand struct {
	ID     uint64      `json:"id"`
	Owner  string      `json:"owner"`
	Record land.Record `json:"record"`
	TxHash string      `json:"txHash"`
	Block  uint64      `json:"block"`
}

// Ledger is an in-process contract. Each accepted call is one block.
type Ledger struct {
	address string

	mu    sync.Mutex
	roles map[Role]map[string]bool
	lands []StoredLand
	calls [][]string
	fail  error
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		address: crypto.Keccak256Hash([]byte("landRegistry/ledger")).Hex()[:42],
		roles: map[Role]map[string]bool{
			RoleSeller:    {},
			RoleBuyer:     {},
			RoleInspector: {},
		},
	}
}

// Connect implements Connector.
func (l *Ledger) Connect(context.Context) (Client, *Network, error) {
	return l, &Network{ID: "memory", ChainID: "0", ContractAddress: common.HexToAddress(l.address).Hex()}, nil
}

// Grant gives address the role.
func (l *Ledger) Grant(role Role, address string) error {
	if !common.IsHexAddress(address) {
		return xerrors.Errorf("invalid address %q", address)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.roles[role]
	if !ok {
		return xerrors.Errorf("unknown role %q", role)
	}
	set[strings.ToLower(common.HexToAddress(address).Hex())] = true
	return nil
}

// SetFailure makes every following AddLand fail with err. A nil err clears it.
func (l *Ledger) SetFailure(err error) {
	l.mu.Lock()
	l.fail = err
	l.mu.Unlock()
}

func (l *Ledger) AddLand(ctx context.Context, auth Auth, rec land.Record) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := auth.From
	if auth.Key != nil {
		signer := crypto.PubkeyToAddress(auth.Key.PublicKey).Hex()
		if from != "" && !strings.EqualFold(from, signer) {
			return nil, xerrors.Errorf("sender %s does not match signing key %s", from, signer)
		}
		from = signer
	}
	if from == "" {
		return nil, ErrNoKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	args := rec.Args()
	l.calls = append(l.calls, args)
	if l.fail != nil {
		return nil, l.fail
	}

	id := uint64(len(l.lands) + 1)
	hash := crypto.Keccak256Hash([]byte(strings.Join(append(args, from, strconv.FormatUint(id, 10)), "\x00")))
	stored := StoredLand{ID: id, Owner: from, Record: rec, TxHash: hash.Hex(), Block: id}
	l.lands = append(l.lands, stored)

	logrus.WithFields(logrus.Fields{
		"id":    id,
		"owner": from,
		"tx":    stored.TxHash,
	}).Debug("Ledger accepted land")

	return &Receipt{
		TxHash:      stored.TxHash,
		BlockNumber: stored.Block,
		GasUsed:     auth.GasLimit / 4,
		Status:      1,
		From:        from,
	}, nil
}

func (l *Ledger) IsSeller(ctx context.Context, address string) (bool, error) {
	return l.has(ctx, RoleSeller, address)
}

func (l *Ledger) IsBuyer(ctx context.Context, address string) (bool, error) {
	return l.has(ctx, RoleBuyer, address)
}

func (l *Ledger) IsLandInspector(ctx context.Context, address string) (bool, error) {
	return l.has(ctx, RoleInspector, address)
}

func (l *Ledger) has(ctx context.Context, role Role, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !common.IsHexAddress(address) {
		return false, xerrors.Errorf("invalid address %q", address)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.roles[role][strings.ToLower(common.HexToAddress(address).Hex())], nil
}

// Lands returns the accepted records in order.
func (l *Ledger) Lands() []StoredLand {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StoredLand(nil), l.lands...)
}

// Calls returns the argument lists of every AddLand attempt, including
// failed ones.
func (l *Ledger) Calls() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}
