package contract

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landRegistry/pkg/land"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func sampleRecord() land.Record {
	return land.Record{
		Area:            "1200",
		City:            "Pune",
		State:           "MH",
		Price:           "500000",
		OwnerIdentifier: "PAN123",
		SurveyNumber:    "SRV99",
		DocumentHash:    "Qm123",
		ImageHash:       "Qm456",
	}
}

func TestNewAuthDefaults(t *testing.T) {
	auth := NewAuth(nil, devAddress)
	assert.Equal(t, uint64(2000000), auth.GasLimit)
	assert.Equal(t, 0, auth.GasPrice.Cmp(big.NewInt(5000000000)))
	assert.Equal(t, devAddress, auth.From)
}

func TestPackArgsDefaultABI(t *testing.T) {
	parsed, err := (*Artifact)(nil).ParsedABI()
	require.NoError(t, err)

	args, err := PackArgs(parsed, MethodAddLand, sampleRecord().Args())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"1200", "Pune", "MH", "500000", "PAN123", "SRV99", "Qm123", "Qm456"}, args)

	_, err = parsed.Pack(MethodAddLand, args...)
	require.NoError(t, err)

	_, err = PackArgs(parsed, MethodAddLand, []string{"1"})
	assert.Error(t, err)
	_, err = PackArgs(parsed, "transfer", nil)
	assert.Error(t, err)
}

func TestPackArgsCoercion(t *testing.T) {
	const def = `[{"type":"function","name":"f","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"a","type":"uint256"},
		{"name":"b","type":"uint8"},
		{"name":"c","type":"int64"},
		{"name":"d","type":"bool"},
		{"name":"e","type":"address"},
		{"name":"s","type":"string"}]}]`
	parsed, err := abi.JSON(strings.NewReader(def))
	require.NoError(t, err)

	args, err := PackArgs(parsed, "f", []string{"500000", "7", "-3", "true", devAddress, "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, args[0].(*big.Int).Cmp(big.NewInt(500000)))
	assert.Equal(t, uint8(7), args[1])
	assert.Equal(t, int64(-3), args[2])
	assert.Equal(t, true, args[3])
	assert.Equal(t, common.HexToAddress(devAddress), args[4])
	assert.Equal(t, "x", args[5])

	_, err = parsed.Pack("f", args...)
	require.NoError(t, err)

	bad := [][]string{
		{"PAN123", "7", "-3", "true", devAddress, "x"},
		{"1", "300", "-3", "true", devAddress, "x"},
		{"-1", "7", "-3", "true", devAddress, "x"},
		{"1", "7", "-3", "maybe", devAddress, "x"},
		{"1", "7", "-3", "true", "0x1234", "x"},
	}
	for _, b := range bad {
		_, err := PackArgs(parsed, "f", b)
		assert.Error(t, err, "%v", b)
	}
}

func TestArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Land.json")
	body := `{"contractName":"Land","abi":` + DefaultABI + `,"networks":{"5777":{"address":"0x5FbDB2315678afecb367f032d93F642f64180aa3"}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	art, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "Land", art.ContractName)

	addr, err := art.Address("5777")
	require.NoError(t, err)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", addr.Hex())

	_, err = art.Address("1")
	assert.True(t, errors.Is(err, ErrNotDeployed))

	parsed, err := art.ParsedABI()
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, MethodIsLandInspector)

	override := art.WithAddress("1", devAddress)
	addr, err = override.Address("1")
	require.NoError(t, err)
	assert.Equal(t, devAddress, addr.Hex())
	_, err = art.Address("1")
	assert.Error(t, err, "WithAddress must not mutate the original")

	_, err = LoadArtifact(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLedgerAddLand(t *testing.T) {
	key, err := crypto.HexToECDSA(devKey)
	require.NoError(t, err)

	l := NewLedger()
	receipt, err := l.AddLand(context.Background(), NewAuth(key, devAddress), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, devAddress, receipt.From)
	assert.NotEmpty(t, receipt.TxHash)

	lands := l.Lands()
	require.Len(t, lands, 1)
	assert.Equal(t, sampleRecord(), lands[0].Record)
	assert.Equal(t, [][]string{{"1200", "Pune", "MH", "500000", "PAN123", "SRV99", "Qm123", "Qm456"}}, l.Calls())
}

func TestLedgerFailure(t *testing.T) {
	key, err := crypto.HexToECDSA(devKey)
	require.NoError(t, err)

	l := NewLedger()
	boom := errors.New("out of gas")
	l.SetFailure(boom)
	_, err = l.AddLand(context.Background(), NewAuth(key, ""), sampleRecord())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, l.Lands())
	assert.Len(t, l.Calls(), 1)

	_, err = l.AddLand(context.Background(), NewAuth(key, "0x0000000000000000000000000000000000000001"), sampleRecord())
	assert.Error(t, err)

	_, err = l.AddLand(context.Background(), Auth{}, sampleRecord())
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestLedgerRoles(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Grant(RoleInspector, strings.ToLower(devAddress)))

	ok, err := l.IsLandInspector(ctx, devAddress)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.IsSeller(ctx, devAddress)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.IsBuyer(ctx, devAddress)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.IsSeller(ctx, "nope")
	assert.Error(t, err)
	assert.Error(t, l.Grant(RoleSeller, "nope"))
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"seller":         RoleSeller,
		" Buyer ":        RoleBuyer,
		"inspector":      RoleInspector,
		"land_inspector": RoleInspector,
	} {
		got, err := ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRole("admin")
	assert.Error(t, err)
}

type countingConnector struct {
	calls int
	err   error
	l     *Ledger
}

func (c *countingConnector) Connect(ctx context.Context) (Client, *Network, error) {
	c.calls++
	if c.err != nil {
		return nil, nil, c.err
	}
	return c.l.Connect(ctx)
}

func TestLazyRetriesFailedConnect(t *testing.T) {
	ctx := context.Background()
	conn := &countingConnector{err: errors.New("dial refused"), l: NewLedger()}
	lazy := NewLazy(conn)

	_, err := lazy.IsSeller(ctx, devAddress)
	assert.Error(t, err)

	conn.err = nil
	_, err = lazy.IsSeller(ctx, devAddress)
	require.NoError(t, err)
	_, _, err = lazy.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.calls)
}
