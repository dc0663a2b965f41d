package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landRegistry/pkg/config"
	"landRegistry/pkg/contract"
	"landRegistry/pkg/land"
	"landRegistry/pkg/registry"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	cfg.Storage.ChunkPath = filepath.Join(dir, "chunks")
	cfg.Storage.ManifestPath = filepath.Join(dir, "manifests")
	cfg.Vault.Path = filepath.Join(dir, "vault.json")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Chain.Backend = config.BackendMemory
	cfg.Chain.Roles = map[string]string{strings.ToLower(devAddress): "seller"}
	return cfg
}

func TestWireLoginAndRegister(t *testing.T) {
	ctx := context.Background()
	w, err := NewWire(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer w.Close()
	require.NotNil(t, w.Ledger)
	assert.Nil(t, w.Node)

	rec := &registry.Recorder{}
	login, err := w.NewAuthenticator(rec, rec).Login(ctx, devKey)
	require.NoError(t, err)
	assert.Equal(t, []contract.Role{contract.RoleSeller}, login.Roles)
	assert.Equal(t, registry.RouteUserDashboard, rec.Last())

	form := w.NewRegistrationForm(rec)
	for name, v := range map[string]string{
		land.FieldArea: "1200", land.FieldCity: "Pune", land.FieldState: "MH",
		land.FieldPrice: "500000", land.FieldPID: "PAN123", land.FieldSurvey: "SRV99",
	} {
		require.NoError(t, form.Set(name, v))
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	doc := form.Document.Select(wctx, "deed.pdf", strings.NewReader("sale deed"), 9)
	img := form.Image.Select(wctx, "plot.png", strings.NewReader("plot image"), 10)
	docHash, err := doc.Wait(wctx)
	require.NoError(t, err)
	imgHash, err := img.Wait(wctx)
	require.NoError(t, err)

	receipt, err := form.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, devAddress, receipt.From)

	lands := w.Ledger.Lands()
	require.Len(t, lands, 1)
	assert.Equal(t, docHash, lands[0].Record.DocumentHash)
	assert.Equal(t, imgHash, lands[0].Record.ImageHash)

	var out bytes.Buffer
	require.NoError(t, w.Open(ctx, docHash, &out))
	assert.Equal(t, "sale deed", out.String())

	subs, err := w.Journal.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestNewConnectorEthereumMissingArtifact(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Chain.Backend = config.BackendEthereum
	cfg.Chain.ArtifactPath = filepath.Join(t.TempDir(), "Land.json")

	_, _, err := NewConnector(cfg)
	assert.Error(t, err)

	cfg.Chain.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	conn, ledger, err := NewConnector(cfg)
	require.NoError(t, err)
	assert.Nil(t, ledger)
	assert.IsType(t, &contract.EthConnector{}, conn)
}

func TestSetupLogging(t *testing.T) {
	SetupLogging(config.LoggingConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	SetupLogging(config.LoggingConfig{Level: "nope", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
