// Package app 根据配置组装存储、网络节点、合约客户端和表单
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/big"
	"os"

	"github.com/sirupsen/logrus"

	"landRegistry/pkg/config"
	"landRegistry/pkg/contract"
	"landRegistry/pkg/credential"
	"landRegistry/pkg/docstore"
	"landRegistry/pkg/journal"
	"landRegistry/pkg/p2p"
	"landRegistry/pkg/registry"
	"landRegistry/pkg/upload"
)

// Wire bundles all stores, services and clients of one process.
type Wire struct {
	Config   *config.Config
	Store    *docstore.Store
	Node     *p2p.Node
	Uploader *upload.Uploader
	Vault    *credential.Vault
	Journal  *journal.Journal
	Contract *contract.Lazy
	// Ledger is set for the memory backend.
	Ledger *contract.Ledger
}

// NewWire constructs the dependency graph from cfg. The p2p node is started
// when cfg.Network.Enabled is set.
func NewWire(ctx context.Context, cfg *config.Config) (*Wire, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := docstore.New(docstore.Options{
		ChunkPath:    cfg.Storage.ChunkPath,
		ManifestPath: cfg.Storage.ManifestPath,
		BlockSize:    int(cfg.Storage.BlockSize),
	})
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	j.SetPendingTimeout(cfg.PendingTimeout())

	connector, ledger, err := NewConnector(cfg)
	if err != nil {
		j.Close()
		return nil, err
	}

	w := &Wire{
		Config:   cfg,
		Store:    store,
		Vault:    credential.NewVault(cfg.Vault.Path, cfg.Vault.Passphrase),
		Journal:  j,
		Contract: contract.NewLazy(connector),
		Ledger:   ledger,
	}

	if cfg.Network.Enabled {
		nodeCfg, err := cfg.ToNodeConfig()
		if err != nil {
			j.Close()
			return nil, err
		}
		node, err := p2p.NewNode(ctx, nodeCfg, store)
		if err != nil {
			j.Close()
			return nil, fmt.Errorf("failed to start p2p node: %w", err)
		}
		store.SetNetwork(node, node)
		w.Node = node
	}

	w.Uploader = upload.NewUploader(&publishingStorage{wire: w})
	w.Uploader.SetRetention(cfg.SessionRetention())
	return w, nil
}

// NewConnector returns the contract connector for cfg.Chain. The ledger is
// non-nil for the memory backend.
func NewConnector(cfg *config.Config) (contract.Connector, *contract.Ledger, error) {
	switch cfg.Chain.Backend {
	case config.BackendMemory:
		ledger := contract.NewLedger()
		for addr, name := range cfg.Chain.Roles {
			role, err := contract.ParseRole(name)
			if err != nil {
				return nil, nil, err
			}
			if err := ledger.Grant(role, addr); err != nil {
				return nil, nil, err
			}
		}
		return ledger, ledger, nil
	case config.BackendEthereum:
		var art *contract.Artifact
		if cfg.Chain.ArtifactPath != "" {
			a, err := contract.LoadArtifact(cfg.Chain.ArtifactPath)
			switch {
			case err == nil:
				art = a
			case errors.Is(err, fs.ErrNotExist) && cfg.Chain.ContractAddress != "":
				logrus.Warnf("Artifact %s not found, using configured contract address", cfg.Chain.ArtifactPath)
			default:
				return nil, nil, err
			}
		}
		return &contract.EthConnector{
			RPCURL:   cfg.Chain.RPCURL,
			Artifact: art,
			Address:  cfg.Chain.ContractAddress,
		}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown chain backend %q", cfg.Chain.Backend)
}

// NewRegistrationForm returns a land registration form bound to this wire.
func (w *Wire) NewRegistrationForm(nav registry.Navigator) *registry.RegistrationForm {
	return registry.NewRegistrationForm(registry.FormDeps{
		Uploader:  w.Uploader,
		Client:    w.Contract,
		Keys:      w.Vault,
		Journal:   w.Journal,
		Navigator: nav,
		GasLimit:  w.Config.Chain.GasLimit,
		GasPrice:  big.NewInt(w.Config.Chain.GasPrice),
	})
}

// NewAuthenticator returns a login form bound to this wire.
func (w *Wire) NewAuthenticator(nav registry.Navigator, alert registry.Alerter) *registry.Authenticator {
	return registry.NewAuthenticator(w.Contract, w.Vault, nav, alert)
}

// Document returns the manifest for cid, fetching it from the network when
// it is not stored locally.
func (w *Wire) Document(ctx context.Context, cid string) (*docstore.Manifest, error) {
	m, err := w.Store.Manifest(ctx, cid)
	if err == nil || !errors.Is(err, docstore.ErrNotFound) || w.Node == nil {
		return m, err
	}
	raw, ferr := w.Node.FetchManifest(ctx, cid)
	if ferr != nil {
		logrus.WithError(ferr).Debug("Manifest not found on the network")
		return nil, err
	}
	return w.Store.ImportManifest(raw)
}

// Open writes the document content to out.
func (w *Wire) Open(ctx context.Context, cid string, out io.Writer) error {
	if _, err := w.Document(ctx, cid); err != nil {
		return err
	}
	return w.Store.Open(ctx, cid, out)
}

// Close releases the journal and stops the node.
func (w *Wire) Close() error {
	var errs []error
	if w.Node != nil {
		errs = append(errs, w.Node.Shutdown())
	}
	errs = append(errs, w.Journal.Close())
	return errors.Join(errs...)
}

// publishingStorage stores uploads locally and publishes their manifests
// when a node is running.
type publishingStorage struct {
	wire *Wire
}

func (p *publishingStorage) Put(ctx context.Context, name string, r io.Reader, size int64, progress docstore.ProgressFunc) (*docstore.Manifest, error) {
	m, err := p.wire.Store.Put(ctx, name, r, size, progress)
	if err != nil || p.wire.Node == nil {
		return m, err
	}
	raw, err := p.wire.Store.ManifestBytes(m.CID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read manifest for publication")
		return m, nil
	}
	if err := p.wire.Node.PublishManifest(ctx, m.CID, raw); err != nil {
		logrus.WithError(err).Warn("Failed to publish manifest")
	}
	return m, nil
}

// LoadConfig loads the configuration file at path, or the first one found on
// the default search path, and applies its logging settings.
func LoadConfig(path string) (*config.Config, error) {
	file := config.GetConfigPath(path)
	cfg, err := config.Load(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	SetupLogging(cfg.Logging)
	if file != "" {
		logrus.Debugf("Loaded configuration from %s", file)
	}
	return cfg, nil
}

// SetupLogging 配置日志系统
func SetupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using 'info'", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	logrus.SetOutput(os.Stderr)
}
