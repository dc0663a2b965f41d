package p2p

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	record "github.com/libp2p/go-libp2p-record"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"landRegistry/pkg/docstore"
)

const (
	AnnounceProtocol = "/landreg/announce/1.0.0"
	LookupProtocol   = "/landreg/lookup/1.0.0"

	MaxAnnounceMessageSize = 4096
	closestPeersTimeout    = 3 * time.Second
)

type announceMsg struct {
	Key      string        `json:"key"`
	PeerInfo peer.AddrInfo `json:"peer_info"`
}

type lookupRequest struct {
	Key string `json:"key"`
}

type lookupResponse struct {
	Providers []peer.AddrInfo `json:"providers"`
}

// manifestValidator accepts only manifests whose leaves hash to the CID in
// the record key.
type manifestValidator struct{}

var _ record.Validator = manifestValidator{}

func (manifestValidator) Validate(key string, value []byte) error {
	_, id, err := record.SplitKey(key)
	if err != nil {
		return err
	}
	m, err := docstore.DecodeManifest(value)
	if err != nil {
		return err
	}
	if m.CID != id {
		return fmt.Errorf("manifest cid %s stored under %s", m.CID, id)
	}
	return nil
}

func (manifestValidator) Select(_ string, values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("no values")
	}
	return 0, nil
}

func peerInfo(m multiaddr.Multiaddr) (*peer.AddrInfo, error) {
	return peer.AddrInfoFromP2pAddr(m)
}

// newDHT starts a server-mode DHT and connects to the bootstrap peers.
func newDHT(ctx context.Context, h host.Host, cfg Config) (*dht.IpfsDHT, error) {
	opts := []dht.Option{
		dht.ProtocolPrefix(protocol.ID(cfg.ProtocolPrefix)),
		dht.NamespacedValidator(cfg.NameSpace, manifestValidator{}),
		dht.Mode(dht.ModeServer),
	}
	if !cfg.EnableAutoRefresh {
		opts = append(opts, dht.DisableAutoRefresh())
	}
	logrus.Infoln("Starting DHT node. MultiAddr: ", HostAddress(h))

	kdht, err := dht.New(ctx, h, opts...)
	if err != nil {
		return nil, err
	}
	if err = kdht.Bootstrap(ctx); err != nil {
		kdht.Close()
		return nil, err
	}

	if len(cfg.BootstrapPeers) == 0 {
		return kdht, nil
	}

	connected := 0
	for _, addr := range cfg.BootstrapPeers {
		info, err := peerInfo(addr)
		if err != nil {
			logrus.Warnf("Invalid bootstrap peer address %q: %v", addr, err)
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			logrus.Warnf("Error while connecting to bootstrap node %q: %v", info, err)
			continue
		}
		connected++
		if _, err := kdht.RoutingTable().TryAddPeer(info.ID, true, true); err != nil {
			logrus.Warnf("Failed to add peer %q to routing table: %v", info.ID, err)
		}
		logrus.Infof("Connection established with bootstrap node: %q", info)
	}

	if connected == 0 {
		kdht.Close()
		return nil, fmt.Errorf("failed to connect to any bootstrap nodes (attempted %d)", len(cfg.BootstrapPeers))
	}
	logrus.Infof("Connected to %d/%d bootstrap nodes", connected, len(cfg.BootstrapPeers))
	return kdht, nil
}

func (n *Node) recordKey(key string) string {
	return "/" + n.Config.NameSpace + "/" + key
}

// PublishManifest stores a document manifest in the DHT under its CID.
func (n *Node) PublishManifest(ctx context.Context, cid string, manifest []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout(n.Config.DHTTimeout))
	defer cancel()
	if err := n.DHT.PutValue(ctx, n.recordKey(cid), manifest); err != nil {
		return xerrors.Errorf("failed to publish manifest %s: %w", cid, err)
	}
	logrus.WithField("cid", cid).Info("Manifest published")
	return nil
}

// FetchManifest reads a document manifest from the DHT.
func (n *Node) FetchManifest(ctx context.Context, cid string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout(n.Config.DHTTimeout))
	defer cancel()
	value, err := n.DHT.GetValue(ctx, n.recordKey(cid))
	if err != nil {
		return nil, xerrors.Errorf("failed to fetch manifest %s: %w", cid, err)
	}
	return value, nil
}

func (n *Node) self() peer.AddrInfo {
	return peer.AddrInfo{ID: n.Host.ID(), Addrs: n.Host.Addrs()}
}

func (n *Node) closestPeers(ctx context.Context, key string) []peer.ID {
	ctx, cancel := context.WithTimeout(ctx, closestPeersTimeout)
	defer cancel()

	result := make(chan []peer.ID, 1)
	go func() {
		ps, err := n.DHT.GetClosestPeers(ctx, key)
		if err != nil {
			logrus.Debugf("GetClosestPeers failed: %v", err)
		}
		result <- ps
	}()

	select {
	case ps := <-result:
		return ps
	case <-ctx.Done():
		logrus.Warnf("Get closest peers timed out after %s", closestPeersTimeout)
		return nil
	}
}

// Announce records this node as a provider of key locally and tells the
// closest peers about it. It succeeds when at least the local record was
// written.
func (n *Node) Announce(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	if err := n.DHT.ProviderStore().AddProvider(ctx, []byte(key), n.self()); err != nil {
		return xerrors.Errorf("failed to add self as provider: %w", err)
	}

	peers := n.closestPeers(ctx, key)
	if len(peers) == 0 {
		logrus.WithField("key", key).Debug("No peers to announce to")
		return nil
	}

	data, err := json.Marshal(announceMsg{Key: key, PeerInfo: n.self()})
	if err != nil {
		return xerrors.Errorf("failed to marshal announce message: %w", err)
	}
	data = append(data, '\n')

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, p := range peers {
		if p == n.Host.ID() {
			continue
		}
		wg.Add(1)
		go func(peerID peer.ID) {
			defer wg.Done()
			peerCtx, cancel := context.WithTimeout(ctx, n.timeout(n.Config.RequestTimeout))
			defer cancel()

			s, err := n.Host.NewStream(peerCtx, peerID, AnnounceProtocol)
			if err != nil {
				logrus.WithFields(logrus.Fields{"peer": peerID, "error": err}).Debug("Failed to open announce stream")
				return
			}
			defer s.Close()

			s.SetWriteDeadline(time.Now().Add(n.timeout(n.Config.RequestTimeout)))
			if _, err := s.Write(data); err != nil {
				logrus.WithFields(logrus.Fields{"peer": peerID, "error": err}).Debug("Failed to write announce message")
				return
			}
			mu.Lock()
			sent++
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	logrus.WithFields(logrus.Fields{"key": key, "peers": sent}).Debug("Announced")
	return nil
}

func (n *Node) registerAnnounceHandler() {
	n.Host.SetStreamHandler(AnnounceProtocol, func(s network.Stream) {
		defer s.Close()
		if n.ctx.Err() != nil {
			return
		}
		remote := s.Conn().RemotePeer()

		s.SetReadDeadline(time.Now().Add(n.timeout(n.Config.RequestTimeout)))
		line, err := bufio.NewReader(io.LimitReader(s, MaxAnnounceMessageSize)).ReadBytes('\n')
		if err != nil {
			logrus.WithFields(logrus.Fields{"remotePeer": remote, "error": err}).Warn("Failed to read announce message")
			return
		}

		var msg announceMsg
		if err := json.Unmarshal(bytes.TrimSpace(line), &msg); err != nil {
			logrus.WithFields(logrus.Fields{"remotePeer": remote, "error": err}).Warn("Invalid announce message")
			return
		}
		if strings.TrimSpace(msg.Key) == "" {
			logrus.WithField("remotePeer", remote).Warn("Received empty announce key")
			return
		}
		// a peer may only announce itself
		if msg.PeerInfo.ID != remote {
			logrus.WithField("remotePeer", remote).Warn("Announce for another peer rejected")
			return
		}

		if err := n.DHT.ProviderStore().AddProvider(n.ctx, []byte(msg.Key), msg.PeerInfo); err != nil {
			logrus.WithFields(logrus.Fields{"key": msg.Key, "error": err}).Error("Failed to add provider")
			return
		}
		logrus.WithFields(logrus.Fields{"key": msg.Key, "provider": remote}).Debug("Provider added")
	})
}

// Providers returns providers of key known locally or reported by the
// closest peers.
func (n *Node) Providers(ctx context.Context, key string) ([]peer.AddrInfo, error) {
	local, err := n.DHT.ProviderStore().GetProviders(ctx, []byte(key))
	if err != nil {
		logrus.WithError(err).Debug("Local provider lookup failed")
	}
	remote, err := n.Lookup(ctx, key)
	if err != nil && len(local) == 0 {
		return nil, err
	}

	seen := make(map[peer.ID]bool)
	var out []peer.AddrInfo
	for _, ai := range append(local, remote...) {
		if seen[ai.ID] {
			continue
		}
		seen[ai.ID] = true
		out = append(out, ai)
	}
	return out, nil
}

// Lookup asks each of the closest peers for providers of key and returns
// the first non-empty answer.
func (n *Node) Lookup(ctx context.Context, key string) ([]peer.AddrInfo, error) {
	peers := n.closestPeers(ctx, key)
	if len(peers) == 0 {
		return nil, xerrors.Errorf("no peers to ask for %s", key)
	}

	reqBytes, err := json.Marshal(lookupRequest{Key: key})
	if err != nil {
		return nil, xerrors.Errorf("marshal request failed: %w", err)
	}
	reqBytes = append(reqBytes, '\n')

	lookupCtx, cancel := context.WithTimeout(ctx, n.timeout(n.Config.RequestTimeout))
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan []peer.AddrInfo, 1)
	for _, p := range peers {
		if p == n.Host.ID() {
			continue
		}
		wg.Add(1)
		go func(peerID peer.ID) {
			defer wg.Done()
			s, err := n.Host.NewStream(lookupCtx, peerID, LookupProtocol)
			if err != nil {
				logrus.WithFields(logrus.Fields{"peer": peerID, "err": err}).Debug("Open lookup stream failed")
				return
			}
			defer s.Close()

			deadline := time.Now().Add(n.timeout(n.Config.RequestTimeout))
			s.SetWriteDeadline(deadline)
			s.SetReadDeadline(deadline)

			if _, err := s.Write(reqBytes); err != nil {
				return
			}
			line, err := bufio.NewReader(s).ReadBytes('\n')
			if err != nil {
				return
			}
			var resp lookupResponse
			if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
				logrus.WithFields(logrus.Fields{"peer": peerID, "err": err}).Warn("Invalid lookup response")
				return
			}
			if len(resp.Providers) > 0 {
				select {
				case results <- resp.Providers:
				default:
				}
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case providers := <-results:
		return providers, nil
	case <-done:
		select {
		case providers := <-results:
			return providers, nil
		default:
		}
		return nil, xerrors.Errorf("no providers found for %s", key)
	case <-lookupCtx.Done():
		return nil, xerrors.Errorf("lookup %s: %w", key, lookupCtx.Err())
	}
}

func (n *Node) registerLookupHandler() {
	n.Host.SetStreamHandler(LookupProtocol, func(s network.Stream) {
		defer s.Close()
		if n.ctx.Err() != nil {
			return
		}

		s.SetReadDeadline(time.Now().Add(n.timeout(n.Config.RequestTimeout)))
		line, err := bufio.NewReader(io.LimitReader(s, MaxAnnounceMessageSize)).ReadBytes('\n')
		if err != nil {
			logrus.WithError(err).Warn("Failed to read lookup request")
			return
		}
		var req lookupRequest
		if err := json.Unmarshal(bytes.TrimSpace(line), &req); err != nil {
			logrus.WithError(err).Warn("Invalid lookup request")
			return
		}

		providers, err := n.DHT.ProviderStore().GetProviders(n.ctx, []byte(req.Key))
		if err != nil {
			logrus.WithError(err).Error("Provider lookup failed")
			return
		}
		respBytes, err := json.Marshal(lookupResponse{Providers: providers})
		if err != nil {
			return
		}
		respBytes = append(respBytes, '\n')

		s.SetWriteDeadline(time.Now().Add(n.timeout(n.Config.RequestTimeout)))
		if _, err := s.Write(respBytes); err != nil {
			logrus.WithError(err).Warn("Failed to write lookup response")
		}
	})
}
