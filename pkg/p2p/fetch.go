package p2p

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// FetchChunk downloads a chunk from a provider and verifies its hash. Up to
// MaxRetries providers are tried.
func (n *Node) FetchChunk(ctx context.Context, chunkHash string) ([]byte, error) {
	want, err := hex.DecodeString(chunkHash)
	if err != nil {
		return nil, xerrors.Errorf("invalid chunk hash %q: %w", chunkHash, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout(n.Config.DataTimeout))
	defer cancel()

	providers, err := n.Providers(ctx, chunkHash)
	if err != nil {
		return nil, xerrors.Errorf("find providers of %s: %w", chunkHash, err)
	}

	var candidates []peer.ID
	for _, ai := range providers {
		if ai.ID == n.Host.ID() {
			continue
		}
		n.Host.Peerstore().AddAddrs(ai.ID, ai.Addrs, peerstore.TempAddrTTL)
		candidates = append(candidates, ai.ID)
	}

	attempts := n.Config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts && len(candidates) > 0; i++ {
		selected, err := n.selectAvailablePeer(ctx, candidates, chunkHash)
		if err != nil {
			break
		}
		candidates = removePeer(candidates, selected)
		if !n.peers.Acquire(selected) {
			continue
		}

		start := time.Now()
		data, err := n.DownloadChunk(ctx, selected, chunkHash)
		n.peers.Release(selected)
		if err == nil {
			sum := sha256.Sum256(data)
			if !bytes.Equal(sum[:], want) {
				err = xerrors.Errorf("chunk %s from %s failed verification", chunkHash, selected)
			}
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"peer": selected, "chunk": chunkHash, "error": err}).Warn("Chunk download failed")
			n.peers.RecordFailure(selected)
			continue
		}

		n.peers.RecordSuccess(selected, time.Since(start))
		logrus.WithFields(logrus.Fields{"peer": selected, "chunk": chunkHash, "bytes": len(data)}).Debug("Chunk downloaded")
		return data, nil
	}
	return nil, xerrors.Errorf("no provider served chunk %s", chunkHash)
}
