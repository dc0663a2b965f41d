package p2p

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	ChunkExistProtocol = "/landreg/chunk/exists/1.0.0"
	ChunkDataProtocol  = "/landreg/chunk/data/1.0.0"

	MaxChunkSize = 4 * 1024 * 1024 // 4MB
)

// chunk file names are lowercase sha256 hex
var chunkHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type chunkRequest struct {
	ChunkHash string `json:"chunkHash"`
}

// CheckChunkExists asks peerID whether it holds the chunk.
func (n *Node) CheckChunkExists(ctx context.Context, peerID peer.ID, chunkHash string) (bool, error) {
	s, err := n.Host.NewStream(ctx, peerID, ChunkExistProtocol)
	if err != nil {
		return false, xerrors.Errorf("open stream: %w", err)
	}
	defer s.Close()

	s.SetDeadline(time.Now().Add(n.timeout(n.Config.RequestTimeout)))
	if err := json.NewEncoder(s).Encode(chunkRequest{ChunkHash: chunkHash}); err != nil {
		return false, xerrors.Errorf("encode request: %w", err)
	}
	var res string
	if err := json.NewDecoder(s).Decode(&res); err != nil {
		return false, xerrors.Errorf("decode response: %w", err)
	}
	return res == "true", nil
}

// DownloadChunk reads the chunk from peerID. The data is not verified.
func (n *Node) DownloadChunk(ctx context.Context, peerID peer.ID, chunkHash string) ([]byte, error) {
	s, err := n.Host.NewStream(ctx, peerID, ChunkDataProtocol)
	if err != nil {
		return nil, xerrors.Errorf("open stream: %w", err)
	}
	defer s.Close()

	s.SetDeadline(time.Now().Add(n.timeout(n.Config.DataTimeout)))
	if err := json.NewEncoder(s).Encode(chunkRequest{ChunkHash: chunkHash}); err != nil {
		return nil, xerrors.Errorf("encode request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		return nil, xerrors.Errorf("close write: %w", err)
	}

	data, err := io.ReadAll(&io.LimitedReader{R: s, N: MaxChunkSize + 1})
	if err != nil {
		return nil, xerrors.Errorf("read chunk: %w", err)
	}
	if len(data) > MaxChunkSize {
		return nil, xerrors.New("chunk too large")
	}
	if len(data) == 0 {
		return nil, xerrors.Errorf("peer %s has no chunk %s", peerID, chunkHash)
	}
	return data, nil
}

func (n *Node) readChunkRequest(s network.Stream) (string, bool) {
	s.SetReadDeadline(time.Now().Add(n.timeout(n.Config.RequestTimeout)))
	var req chunkRequest
	if err := json.NewDecoder(io.LimitReader(s, MaxAnnounceMessageSize)).Decode(&req); err != nil {
		logrus.WithError(err).Warn("Invalid chunk request")
		return "", false
	}
	hash := strings.ToLower(strings.TrimSpace(req.ChunkHash))
	if !chunkHashPattern.MatchString(hash) {
		logrus.WithField("chunk", req.ChunkHash).Warn("Malformed chunk hash")
		return "", false
	}
	return hash, true
}

func (n *Node) registerChunkExistHandler() {
	n.Host.SetStreamHandler(ChunkExistProtocol, func(s network.Stream) {
		defer s.Close()
		hash, ok := n.readChunkRequest(s)
		if !ok {
			return
		}
		info, err := os.Stat(n.chunks.ChunkPath(hash))
		resp := "false"
		if err == nil && info.Size() <= MaxChunkSize {
			resp = "true"
		}
		_ = json.NewEncoder(s).Encode(resp)
	})
}

func (n *Node) registerChunkDataHandler() {
	n.Host.SetStreamHandler(ChunkDataProtocol, func(s network.Stream) {
		defer s.Close()
		remote := s.Conn().RemotePeer()
		if !n.limiter.Allow(remote) {
			logrus.WithField("peer", remote).Warn("Chunk request rate limited")
			return
		}
		hash, ok := n.readChunkRequest(s)
		if !ok {
			return
		}
		f, err := os.Open(n.chunks.ChunkPath(hash))
		if err != nil {
			logrus.WithField("chunk", hash).Debug("Chunk not found")
			return
		}
		defer f.Close()

		s.SetWriteDeadline(time.Now().Add(n.timeout(n.Config.DataTimeout)))
		if _, err := io.Copy(s, io.LimitReader(f, MaxChunkSize)); err != nil {
			logrus.WithError(err).Warn("Send chunk failed")
		}
	})
}
