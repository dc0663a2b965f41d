package p2p

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	blacklistSuccessRate = 0.5
	blacklistMinRequests = 10
)

// peerStats 下载统计
type peerStats struct {
	Total       int64
	Succeeded   int64
	LastFailure time.Time
	AvgLatency  time.Duration
	active      int
	blacklisted bool
}

// peerBook tracks chunk download outcomes per provider and limits concurrent
// streams to each of them.
type peerBook struct {
	mu               sync.Mutex
	peers            map[peer.ID]*peerStats
	maxStreams       int
	blacklistTimeout time.Duration
}

func newPeerBook(maxStreams int, blacklistTimeout time.Duration) *peerBook {
	if maxStreams < 1 {
		maxStreams = 1
	}
	return &peerBook{
		peers:            make(map[peer.ID]*peerStats),
		maxStreams:       maxStreams,
		blacklistTimeout: blacklistTimeout,
	}
}

func (b *peerBook) get(p peer.ID) *peerStats {
	st, ok := b.peers[p]
	if !ok {
		st = &peerStats{}
		b.peers[p] = st
	}
	return st
}

// Acquire reserves a stream to p. It fails while p is blacklisted or busy.
func (b *peerBook) Acquire(p peer.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.get(p)
	if st.blacklisted {
		if time.Since(st.LastFailure) <= b.blacklistTimeout {
			return false
		}
		st.blacklisted = false
		st.Total, st.Succeeded = 0, 0
	}
	if st.active >= b.maxStreams {
		return false
	}
	st.active++
	return true
}

// Release returns a stream reservation.
func (b *peerBook) Release(p peer.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.peers[p]; ok && st.active > 0 {
		st.active--
	}
}

func (b *peerBook) RecordSuccess(p peer.ID, latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.get(p)
	st.Total++
	st.Succeeded++
	if st.AvgLatency == 0 {
		st.AvgLatency = latency
	} else {
		st.AvgLatency = (st.AvgLatency*9 + latency) / 10
	}
}

// RecordFailure counts a failed download and blacklists p once its success
// rate drops below half over at least ten requests.
func (b *peerBook) RecordFailure(p peer.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.get(p)
	st.Total++
	st.LastFailure = time.Now()
	if st.Total >= blacklistMinRequests && float64(st.Succeeded)/float64(st.Total) < blacklistSuccessRate {
		st.blacklisted = true
		logrus.Warnf("Peer %s blacklisted: %d/%d downloads succeeded", p, st.Succeeded, st.Total)
	}
}

// Stats returns a copy of p's statistics, or nil.
func (b *peerBook) Stats(p peer.ID) *peerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.peers[p]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

// PeerSelector picks one peer out of a candidate list.
type PeerSelector interface {
	SelectPeer(peers []peer.ID) (peer.ID, error)
}

var errNoPeers = errors.New("no peers available")

// Peer selector names accepted by NewPeerSelector.
const (
	SelectorRandom     = "random"
	SelectorRoundRobin = "round-robin"
)

// NewPeerSelector returns the selector registered under name. An empty name
// selects random.
func NewPeerSelector(name string) (PeerSelector, error) {
	switch name {
	case "", SelectorRandom:
		return &RandomPeerSelector{}, nil
	case SelectorRoundRobin:
		return &RoundRobinPeerSelector{}, nil
	}
	return nil, xerrors.Errorf("unknown peer selector %q (must be %s or %s)", name, SelectorRandom, SelectorRoundRobin)
}

type RandomPeerSelector struct{}

func (s *RandomPeerSelector) SelectPeer(peers []peer.ID) (peer.ID, error) {
	if len(peers) == 0 {
		return "", errNoPeers
	}
	return peers[rand.Intn(len(peers))], nil
}

type RoundRobinPeerSelector struct {
	mu    sync.Mutex
	index int
}

func (s *RoundRobinPeerSelector) SelectPeer(peers []peer.ID) (peer.ID, error) {
	if len(peers) == 0 {
		return "", errNoPeers
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	selected := peers[s.index%len(peers)]
	s.index++
	return selected, nil
}

// selectAvailablePeer picks candidates with the selector until one confirms
// it holds the chunk.
func (n *Node) selectAvailablePeer(ctx context.Context, peers []peer.ID, chunkHash string) (peer.ID, error) {
	available := append([]peer.ID(nil), peers...)
	for len(available) > 0 {
		selected, err := n.Selector.SelectPeer(available)
		if err != nil {
			return "", xerrors.Errorf("failed to select peer: %w", err)
		}
		ok, err := n.CheckChunkExists(ctx, selected, chunkHash)
		if err != nil {
			logrus.Debugf("Peer %s check failed for chunk %s: %v", selected, chunkHash, err)
		}
		if ok {
			return selected, nil
		}
		available = removePeer(available, selected)
	}
	return "", xerrors.Errorf("no available peers found with chunk %s", chunkHash)
}

func removePeer(peers []peer.ID, target peer.ID) []peer.ID {
	out := make([]peer.ID, 0, len(peers))
	for _, p := range peers {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}
