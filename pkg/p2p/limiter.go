package p2p

import (
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/time/rate"
)

// peerLimiter applies a token bucket per remote peer to chunk serving.
type peerLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[peer.ID]*rate.Limiter
}

// newPeerLimiter returns a limiter allowing perSecond requests with the
// given burst. A non-positive rate disables limiting.
func newPeerLimiter(perSecond float64, burst int) *peerLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &peerLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[peer.ID]*rate.Limiter),
	}
}

// Allow reports whether p may make another request now.
func (l *peerLimiter) Allow(p peer.ID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[p]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[p] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
