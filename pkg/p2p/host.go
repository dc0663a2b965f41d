package p2p

import (
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

// newBasicHost creates a libp2p host listening on listenPort. A non-zero
// seed makes the peer id deterministic. insecure disables transport security
// and is only meant for local testing.
func newBasicHost(listenPort int, insecure bool, seed int64) (host.Host, error) {
	var r io.Reader
	if seed == 0 {
		r = rand.Reader
	} else {
		r = mrand.New(mrand.NewSource(seed))
	}

	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, 2048, r)
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", listenPort)),
		libp2p.Identity(priv),
	}
	if insecure {
		opts = append(opts, libp2p.NoSecurity)
	}

	return libp2p.New(opts...)
}

// HostAddress returns the first full multiaddress of h, or "".
func HostAddress(h host.Host) string {
	hostAddr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/p2p/%s", h.ID()))
	if err != nil {
		logrus.Errorf("Failed to create host multiaddress: %v", err)
		return ""
	}

	addrs := h.Addrs()
	if len(addrs) == 0 {
		logrus.Error("Host has no addresses")
		return ""
	}
	return addrs[0].Encapsulate(hostAddr).String()
}

// ParseBootstrapPeers parses peer multiaddresses, skipping blank entries.
// Every address must carry a /p2p/ peer id.
func ParseBootstrapPeers(addrs []string) ([]multiaddr.Multiaddr, error) {
	var out []multiaddr.Multiaddr
	for _, s := range addrs {
		if s == "" {
			continue
		}
		m, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid multiaddr %q: %w", s, err)
		}
		if _, err := peerInfo(m); err != nil {
			return nil, fmt.Errorf("invalid peer address %q: %w", s, err)
		}
		out = append(out, m)
	}
	return out, nil
}
