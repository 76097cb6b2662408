package cvconfig

import (
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// DefaultListenAddr is the consensus listen address
// used when a programmatically supplied address cannot be parsed.
const DefaultListenAddr = "/ip4/127.0.0.1/tcp/26656"

// P2PConfig holds the consensus engine's peer-to-peer settings.
type P2PConfig struct {
	Protocol PubSubProtocol

	ListenAddr      multiaddr.Multiaddr
	PersistentPeers []multiaddr.Multiaddr

	Discovery DiscoveryConfig
}

// HostOptions returns the libp2p options for a host listening on c.ListenAddr.
func (c P2PConfig) HostOptions() []libp2p.Option {
	opts := []libp2p.Option{
		// Validators are expected to be directly dialable.
		libp2p.ForceReachabilityPublic(),
	}
	if c.ListenAddr != nil {
		opts = append(opts, libp2p.ListenAddrs(c.ListenAddr))
	}
	return opts
}

// PersistentPeerInfos groups the persistent peers carrying a /p2p component by peer ID.
// Peers without a peer ID cannot be dialed directly and are not included.
func (c P2PConfig) PersistentPeerInfos() ([]peer.AddrInfo, error) {
	var withID []multiaddr.Multiaddr
	for _, ma := range c.PersistentPeers {
		if _, err := ma.ValueForProtocol(multiaddr.P_P2P); err == nil {
			withID = append(withID, ma)
		}
	}
	if len(withID) == 0 {
		return nil, nil
	}

	infos, err := peer.AddrInfosFromP2pAddrs(withID...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse persistent peers: %w", err)
	}
	return infos, nil
}

func parseListenAddr(s string) multiaddr.Multiaddr {
	ma, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return multiaddr.StringCast(DefaultListenAddr)
	}
	return ma
}

// parsePeers returns a new slice of every entry in peers that parses as a multiaddr.
func parsePeers(peers []string) []multiaddr.Multiaddr {
	out := make([]multiaddr.Multiaddr, 0, len(peers))
	for _, p := range peers {
		ma, err := multiaddr.NewMultiaddr(p)
		if err != nil {
			continue
		}
		out = append(out, ma)
	}
	return out
}
