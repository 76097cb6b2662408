package cvconfig

import (
	"fmt"
	"net/netip"
	"slices"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// NetworkConfig holds the chain-level network settings.
type NetworkConfig struct {
	ChainID string

	// Local socket address derived from the consensus listen address.
	ListenAddr netip.AddrPort

	// Peer addresses as written by the operator.
	Peers []string

	DiscoveryEnabled bool
}

func NewNetworkConfig(chainID string, listenAddr netip.AddrPort) NetworkConfig {
	return NetworkConfig{
		ChainID:    chainID,
		ListenAddr: listenAddr,
	}
}

func (c NetworkConfig) WithPeers(peers []string) NetworkConfig {
	c.Peers = slices.Clone(peers)
	return c
}

func (c NetworkConfig) WithDiscovery(enabled bool) NetworkConfig {
	c.DiscoveryEnabled = enabled
	return c
}

// EngineConfig is the complete configuration handed to the consensus engine at startup.
type EngineConfig struct {
	Node    NodeConfig
	WAL     WALConfig
	Network NetworkConfig

	startHeight    cvconsensus.Height
	hasStartHeight bool
}

// NewEngineConfig returns an EngineConfig with default node and WAL settings,
// with the consensus engine listening over TCP on listenAddr.
func NewEngineConfig(chainID, moniker string, listenAddr netip.AddrPort) EngineConfig {
	return EngineConfig{
		Node:    NewNodeConfig(moniker, tcpMultiaddr(listenAddr), nil),
		WAL:     DefaultWALConfig(),
		Network: NewNetworkConfig(chainID, listenAddr),
	}
}

func tcpMultiaddr(ap netip.AddrPort) string {
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		return fmt.Sprintf("/ip4/%s/tcp/%d", addr, ap.Port())
	}
	return fmt.Sprintf("/ip6/%s/tcp/%d", addr.WithZone(""), ap.Port())
}

func (c EngineConfig) WithWALDir(path string) EngineConfig {
	c.WAL.Path = path
	return c
}

// WithStartHeight sets the height the engine resumes from,
// overriding the height derived from the store.
func (c EngineConfig) WithStartHeight(h cvconsensus.Height) EngineConfig {
	c.startHeight, c.hasStartHeight = h, true
	return c
}

// WithPeers replaces the peer list.
// The network peer strings and the parsed persistent peers are updated together;
// entries that do not parse as multiaddrs only appear in the former.
func (c EngineConfig) WithPeers(peers []string) EngineConfig {
	c.Network = c.Network.WithPeers(peers)
	c.Node.Consensus.P2P.PersistentPeers = parsePeers(peers)
	return c
}

// StartHeight reports the height set through [EngineConfig.WithStartHeight], if any.
func (c EngineConfig) StartHeight() (cvconsensus.Height, bool) {
	return c.startHeight, c.hasStartHeight
}

// RecoveryHeight returns the height the engine should start at,
// given the store's highest decided height as reported by
// [cvstore.ValueStore.MaxDecidedValueHeight].
//
// A configured start height takes precedence.
// Otherwise the engine resumes one past the highest decided height,
// or at height 1 if nothing has been decided.
func (c EngineConfig) RecoveryHeight(maxDecided cvconsensus.Height, ok bool) cvconsensus.Height {
	if c.hasStartHeight {
		return c.startHeight
	}
	if ok {
		return maxDecided + 1
	}
	return 1
}
