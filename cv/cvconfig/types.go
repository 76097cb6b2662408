package cvconfig

import (
	"fmt"
	"log/slog"
	"net/netip"
	"runtime"
	"time"
)

// ValuePayload determines how proposed values travel over the network.
type ValuePayload uint8

const (
	// Only proposal parts are gossiped; the proposal is reassembled from them.
	PartsOnly ValuePayload = iota

	// The full value is sent in the proposal message.
	ProposalOnly

	// Both the proposal and its parts are sent.
	ProposalAndParts
)

func (p ValuePayload) String() string {
	switch p {
	case PartsOnly:
		return "parts-only"
	case ProposalOnly:
		return "proposal-only"
	case ProposalAndParts:
		return "proposal-and-parts"
	default:
		return fmt.Sprintf("ValuePayload(%d)", uint8(p))
	}
}

// PubSubProtocol is the protocol used to disseminate consensus messages.
type PubSubProtocol uint8

const (
	GossipSub PubSubProtocol = iota
	Broadcast
)

func (p PubSubProtocol) String() string {
	switch p {
	case GossipSub:
		return "gossipsub"
	case Broadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("PubSubProtocol(%d)", uint8(p))
	}
}

// DiscoveryConfig controls peer discovery beyond the persistent peers.
type DiscoveryConfig struct {
	Enabled bool

	// Ignored when Enabled is false.
	NumOutboundPeers, NumInboundPeers int
}

func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		NumOutboundPeers: 20,
		NumInboundPeers:  20,
	}
}

// MetricsConfig controls the prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled    bool
	ListenAddr netip.AddrPort
}

// DefaultMetricsAddr is the metrics endpoint of a programmatically constructed node.
var DefaultMetricsAddr = netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), DefaultMetricsPort)

// DefaultMetricsPort is used when a configuration file does not set a metrics port.
const DefaultMetricsPort uint16 = 9000

// RuntimeConfig controls the Go runtime.
type RuntimeConfig struct {
	// When positive, the value to pass to runtime.GOMAXPROCS.
	// Zero leaves the runtime default in place.
	MaxProcs int
}

// Apply sets GOMAXPROCS if MaxProcs is positive,
// returning the previous setting.
func (c RuntimeConfig) Apply() int {
	if c.MaxProcs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return runtime.GOMAXPROCS(c.MaxProcs)
}

// ValueSyncConfig controls how a lagging node fetches decided values from peers.
type ValueSyncConfig struct {
	Enabled bool

	// How often to broadcast this node's status to peers.
	StatusUpdateInterval time.Duration

	// How long to wait for a response to a value request.
	RequestTimeout time.Duration
}

func DefaultValueSyncConfig() ValueSyncConfig {
	return ValueSyncConfig{
		Enabled:              true,
		StatusUpdateInterval: 10 * time.Second,
		RequestTimeout:       10 * time.Second,
	}
}

// ConsensusConfig holds the settings for the consensus engine itself.
type ConsensusConfig struct {
	ValuePayload ValuePayload
	Timeouts     TimeoutConfig
	P2P          P2PConfig
}

// NodeConfig holds everything the consensus node needs to start.
type NodeConfig struct {
	Moniker string

	Consensus ConsensusConfig
	Metrics   MetricsConfig
	Runtime   RuntimeConfig
	Logging   LoggingConfig
	ValueSync ValueSyncConfig
}

// NewNodeConfig returns a NodeConfig with default settings.
//
// If listenAddr is not a valid multiaddr, [DefaultListenAddr] is used instead.
// Entries in peers that are not valid multiaddrs are skipped.
// Discovery is disabled, and metrics are enabled on [DefaultMetricsAddr].
func NewNodeConfig(moniker, listenAddr string, peers []string) NodeConfig {
	return NodeConfig{
		Moniker: moniker,
		Consensus: ConsensusConfig{
			ValuePayload: ProposalAndParts,
			Timeouts:     DefaultTimeoutConfig(),
			P2P: P2PConfig{
				Protocol:        GossipSub,
				ListenAddr:      parseListenAddr(listenAddr),
				PersistentPeers: parsePeers(peers),
				Discovery:       DefaultDiscoveryConfig(),
			},
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: DefaultMetricsAddr,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: PlaintextFormat,
		},
		ValueSync: DefaultValueSyncConfig(),
	}
}

// WALConfig controls the consensus write-ahead log.
type WALConfig struct {
	Path string

	// Size in bytes at which a WAL file is rolled over.
	MaxFileSize uint64

	// Whether to keep rolled-over files instead of removing them.
	RetainAll bool
}

func DefaultWALConfig() WALConfig {
	return WALConfig{
		Path:        "./wal",
		MaxFileSize: 100 * 1024 * 1024,
		RetainAll:   false,
	}
}
