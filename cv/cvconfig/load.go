package cvconfig

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/multiformats/go-multiaddr"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the subset of the configuration document the loader reads.
// Pointers distinguish absent fields from empty ones.
type fileConfig struct {
	Consensus *struct {
		P2P *struct {
			ListenAddr      *string `toml:"listen_addr"`
			PersistentPeers *string `toml:"persistent_peers"`
		} `toml:"p2p"`
	} `toml:"consensus"`

	Metrics *struct {
		ListenAddr *string `toml:"listen_addr"`
	} `toml:"metrics"`
}

// LoadEngineConfig reads the TOML file at path and returns the resulting EngineConfig.
// See [LoadEngineConfigWithLogger].
func LoadEngineConfig(path, chainID, nodeID string) (EngineConfig, error) {
	return LoadEngineConfigWithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), path, chainID, nodeID)
}

// LoadEngineConfigWithLogger reads the TOML file at path and returns the resulting EngineConfig,
// with nodeID as the moniker.
//
// The consensus.p2p.listen_addr field is required and must be a multiaddr
// with a tcp or udp port; the network listen address is 127.0.0.1 on that port.
// The optional consensus.p2p.persistent_peers field is a comma-separated list.
// The optional metrics.listen_addr field supplies the metrics port
// after its last colon, defaulting to [DefaultMetricsPort];
// metrics listen on all interfaces.
//
// Any failure is reported as a [*ConfigError].
func LoadEngineConfigWithLogger(log *slog.Logger, path, chainID, nodeID string) (EngineConfig, error) {
	log.Info("Reading config file", "path", path)

	b, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, &ConfigError{Path: path, Err: err}
	}
	log.Info("Read config file", "path", path, "size", len(b))

	var fc fileConfig
	if err := toml.NewDecoder(bytes.NewReader(b)).Decode(&fc); err != nil {
		return EngineConfig{}, &ConfigError{Path: path, Err: fmt.Errorf("failed to parse TOML: %w", err)}
	}

	if fc.Consensus == nil {
		return EngineConfig{}, &ConfigError{Path: path, Field: "consensus", Err: ErrMissingField}
	}
	if fc.Consensus.P2P == nil {
		return EngineConfig{}, &ConfigError{Path: path, Field: "consensus.p2p", Err: ErrMissingField}
	}
	p2p := fc.Consensus.P2P
	if p2p.ListenAddr == nil {
		return EngineConfig{}, &ConfigError{Path: path, Field: "consensus.p2p.listen_addr", Err: ErrMissingField}
	}

	listenAddr := *p2p.ListenAddr
	consensusPort, err := multiaddrPort(listenAddr)
	if err != nil {
		return EngineConfig{}, &ConfigError{Path: path, Field: "consensus.p2p.listen_addr", Err: err}
	}

	var peers []string
	if p2p.PersistentPeers != nil {
		peers = splitPeers(*p2p.PersistentPeers)
	}

	metricsPort := DefaultMetricsPort
	if fc.Metrics != nil && fc.Metrics.ListenAddr != nil && *fc.Metrics.ListenAddr != "" {
		metricsPort, err = portAfterLastColon(*fc.Metrics.ListenAddr)
		if err != nil {
			return EngineConfig{}, &ConfigError{Path: path, Field: "metrics.listen_addr", Err: err}
		}
	}

	node := NewNodeConfig(nodeID, listenAddr, peers)
	node.Metrics.ListenAddr = netip.AddrPortFrom(netip.IPv4Unspecified(), metricsPort)

	cfg := NewEngineConfig(
		chainID, nodeID,
		netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), consensusPort),
	)
	cfg.Node = node
	cfg.Network = cfg.Network.WithPeers(peers)

	log.Debug(
		"Loaded engine config",
		"listen_addr", listenAddr,
		"n_peers", len(peers),
		"metrics_port", metricsPort,
	)

	return cfg, nil
}

// splitPeers splits a comma-separated peer list,
// trimming whitespace and dropping empty entries.
func splitPeers(s string) []string {
	var peers []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

// multiaddrPort returns the tcp or udp port of the multiaddr s.
func multiaddrPort(s string) (uint16, error) {
	ma, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return 0, fmt.Errorf("invalid multiaddr %q: %w", s, err)
	}

	for _, proto := range []int{multiaddr.P_TCP, multiaddr.P_UDP} {
		v, err := ma.ValueForProtocol(proto)
		if err != nil {
			continue
		}
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid port in %q: %w", s, err)
		}
		return uint16(port), nil
	}

	return 0, fmt.Errorf("multiaddr %q has no tcp or udp component", s)
}

func portAfterLastColon(s string) (uint16, error) {
	i := strings.LastIndexByte(s, ':')
	port, err := strconv.ParseUint(s[i+1:], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return uint16(port), nil
}
