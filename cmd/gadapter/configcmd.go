package main

import (
	"fmt"
	"log/slog"

	"github.com/gordian-engine/gadapter/cv/cvconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newConfigCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "config SUBCOMMAND",

		Short: "Inspect the engine configuration",
	}

	cmd.AddCommand(newConfigShowCmd(log))

	return cmd
}

// nodeIdentity holds the flags identifying the node a config file belongs to.
type nodeIdentity struct {
	chainID, nodeID string
}

func addNodeIdentityFlags(cmd *cobra.Command) *nodeIdentity {
	var ni nodeIdentity
	cmd.Flags().StringVar(&ni.chainID, "chain-id", "", "chain ID")
	cmd.Flags().StringVar(&ni.nodeID, "node-id", "", "node ID, used as the moniker")
	_ = cmd.MarkFlagRequired("chain-id")
	_ = cmd.MarkFlagRequired("node-id")
	return &ni
}

func newConfigShowCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "show CONFIG_FILE",

		Short: "Load a node configuration file and print the resulting engine configuration",

		Args: cobra.ExactArgs(1),
	}

	ni := addNodeIdentityFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := cvconfig.LoadEngineConfigWithLogger(log, args[0], ni.chainID, ni.nodeID)
		if err != nil {
			return err
		}

		b, err := toml.Marshal(newConfigSummary(cfg))
		if err != nil {
			return fmt.Errorf("failed to marshal config summary: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(b)
		return err
	}

	return cmd
}

// configSummary is the printable form of an EngineConfig.
type configSummary struct {
	ChainID string `toml:"chain_id"`
	Moniker string `toml:"moniker"`

	Network struct {
		ListenAddr string   `toml:"listen_addr"`
		Peers      []string `toml:"peers"`
		Discovery  bool     `toml:"discovery"`
	} `toml:"network"`

	Consensus struct {
		ValuePayload    string   `toml:"value_payload"`
		Protocol        string   `toml:"protocol"`
		ListenAddr      string   `toml:"listen_addr"`
		PersistentPeers []string `toml:"persistent_peers"`
	} `toml:"consensus"`

	Metrics struct {
		Enabled    bool   `toml:"enabled"`
		ListenAddr string `toml:"listen_addr"`
	} `toml:"metrics"`

	WAL struct {
		Path        string `toml:"path"`
		MaxFileSize uint64 `toml:"max_file_size"`
	} `toml:"wal"`
}

func newConfigSummary(cfg cvconfig.EngineConfig) configSummary {
	var s configSummary

	s.ChainID = cfg.Network.ChainID
	s.Moniker = cfg.Node.Moniker

	s.Network.ListenAddr = cfg.Network.ListenAddr.String()
	s.Network.Peers = cfg.Network.Peers
	s.Network.Discovery = cfg.Network.DiscoveryEnabled

	p2p := cfg.Node.Consensus.P2P
	s.Consensus.ValuePayload = cfg.Node.Consensus.ValuePayload.String()
	s.Consensus.Protocol = p2p.Protocol.String()
	if p2p.ListenAddr != nil {
		s.Consensus.ListenAddr = p2p.ListenAddr.String()
	}
	for _, ma := range p2p.PersistentPeers {
		s.Consensus.PersistentPeers = append(s.Consensus.PersistentPeers, ma.String())
	}

	s.Metrics.Enabled = cfg.Node.Metrics.Enabled
	s.Metrics.ListenAddr = cfg.Node.Metrics.ListenAddr.String()

	s.WAL.Path = cfg.WAL.Path
	s.WAL.MaxFileSize = cfg.WAL.MaxFileSize

	return s
}
