package cvconfig_test

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/gordian-engine/gadapter/cv/cvconfig"
	"github.com/gordian-engine/gadapter/internal/gtest"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadEngineConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[consensus.p2p]
listen_addr = "/ip4/127.0.0.1/tcp/26657"
persistent_peers = "/ip4/10.0.0.1/tcp/26656, /ip4/10.0.0.2/tcp/26656,,"
`)

	cfg, err := cvconfig.LoadEngineConfigWithLogger(gtest.NewLogger(t), path, "test-chain", "node0")
	require.NoError(t, err)

	require.Equal(t, "test-chain", cfg.Network.ChainID)
	require.Equal(t, "node0", cfg.Node.Moniker)
	require.Equal(t, netip.MustParseAddrPort("127.0.0.1:26657"), cfg.Network.ListenAddr)
	require.Equal(t, []string{"/ip4/10.0.0.1/tcp/26656", "/ip4/10.0.0.2/tcp/26656"}, cfg.Network.Peers)

	p2p := cfg.Node.Consensus.P2P
	require.Equal(t, "/ip4/127.0.0.1/tcp/26657", p2p.ListenAddr.String())
	require.Len(t, p2p.PersistentPeers, 2)
	require.Equal(t, "/ip4/10.0.0.2/tcp/26656", p2p.PersistentPeers[1].String())

	require.Equal(t, netip.MustParseAddrPort("0.0.0.0:9000"), cfg.Node.Metrics.ListenAddr)
	require.Equal(t, cvconfig.DefaultWALConfig(), cfg.WAL)

	_, ok := cfg.StartHeight()
	require.False(t, ok)
}

func TestLoadEngineConfig_metricsPort(t *testing.T) {
	t.Parallel()

	t.Run("custom", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `
[consensus.p2p]
listen_addr = "/ip4/127.0.0.1/tcp/26657"

[metrics]
listen_addr = "127.0.0.1:9100"
`)
		cfg, err := cvconfig.LoadEngineConfig(path, "c", "n")
		require.NoError(t, err)
		require.Equal(t, netip.MustParseAddrPort("0.0.0.0:9100"), cfg.Node.Metrics.ListenAddr)
	})

	t.Run("empty is default", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `
[consensus.p2p]
listen_addr = "/ip4/127.0.0.1/tcp/26657"

[metrics]
listen_addr = ""
`)
		cfg, err := cvconfig.LoadEngineConfig(path, "c", "n")
		require.NoError(t, err)
		require.Equal(t, cvconfig.DefaultMetricsPort, cfg.Node.Metrics.ListenAddr.Port())
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `
[consensus.p2p]
listen_addr = "/ip4/127.0.0.1/tcp/26657"

[metrics]
listen_addr = "127.0.0.1:http"
`)
		_, err := cvconfig.LoadEngineConfig(path, "c", "n")

		var cfgErr *cvconfig.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "metrics.listen_addr", cfgErr.Field)
		require.Equal(t, path, cfgErr.Path)
	})
}

func TestLoadEngineConfig_errors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		contents string

		field   string
		missing bool
	}{
		{
			name:     "missing consensus section",
			contents: "[metrics]\nlisten_addr = \"127.0.0.1:9000\"\n",
			field:    "consensus",
			missing:  true,
		},
		{
			name:     "missing p2p section",
			contents: "[consensus]\nvalue_payload = \"parts-only\"\n",
			field:    "consensus.p2p",
			missing:  true,
		},
		{
			name:     "missing listen address",
			contents: "[consensus.p2p]\npersistent_peers = \"\"\n",
			field:    "consensus.p2p.listen_addr",
			missing:  true,
		},
		{
			name:     "listen address not a multiaddr",
			contents: "[consensus.p2p]\nlisten_addr = \"127.0.0.1:26656\"\n",
			field:    "consensus.p2p.listen_addr",
		},
		{
			name:     "listen address without port",
			contents: "[consensus.p2p]\nlisten_addr = \"/ip4/127.0.0.1\"\n",
			field:    "consensus.p2p.listen_addr",
		},
		{
			name:     "syntax error",
			contents: "[consensus.p2p\nlisten_addr = 1\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tc.contents)
			_, err := cvconfig.LoadEngineConfig(path, "c", "n")

			var cfgErr *cvconfig.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, path, cfgErr.Path)
			require.Equal(t, tc.field, cfgErr.Field)
			require.Equal(t, tc.missing, errors.Is(err, cvconfig.ErrMissingField))
			require.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadEngineConfig_missingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope.toml")
	_, err := cvconfig.LoadEngineConfig(path, "c", "n")

	var cfgErr *cvconfig.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEngineConfig_udpPort(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "[consensus.p2p]\nlisten_addr = \"/ip4/0.0.0.0/udp/4001/quic-v1\"\n")
	cfg, err := cvconfig.LoadEngineConfig(path, "c", "n")
	require.NoError(t, err)
	require.Equal(t, uint16(4001), cfg.Network.ListenAddr.Port())
	require.Empty(t, cfg.Network.Peers)
}
