package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gordian-engine/gadapter/cv/cvconfig"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvcache"
	"github.com/gordian-engine/gadapter/cv/cvstore/cvmetrics"
	"github.com/gordian-engine/gadapter/internal/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newRunCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "run CONFIG_FILE",

		Short: "Open the store and serve metrics until interrupted",

		Long: `Load the engine configuration, open and verify the store,
and report the height the engine would resume from.

The store must already have been created with "gadapter store init".
When metrics are enabled, they are served on the configured address,
along with the highest decided height at /decided/max-height.
`,

		Args: cobra.ExactArgs(1),
	}

	ni := addNodeIdentityFlags(cmd)
	sf := addStoreFlags(cmd.Flags())

	var (
		cacheSize   int
		metricsAddr string
	)
	cmd.Flags().IntVar(&cacheSize, "cache-size", 1024, "number of decided values to cache; 0 disables the cache")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "override the metrics listen address from the config file")

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		cfg, err := cvconfig.LoadEngineConfigWithLogger(log, args[0], ni.chainID, ni.nodeID)
		if err != nil {
			return err
		}

		h, err := cfg.Node.Logging.NewHandler(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to configure logging: %w", err)
		}
		log := slog.New(h).With("chain_id", cfg.Network.ChainID, "moniker", cfg.Node.Moniker)

		if prev := cfg.Node.Runtime.Apply(); cfg.Node.Runtime.MaxProcs > 0 {
			log.Info("Set GOMAXPROCS", "prev", prev, "new", cfg.Node.Runtime.MaxProcs)
		}

		s, err := sf.open(ctx, false)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		vs, err := cvmetrics.NewStore(s.VS, reg)
		if err != nil {
			return fmt.Errorf("failed to register store metrics: %w", err)
		}

		var inner cvstore.ValueStore = vs
		if cacheSize > 0 {
			cs, err := cvcache.NewStore(vs, cacheSize)
			if err != nil {
				return fmt.Errorf("failed to create cache: %w", err)
			}
			inner = cs
		}
		store := cvstore.NewStore(inner)

		if err := store.VerifyTables(ctx); err != nil {
			return err
		}

		maxH, ok, err := store.MaxDecidedValueHeight(ctx)
		if err != nil {
			return err
		}
		if ok {
			dv, found, err := store.LoadDecidedValue(ctx, maxH)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("store reported max decided height %d but has no value there", maxH)
			}
			glog.HR(log, maxH, dv.Certificate.Round).Info(
				"Loaded store",
				"value_id", glog.Short(dv.Certificate.ValueID),
				"n_signatures", len(dv.Certificate.Signatures),
			)
		} else {
			log.Info("Loaded empty store")
		}
		log.Info("Recovery height determined", "height", uint64(cfg.RecoveryHeight(maxH, ok)))

		if !cfg.Node.Metrics.Enabled {
			<-ctx.Done()
			log.Info("Shutting down", "cause", context.Cause(ctx))
			return nil
		}

		addr := cfg.Node.Metrics.ListenAddr.String()
		if metricsAddr != "" {
			addr = metricsAddr
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		log.Info("Serving metrics", "addr", ln.Addr().String())

		srv := cvmetrics.NewHTTPServer(ctx, log.With("sys", "http"), cvmetrics.HTTPServerConfig{
			Listener: ln,
			Gatherer: reg,
			Store:    store,
		})
		srv.Wait()

		log.Info("Shutting down", "cause", context.Cause(ctx))
		return nil
	}

	return cmd
}
