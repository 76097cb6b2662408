// Command gadapter inspects and serves a consensus value store.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	if err := mainE(); err != nil {
		os.Exit(1)
	}
}

func mainE() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := NewRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Info("Failure", "err", err)
		os.Stderr.Sync()
		return err
	}

	return nil
}

func NewRootCmd(log *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "gadapter SUBCOMMAND",

		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},

		SilenceUsage: true,

		Long: `gadapter manages the consensus value store backing a consensus engine.

A typical setup:

1. Create the store schema:
     $ gadapter store init --backend sqlite --path data/values.sqlite
2. Check the engine configuration derived from the node's config file:
     $ gadapter config show config.toml --chain-id mychain --node-id node0
3. Serve the store with metrics:
     $ gadapter run config.toml --chain-id mychain --node-id node0 \
         --backend sqlite --path data/values.sqlite
`,
	}

	rootCmd.AddCommand(
		newConfigCmd(log),
		newStoreCmd(log),
		newRunCmd(log),
	)

	return rootCmd
}
