package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/spf13/cobra"
)

func newStoreCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "store SUBCOMMAND",

		Short: "Create and inspect a consensus value store",
	}

	cmd.AddCommand(
		newStoreInitCmd(log),
		newStoreVerifyCmd(log),
		newStoreMaxHeightCmd(log),
		newStoreDecidedCmd(log),
	)

	return cmd
}

func newStoreInitCmd(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "init",

		Short: "Open or create the store and create its schema",

		Args: cobra.NoArgs,
	}

	sf := addStoreFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()

		s, err := sf.open(ctx, true)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		if err := s.CreateTables(ctx); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}

		log.Info("Initialized store", "backend", sf.backend.val, "path", sf.path)
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}

	return cmd
}

func newStoreVerifyCmd(_ *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "verify",

		Short: "Check that an existing store has every required table",

		Args: cobra.NoArgs,
	}

	sf := addStoreFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()

		s, err := sf.open(ctx, false)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		if err := cvstore.NewStore(s.VS).VerifyTables(ctx); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}

	return cmd
}

func newStoreMaxHeightCmd(_ *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "max-height",

		Short: "Print the highest decided height, or none",

		Args: cobra.NoArgs,
	}

	sf := addStoreFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()

		s, err := sf.open(ctx, false)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		h, ok, err := cvstore.NewStore(s.VS).MaxDecidedValueHeight(ctx)
		if err != nil {
			return err
		}

		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "none")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), uint64(h))
		return nil
	}

	return cmd
}

func newStoreDecidedCmd(_ *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use: "decided HEIGHT",

		Short: "Print the round and value ID decided at HEIGHT, or undecided",

		Args: cobra.ExactArgs(1),
	}

	sf := addStoreFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		u, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q: %w", args[0], err)
		}

		ctx := cmd.Context()

		s, err := sf.open(ctx, false)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		dv, ok, err := cvstore.NewStore(s.VS).LoadDecidedValue(ctx, cvconsensus.Height(u))
		if err != nil {
			return err
		}

		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "undecided")
			return nil
		}
		fmt.Fprintf(
			cmd.OutOrStdout(), "round=%d value_id=%x signatures=%d\n",
			dv.Certificate.Round, []byte(dv.Certificate.ValueID), len(dv.Certificate.Signatures),
		)
		return nil
	}

	return cmd
}
