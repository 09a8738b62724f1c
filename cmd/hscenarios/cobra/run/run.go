/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledger-labs/hedera-scenarios/cmd/hscenarios/cobra/common"
	"github.com/ledger-labs/hedera-scenarios/integration/features"
	"github.com/ledger-labs/hedera-scenarios/integration/runner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type Args struct {
	common.Flags
	// Paths are feature files or directories. The embedded features run when empty.
	Paths          []string
	Tags           string
	Format         string
	Concurrency    int
	Strict         bool
	NoColors       bool
	MetricsAddress string
}

// Cmd returns the Cobra Command running the scenarios.
func Cmd() *cobra.Command {
	args := &Args{}
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run the scenarios.",
		Long:  `Run the scenarios of the given feature files, or the built-in ones when none is given, against the configured network.`,
		RunE: func(cmd *cobra.Command, paths []string) error {
			// Parsing of the command line is done so silence cmd usage
			cmd.SilenceUsage = true
			args.Paths = paths
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return Run(ctx, cmd, args)
		},
	}
	args.Register(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&args.Tags, "tags", "t", "", "tag expression selecting scenarios, e.g. @topic or \"@token && ~@transfer\"")
	flags.StringVarP(&args.Format, "format", "f", "pretty", "godog formatter: pretty, progress, cucumber, junit")
	flags.IntVar(&args.Concurrency, "concurrency", 1, "scenarios run in parallel")
	flags.BoolVar(&args.Strict, "strict", true, "fail on undefined or pending steps")
	flags.BoolVar(&args.NoColors, "no-colors", false, "disable colored output")
	flags.StringVar(&args.MetricsAddress, "metrics-address", "", "serve Prometheus metrics on this address while running")
	return cmd
}

// Run executes the scenarios and fails when any of them did.
func Run(ctx context.Context, cmd *cobra.Command, args *Args) error {
	cfg, err := args.Load()
	if err != nil {
		return err
	}
	r, err := runner.Build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			cmd.PrintErrln(err)
		}
	}()

	opts := runner.Options{
		Paths:          args.Paths,
		Tags:           args.Tags,
		Format:         args.Format,
		Concurrency:    args.Concurrency,
		Strict:         args.Strict,
		NoColors:       args.NoColors,
		Output:         cmd.OutOrStdout(),
		MetricsAddress: args.MetricsAddress,
	}
	if len(args.Paths) == 0 {
		opts.FS = features.FS
	}
	result, err := r.Run(ctx, opts)
	if err != nil {
		return err
	}
	cmd.PrintErr(result.Summary)
	if result.Status != 0 {
		return errors.Errorf("run %s failed with status %d", result.RunID, result.Status)
	}
	return nil
}
