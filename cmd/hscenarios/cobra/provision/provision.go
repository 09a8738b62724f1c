/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package provision

import (
	"fmt"

	"github.com/ledger-labs/hedera-scenarios/cmd/hscenarios/cobra/common"
	"github.com/ledger-labs/hedera-scenarios/integration/provision"
	"github.com/ledger-labs/hedera-scenarios/integration/runner"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/journal"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/metrics"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/observe"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type Args struct {
	common.Flags
	Count        int
	InitialHbars int64
	Workers      int
}

// Cmd returns the Cobra Command creating fixture accounts.
func Cmd() *cobra.Command {
	args := &Args{}
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create funded fixture accounts.",
		Long: `Create funded fixture accounts paid by MY_ACCOUNT_ID and MY_PRIVATE_KEY.
The credentials block printed on stdout can be pasted into a configuration file.`,
		RunE: func(cmd *cobra.Command, trailing []string) error {
			if len(trailing) != 0 {
				return fmt.Errorf("trailing args detected")
			}
			// Parsing of the command line is done so silence cmd usage
			cmd.SilenceUsage = true
			return Provision(cmd, args)
		},
	}
	args.Register(cmd)
	flags := cmd.Flags()
	flags.IntVar(&args.Count, "count", provision.DefaultCount, "accounts to create")
	flags.Int64Var(&args.InitialHbars, "initial-hbar", provision.DefaultInitialHbars, "initial balance of each account, in hbar")
	flags.IntVar(&args.Workers, "workers", provision.DefaultWorkers, "accounts created in parallel")
	return cmd
}

func Provision(cmd *cobra.Command, args *Args) error {
	cfg, err := args.Load()
	if err != nil {
		return err
	}
	store := cfg.Store()
	b, err := runner.NewBackend(cfg, store)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			cmd.PrintErrln(err)
		}
	}()

	runID, err := journal.NewRunID()
	if err != nil {
		return err
	}
	m := metrics.New()
	l := observe.New(b.Ledger, runID, m, nil)

	accounts, err := provision.New(l, store.Main(), args.Workers).Provision(cmd.Context(), args.Count, args.InitialHbars)
	if err != nil {
		return errors.WithMessage(err, "failed provisioning accounts")
	}
	cmd.PrintErr(m.Summary())
	return provision.Write(cmd.OutOrStdout(), accounts)
}
