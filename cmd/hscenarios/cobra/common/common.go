/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"github.com/ledger-labs/hedera-scenarios/ledger/services/config"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Flags shared by the commands that talk to a network.
type Flags struct {
	ConfigFile string
	Network    string
}

func (f *Flags) Register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.ConfigFile, "config", "c", "", "configuration file merged over the defaults")
	flags.StringVarP(&f.Network, "network", "n", "", "network name overriding the configured one, memory for the in-process ledger")
}

// Load reads the configuration and applies its logging section.
func (f *Flags) Load() (*config.Configuration, error) {
	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		return nil, errors.WithMessage(err, "failed loading configuration")
	}
	if len(f.Network) != 0 {
		cfg.Network.Name = f.Network
	}
	if err := logging.Initialize(logging.Config{
		Level:  string(cfg.App.Logging),
		Format: string(cfg.App.LogFormat),
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}
