/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/credentials"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/poll"
)

const (
	UseDefaultConfigEnv = "HSCENARIOS_USE_DEFAULT_CONFIG"
	ConfigFileEnv       = "HSCENARIOS_CONFIG_FILE"
	DotEnvFile          = ".env"

	// MemoryNetwork selects the in-process ledger instead of a real network.
	MemoryNetwork = "memory"
)

type Configuration struct {
	App         AppConfig     `mapstructure:"app"`
	Network     NetworkConfig `mapstructure:"network"`
	Poll        poll.Config   `mapstructure:"poll"`
	Steps       StepsConfig   `mapstructure:"steps"`
	Cache       CacheConfig   `mapstructure:"cache"`
	Journal     JournalConfig `mapstructure:"journal"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Credentials []credentials.Account `mapstructure:"-"`
	Operator    Operator              `mapstructure:"-"`
}

type AppConfig struct {
	Logging   LogLevel  `mapstructure:"logging"`
	LogFormat LogFormat `mapstructure:"logFormat"`
}

// LogLevel String defining a log level.
type LogLevel string

// LogFormat String defining a log format.
type LogFormat string

type NetworkConfig struct {
	Name                     string        `mapstructure:"name"`
	MirrorNetwork            []string      `mapstructure:"mirrorNetwork"`
	MirrorRestURL            string        `mapstructure:"mirrorRestURL"`
	NodeAccountIDs           []string      `mapstructure:"nodeAccountIDs"`
	TransactionValidDuration time.Duration `mapstructure:"transactionValidDuration"`
	RequestTimeout           time.Duration `mapstructure:"requestTimeout"`
	Memory                   MemoryConfig  `mapstructure:"memory"`
}

// MemoryConfig shapes the in-process ledger used when the network is "memory".
type MemoryConfig struct {
	GenesisHbars int64         `mapstructure:"genesisHbars"`
	MirrorLag    time.Duration `mapstructure:"mirrorLag"`
	RecordLag    time.Duration `mapstructure:"recordLag"`
}

type StepsConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	PropagationTimeout time.Duration `mapstructure:"propagationTimeout"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxCost int64         `mapstructure:"maxCost"`
}

type JournalConfig struct {
	Driver     string `mapstructure:"driver"`
	DataSource string `mapstructure:"dataSource"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type TracingConfig struct {
	File string `mapstructure:"file"`
}

// Operator is the provisioning credential, read from the environment.
type Operator struct {
	AccountID  string `env:"MY_ACCOUNT_ID"`
	PrivateKey string `env:"MY_PRIVATE_KEY"`
}

func (o Operator) Account() credentials.Account {
	return credentials.Account{ID: o.AccountID, PrivateKey: o.PrivateKey}
}
