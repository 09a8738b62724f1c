/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"embed"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/credentials"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var logger = logging.MustGetLogger()

//go:embed resources/config.yaml
var embeddedFiles embed.FS

// Load reads the embedded defaults, then the overlay file, then the operator credential.
// configFile, when set, takes precedence over HSCENARIOS_CONFIG_FILE.
func Load(configFile string) (*Configuration, error) {
	v := viper.New()
	if os.Getenv(UseDefaultConfigEnv) != "false" {
		if err := loadDefaultConfig(v); err != nil {
			return nil, err
		}
	}

	if len(configFile) == 0 {
		configFile = os.Getenv(ConfigFileEnv)
	}
	if len(configFile) != 0 {
		if err := loadConfig(v, configFile); err != nil {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal the configuration")
	}
	creds, err := decodeCredentials(v.Get("credentials"))
	if err != nil {
		return nil, err
	}
	config.Credentials = creds

	op, err := loadOperator(DotEnvFile)
	if err != nil {
		return nil, err
	}
	config.Operator = op

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Configuration) Validate() error {
	switch c.Journal.Driver {
	case "", "sqlite", "postgres":
	default:
		return errors.Errorf("unknown journal driver [%s]", c.Journal.Driver)
	}
	if len(c.Journal.Driver) != 0 && len(c.Journal.DataSource) == 0 {
		return errors.Errorf("journal driver [%s] needs a data source", c.Journal.Driver)
	}
	if len(c.Network.Name) == 0 {
		return errors.New("no network name configured")
	}
	return nil
}

// Store builds the credential store of the configuration.
func (c *Configuration) Store() *credentials.Store {
	return credentials.NewStore(c.Credentials, c.Operator.Account())
}

func loadConfig(v *viper.Viper, configFile string) error {
	v.SetConfigFile(configFile)
	if err := v.MergeInConfig(); err != nil {
		return errors.Wrapf(err, "couldn't read the config file '%s'", configFile)
	}
	logger.Debugf("merged config file [%s]", configFile)
	return nil
}

func loadDefaultConfig(v *viper.Viper) error {
	configuration, err := embeddedFiles.ReadFile("resources/config.yaml")
	if err != nil {
		return errors.Wrap(err, "couldn't find the default config file 'config.yaml'")
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(configuration)); err != nil {
		return errors.Wrap(err, "couldn't read the default config file 'config.yaml'")
	}
	return nil
}

// decodeCredentials rejects unknown and missing fields, so a typo in a key name does not
// silently produce an account without key.
func decodeCredentials(raw interface{}) ([]credentials.Account, error) {
	if raw == nil {
		return nil, nil
	}
	var out []credentials.Account
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		ErrorUnset:  true,
		Result:      &out,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed creating credentials decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "invalid credentials")
	}
	for i, a := range out {
		if len(a.ID) == 0 || len(a.PrivateKey) == 0 {
			return nil, errors.Errorf("invalid credentials: entry %d needs both id and privateKey", i)
		}
	}
	return out, nil
}

// loadOperator reads the operator variables from dotEnv, if present, and from the process
// environment. The process environment wins.
func loadOperator(dotEnv string) (Operator, error) {
	vars := map[string]string{}
	if _, err := os.Stat(dotEnv); err == nil {
		v := viper.New()
		v.SetConfigFile(dotEnv)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Operator{}, errors.Wrapf(err, "couldn't read '%s'", dotEnv)
		}
		for _, k := range v.AllKeys() {
			vars[strings.ToUpper(k)] = v.GetString(k)
		}
	}
	for k, val := range env.ToMap(os.Environ()) {
		vars[k] = val
	}
	var op Operator
	if err := env.ParseWithOptions(&op, env.Options{Environment: vars}); err != nil {
		return Operator{}, errors.Wrap(err, "failed parsing operator environment")
	}
	return op, nil
}
