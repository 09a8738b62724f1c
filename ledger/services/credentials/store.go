/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package credentials holds the fixed accounts scenarios act as.
package credentials

import (
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

// Account is an account id with the private key controlling it.
type Account struct {
	ID         string `mapstructure:"id" yaml:"id"`
	PrivateKey string `mapstructure:"privateKey" yaml:"privateKey"`
}

func (a Account) Identity() network.Identity {
	return network.Identity{Account: network.AccountID(a.ID), PrivateKey: a.PrivateKey}
}

// Store is the ordered list of fixture accounts plus the provisioning account.
type Store struct {
	fixtures []Account
	main     Account
}

func NewStore(fixtures []Account, main Account) *Store {
	return &Store{fixtures: append([]Account(nil), fixtures...), main: main}
}

// Account returns fixture i, counting from zero.
func (s *Store) Account(i int) (Account, error) {
	if i < 0 || i >= len(s.fixtures) {
		return Account{}, errors.Errorf("no credential at index %d, %d configured", i, len(s.fixtures))
	}
	return s.fixtures[i], nil
}

func (s *Store) Len() int {
	return len(s.fixtures)
}

func (s *Store) All() []Account {
	return append([]Account(nil), s.fixtures...)
}

// Main returns the provisioning account. Its fields are empty when the environment does not set
// them; the first network call with it then fails.
func (s *Store) Main() Account {
	return s.main
}
