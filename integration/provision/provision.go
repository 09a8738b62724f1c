/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package provision creates and funds the fixture accounts the scenarios act as.
package provision

import (
	"context"
	"io"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/credentials"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"gopkg.in/yaml.v2"
)

var logger = logging.MustGetLogger()

const (
	DefaultCount        = 5
	DefaultInitialHbars = 100
	DefaultWorkers      = 5
)

type Provisioner struct {
	ledger  network.Ledger
	payer   network.Identity
	workers int
}

// New returns a provisioner creating accounts paid by payer, workers at a time.
func New(ledger network.Ledger, payer credentials.Account, workers int) *Provisioner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Provisioner{ledger: ledger, payer: payer.Identity(), workers: workers}
}

// Provision creates count accounts, each with a fresh ED25519 key and initialHbars. The accounts
// are returned in creation order; the first failure cancels the rest.
func (p *Provisioner) Provision(ctx context.Context, count int, initialHbars int64) ([]credentials.Account, error) {
	if count <= 0 {
		return nil, errors.Errorf("invalid account count %d", count)
	}
	if initialHbars < 0 {
		return nil, errors.Errorf("invalid initial balance %d", initialHbars)
	}
	if err := network.CheckPayer(p.payer); err != nil {
		return nil, errors.Wrap(err, "no provisioning account, set MY_ACCOUNT_ID and MY_PRIVATE_KEY")
	}

	accounts := make([]credentials.Account, count)
	executorPool := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(p.workers)
	for i := range count {
		executorPool.Go(func(ctx context.Context) error {
			a, err := p.create(ctx, initialHbars)
			if err != nil {
				return errors.WithMessagef(err, "account %d of %d", i+1, count)
			}
			accounts[i] = a
			return nil
		})
	}
	if err := executorPool.Wait(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *Provisioner) create(ctx context.Context, initialHbars int64) (credentials.Account, error) {
	sk, pk, err := network.GenerateKey()
	if err != nil {
		return credentials.Account{}, err
	}
	receipt, err := p.ledger.CreateAccount(ctx, p.payer, network.AccountSpec{
		Key:             network.SingleKey(pk),
		InitialTinybars: network.HbarToTinybars(initialHbars),
	})
	if err != nil {
		return credentials.Account{}, errors.Wrap(err, "failed creating account")
	}
	if len(receipt.AccountID) == 0 {
		return credentials.Account{}, errors.Errorf("receipt of [%s] carries no account id", receipt.TransactionID)
	}
	logger.Infof("created account [%s] with %d hbar", receipt.AccountID, initialHbars)
	return credentials.Account{ID: string(receipt.AccountID), PrivateKey: sk}, nil
}

type document struct {
	Credentials []credentials.Account `yaml:"credentials"`
}

// Write prints accounts as a credentials block ready to paste into a configuration file.
func Write(w io.Writer, accounts []credentials.Account) error {
	raw, err := yaml.Marshal(document{Credentials: accounts})
	if err != nil {
		return errors.Wrap(err, "failed marshalling credentials")
	}
	_, err = w.Write(raw)
	return err
}
