/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps

import (
	"context"
	"fmt"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

func (l *Library) fixture(i int) (network.Identity, error) {
	a, err := l.accounts.Account(i)
	if err != nil {
		return network.Identity{}, err
	}
	return a.Identity(), nil
}

// requireHbars asserts the account holds more than hbars, or at least hbars when inclusive.
func (l *Library) requireHbars(ctx context.Context, id network.Identity, hbars int64, inclusive bool) error {
	balance, err := l.ledger.AccountBalance(ctx, id.Account)
	if err != nil {
		return errors.Wrapf(err, "failed querying balance of [%s]", id.Account)
	}
	threshold := network.HbarToTinybars(hbars)
	if balance.Tinybars > threshold || (inclusive && balance.Tinybars == threshold) {
		logger.Debugf("account [%s] holds %v hbar", id.Account, balance.Hbars())
		return nil
	}
	cmp := "more than"
	if inclusive {
		cmp = "at least"
	}
	return &AssertionError{
		What:     fmt.Sprintf("hbar balance of [%s]", id.Account),
		Expected: fmt.Sprintf("%s %d", cmp, hbars),
		Actual:   balance.Hbars(),
	}
}

// bindFixture binds fixture i to the given ordinal and checks its hbar balance.
func (l *Library) bindFixture(ctx context.Context, ordinal string, i int, hbars int64, inclusive bool) (network.Identity, error) {
	s, err := StateOf(ctx)
	if err != nil {
		return network.Identity{}, err
	}
	id, err := l.fixture(i)
	if err != nil {
		return network.Identity{}, err
	}
	if err := s.bind(ordinal, id); err != nil {
		return network.Identity{}, err
	}
	if err := l.requireHbars(ctx, id, hbars, inclusive); err != nil {
		return network.Identity{}, err
	}
	return id, nil
}
