/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps

import (
	"context"
	"fmt"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/poll"
	"github.com/pkg/errors"
)

func (l *Library) transferSteps() []step {
	return []step{
		{pattern: `^A first hedera account with more than (\d+) hbar$`, handler: l.firstTokenAccount},
		{pattern: `^A second Hedera account$`, handler: l.secondTokenAccount},
		{pattern: `^A first hedera account with more than (\d+) hbar and (\d+) HTT tokens$`, handler: l.firstAccountWithTokens, propagation: true},
		{pattern: `^A (second|third|fourth) Hedera account with (\d+) hbar and (\d+) HTT tokens$`, handler: l.accountWithTokens, propagation: true},
		{pattern: `^The (first|second) account holds (\d+) HTT tokens$`, handler: l.holds, propagation: true},
		{pattern: `^The (third|fourth) account holds (\d+) HTT tokens$`, handler: l.assertHolds, propagation: true},
		{pattern: `^The first account creates a transaction to transfer (\d+) HTT tokens to the second account$`, handler: l.firstCreatesTransfer},
		{pattern: `^The second account creates a transaction to transfer (\d+) HTT tokens to the first account$`, handler: l.secondCreatesTransfer},
		{pattern: `^A transaction is created to transfer (\d+) HTT tokens out of the first and second account and (\d+) HTT tokens into the third account and (\d+) HTT tokens into the fourth account$`, handler: l.createMultiPartyTransfer},
		{pattern: `^The first account submits the transaction$`, handler: l.firstSubmits},
		{pattern: `^The first account has paid for the transaction fee$`, handler: l.firstPaidFee, propagation: true},
	}
}

var fixtureOf = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4}

func (l *Library) firstTokenAccount(ctx context.Context, hbars int64) error {
	_, err := l.bindFixture(ctx, "first", fixtureOf["first"], hbars, false)
	return err
}

func (l *Library) secondTokenAccount(ctx context.Context) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	id, err := l.fixture(fixtureOf["second"])
	if err != nil {
		return err
	}
	return s.bind("second", id)
}

func (l *Library) firstAccountWithTokens(ctx context.Context, hbars, amount int64) error {
	id, err := l.bindFixture(ctx, "first", fixtureOf["first"], hbars, false)
	if err != nil {
		return err
	}
	return l.adjust(ctx, id, amount)
}

func (l *Library) accountWithTokens(ctx context.Context, ordinal string, hbars, amount int64) error {
	id, err := l.bindFixture(ctx, ordinal, fixtureOf[ordinal], hbars, true)
	if err != nil {
		return err
	}
	return l.adjust(ctx, id, amount)
}

// holds sets the balance up before the scenario's first transfer and asserts it afterwards.
func (l *Library) holds(ctx context.Context, ordinal string, amount int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	id, err := s.actor(ordinal)
	if err != nil {
		return err
	}
	if s.transferred {
		return l.awaitBalance(ctx, s, id.Account, uint64(amount))
	}
	return l.adjust(ctx, id, amount)
}

func (l *Library) assertHolds(ctx context.Context, ordinal string, amount int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	id, err := s.actor(ordinal)
	if err != nil {
		return err
	}
	return l.awaitBalance(ctx, s, id.Account, uint64(amount))
}

// awaitBalance polls the mirror until the account holds amount of the scenario token.
func (l *Library) awaitBalance(ctx context.Context, s *State, account network.AccountID, amount uint64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	_, err = poll.For(ctx, l.cfg.Poll, func(ctx context.Context) (uint64, error) {
		got, err := l.mirror.TokenBalance(ctx, account, token)
		if err != nil {
			return 0, err
		}
		if got != amount {
			return got, &AssertionError{What: fmt.Sprintf("[%s] balance of [%s]", token, account), Expected: amount, Actual: got}
		}
		return got, nil
	})
	return err
}

// currentBalance returns the balance the scenario established for account, falling back to the
// mirror for accounts it has not touched yet.
func (l *Library) currentBalance(ctx context.Context, s *State, account network.AccountID, token network.TokenID) (uint64, error) {
	if held, ok := s.holdings[account]; ok {
		return held, nil
	}
	return poll.For(ctx, l.cfg.Poll, func(ctx context.Context) (uint64, error) {
		return l.mirror.TokenBalance(ctx, account, token)
	})
}

// adjust associates the token with the account and moves units between treasury and account
// until the account holds exactly amount. The treasury pays for everything; the account signs
// what it must.
func (l *Library) adjust(ctx context.Context, id network.Identity, amount int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	treasury, err := s.treasury()
	if err != nil {
		return err
	}
	token, err := s.token()
	if err != nil {
		return err
	}
	if id.Account == treasury.Account {
		return errors.Errorf("account [%s] is the treasury of [%s], its balance cannot be adjusted", id.Account, token)
	}

	_, err = l.ledger.AssociateToken(ctx, treasury, id.Account, []network.TokenID{token}, id)
	if err := tolerate(err, network.StatusTokenAlreadyAssociatedToAccount); err != nil {
		return errors.Wrapf(err, "failed associating [%s] with [%s]", token, id.Account)
	}

	current, err := l.currentBalance(ctx, s, id.Account, token)
	if err != nil {
		return errors.Wrapf(err, "failed reading [%s] balance of [%s]", token, id.Account)
	}
	target := uint64(amount)
	switch {
	case current < target:
		diff := target - current
		if err := l.mint(ctx, s, treasury, diff); err != nil {
			return err
		}
		if err := l.move(ctx, s, treasury, treasury, id, diff); err != nil {
			return err
		}
	case current > target:
		if err := l.move(ctx, s, treasury, id, treasury, current-target); err != nil {
			return err
		}
	default:
		logger.Debugf("account [%s] already holds %d of [%s]", id.Account, target, token)
	}
	s.holdings[id.Account] = target
	return l.awaitBalance(ctx, s, id.Account, target)
}

// move executes a token transfer from one account to another outside the scenario's own
// transfers.
func (l *Library) move(ctx context.Context, s *State, payer, from, to network.Identity, amount uint64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	p, err := l.ledger.NewTransfer(ctx, network.TransferSpec{
		Payer: payer.Account,
		Transfers: []network.TokenTransfer{
			{Token: token, Account: from.Account, Amount: -int64(amount)},
			{Token: token, Account: to.Account, Amount: int64(amount)},
		},
		Nodes:         l.cfg.Nodes,
		ValidDuration: l.cfg.ValidDuration,
	})
	if err != nil {
		return err
	}
	if err := p.Sign(from); err != nil {
		return err
	}
	if _, err := p.Execute(ctx, payer); err != nil {
		return errors.Wrapf(err, "failed moving %d units of [%s] from [%s] to [%s]", amount, token, from.Account, to.Account)
	}
	if held, ok := s.holdings[from.Account]; ok {
		s.holdings[from.Account] = held - amount
	}
	if held, ok := s.holdings[to.Account]; ok {
		s.holdings[to.Account] = held + amount
	}
	return nil
}

func (l *Library) newTransfer(ctx context.Context, s *State, payer network.Identity, legs ...network.TokenTransfer) (network.PendingTransaction, error) {
	p, err := l.ledger.NewTransfer(ctx, network.TransferSpec{
		Payer:         payer.Account,
		Transfers:     legs,
		Nodes:         l.cfg.Nodes,
		ValidDuration: l.cfg.ValidDuration,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed building transfer")
	}
	logger.Debugf("built transfer [%s] paid by [%s]", p.ID(), payer.Account)
	s.Pending = p
	return p, nil
}

func (l *Library) firstCreatesTransfer(ctx context.Context, amount int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, second, token, err := pair(s)
	if err != nil {
		return err
	}
	_, err = l.newTransfer(ctx, s, first,
		network.TokenTransfer{Token: token, Account: first.Account, Amount: -amount},
		network.TokenTransfer{Token: token, Account: second.Account, Amount: amount},
	)
	return err
}

// secondCreatesTransfer builds a transfer out of the second account that the first account
// pays for. Both sign up front.
func (l *Library) secondCreatesTransfer(ctx context.Context, amount int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, second, token, err := pair(s)
	if err != nil {
		return err
	}
	p, err := l.newTransfer(ctx, s, first,
		network.TokenTransfer{Token: token, Account: second.Account, Amount: -amount},
		network.TokenTransfer{Token: token, Account: first.Account, Amount: amount},
	)
	if err != nil {
		return err
	}
	return signAll(p, second, first)
}

func (l *Library) createMultiPartyTransfer(ctx context.Context, out, toThird, toFourth int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, second, token, err := pair(s)
	if err != nil {
		return err
	}
	third, err := s.actor("third")
	if err != nil {
		return err
	}
	fourth, err := s.actor("fourth")
	if err != nil {
		return err
	}
	_, err = l.newTransfer(ctx, s, first,
		network.TokenTransfer{Token: token, Account: first.Account, Amount: -out},
		network.TokenTransfer{Token: token, Account: second.Account, Amount: -out},
		network.TokenTransfer{Token: token, Account: third.Account, Amount: toThird},
		network.TokenTransfer{Token: token, Account: fourth.Account, Amount: toFourth},
	)
	return err
}

func (l *Library) firstSubmits(ctx context.Context) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, second, _, err := pair(s)
	if err != nil {
		return err
	}
	p, err := s.pending()
	if err != nil {
		return err
	}
	if err := signAll(p, first, second); err != nil {
		return err
	}
	return l.execute(ctx, s, p, first)
}

// execute submits p and records the balances every leg should end with.
func (l *Library) execute(ctx context.Context, s *State, p network.PendingTransaction, submitter network.Identity) error {
	spec := p.Spec()
	receipt, err := p.Execute(ctx, submitter)
	if err != nil {
		return errors.Wrapf(err, "failed executing transfer [%s]", p.ID())
	}
	logger.Infof("transfer [%s] executed by [%s]", receipt.TransactionID, submitter.Account)
	s.LastTransfer = &receipt
	s.Pending = nil
	s.transferred = true

	seen := map[network.AccountID]struct{}{}
	for _, leg := range spec.Transfers {
		if _, ok := seen[leg.Account]; ok {
			continue
		}
		seen[leg.Account] = struct{}{}
		before, ok := s.holdings[leg.Account]
		if !ok {
			continue
		}
		after := uint64(int64(before) + spec.Delta(leg.Account, leg.Token))
		s.holdings[leg.Account] = after
		s.expected = append(s.expected, expectation{account: leg.Account, token: leg.Token, balance: after})
	}
	return nil
}

func (l *Library) firstPaidFee(ctx context.Context) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	first, err := s.first()
	if err != nil {
		return err
	}
	receipt, err := s.lastTransfer()
	if err != nil {
		return err
	}
	record, err := poll.For(ctx, l.cfg.Poll, func(ctx context.Context) (network.Record, error) {
		return l.ledger.Record(ctx, first, receipt.TransactionID)
	})
	if err != nil {
		return errors.Wrapf(err, "no record for transfer [%s]", receipt.TransactionID)
	}
	if err := assertEqual("transfer payer", first.Account, record.Payer); err != nil {
		return err
	}
	if record.TransactionFee <= 0 {
		return &AssertionError{What: "transaction fee", Expected: "more than 0 tinybars", Actual: record.TransactionFee}
	}
	logger.Infof("[%s] paid %d tinybars for [%s]", record.Payer, record.TransactionFee, receipt.TransactionID)
	return nil
}

// verifyTransfers checks, once the scenario ends, that the mirror converged on the balances the
// executed transfers imply.
func (l *Library) verifyTransfers(ctx context.Context) error {
	s, err := StateOf(ctx)
	if err != nil || len(s.expected) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.PropagationTimeout)
	defer cancel()

	latest := map[network.AccountID]expectation{}
	var order []network.AccountID
	for _, e := range s.expected {
		if _, ok := latest[e.account]; !ok {
			order = append(order, e.account)
		}
		latest[e.account] = e
	}
	for _, account := range order {
		e := latest[account]
		if err := l.awaitBalance(ctx, s, e.account, e.balance); err != nil {
			return errors.WithMessagef(err, "balance check after transfers failed for [%s]", e.account)
		}
	}
	logger.Debugf("balances of %d accounts match the executed transfers", len(order))
	return nil
}

func pair(s *State) (network.Identity, network.Identity, network.TokenID, error) {
	first, err := s.first()
	if err != nil {
		return network.Identity{}, network.Identity{}, "", err
	}
	second, err := s.second()
	if err != nil {
		return network.Identity{}, network.Identity{}, "", err
	}
	token, err := s.token()
	if err != nil {
		return network.Identity{}, network.Identity{}, "", err
	}
	return first, second, token, nil
}

func signAll(p network.PendingTransaction, signers ...network.Identity) error {
	for _, id := range signers {
		if err := p.Sign(id); err != nil {
			return errors.Wrapf(err, "[%s] failed signing [%s]", id.Account, p.ID())
		}
	}
	return nil
}
