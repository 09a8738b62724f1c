/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps

import (
	"context"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

const (
	tokenName     = "Test Token"
	tokenSymbol   = "HTT"
	tokenDecimals = 2

	// rejectedMintAmount is what the fixed supply scenario tries to mint.
	rejectedMintAmount = 100
)

func (l *Library) tokenSteps() []step {
	return []step{
		{pattern: `^A Hedera account with more than (\d+) hbar$`, handler: l.treasuryAccount},
		{pattern: `^I create a token named Test Token \(HTT\)$`, handler: l.createMintableToken},
		{pattern: `^I create a fixed supply token named Test Token \(HTT\) with (\d+) tokens$`, handler: l.createFixedSupplyToken},
		{pattern: `^A token named Test Token \(HTT\) with (\d+) tokens$`, handler: l.createTokenWithSupply},
		{pattern: `^The token has the name "([^"]*)"$`, handler: l.tokenHasName},
		{pattern: `^The token has the symbol "([^"]*)"$`, handler: l.tokenHasSymbol},
		{pattern: `^The token has (\d+) decimals$`, handler: l.tokenHasDecimals},
		{pattern: `^The token is owned by the account$`, handler: l.tokenOwnedByTreasury},
		{pattern: `^The total supply of the token is (\d+)$`, handler: l.tokenTotalSupply},
		{pattern: `^An attempt to mint (\d+) additional tokens succeeds$`, handler: l.mintSucceeds},
		{pattern: `^An attempt to mint tokens fails$`, handler: l.mintFails},
	}
}

func (l *Library) treasuryAccount(ctx context.Context, hbars int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	id, err := l.fixture(0)
	if err != nil {
		return err
	}
	s.Treasury = &id
	return l.requireHbars(ctx, id, hbars, false)
}

func (l *Library) createMintableToken(ctx context.Context) error {
	return l.createToken(ctx, false, network.InfiniteSupply, 0)
}

func (l *Library) createFixedSupplyToken(ctx context.Context, supply int64) error {
	return l.createToken(ctx, false, network.FiniteSupply, supply)
}

// createTokenWithSupply binds the treasury itself: transfer scenarios start from the token.
func (l *Library) createTokenWithSupply(ctx context.Context, supply int64) error {
	return l.createToken(ctx, true, network.InfiniteSupply, supply)
}

func (l *Library) createToken(ctx context.Context, bindTreasury bool, supplyType network.SupplyType, supply int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	if bindTreasury {
		id, err := l.fixture(0)
		if err != nil {
			return err
		}
		s.Treasury = &id
	}
	treasury, err := s.treasury()
	if err != nil {
		return err
	}
	if supply < 0 {
		return errors.Errorf("invalid token supply %d", supply)
	}
	key, err := treasury.Key()
	if err != nil {
		return err
	}
	spec := network.TokenSpec{
		Name:          tokenName,
		Symbol:        tokenSymbol,
		Decimals:      tokenDecimals,
		InitialSupply: uint64(supply),
		SupplyType:    supplyType,
		Treasury:      treasury.Account,
		AdminKey:      &key,
	}
	if supplyType == network.FiniteSupply {
		spec.MaxSupply = supply
	} else {
		spec.SupplyKey = &key
	}
	receipt, err := l.ledger.CreateToken(ctx, treasury, spec)
	if err != nil {
		return errors.Wrapf(err, "failed creating token [%s]", spec.Symbol)
	}
	if len(receipt.TokenID) == 0 {
		return errors.Errorf("receipt of [%s] carries no token id", receipt.TransactionID)
	}
	logger.Infof("created %s supply token [%s] with %d units in treasury [%s]", supplyType, receipt.TokenID, supply, treasury.Account)
	s.Token = &receipt.TokenID
	s.holdings[treasury.Account] = uint64(supply)
	return nil
}

func (l *Library) tokenInfo(ctx context.Context) (network.TokenInfo, error) {
	s, err := StateOf(ctx)
	if err != nil {
		return network.TokenInfo{}, err
	}
	token, err := s.token()
	if err != nil {
		return network.TokenInfo{}, err
	}
	payer, err := s.payer()
	if err != nil {
		return network.TokenInfo{}, err
	}
	info, err := l.ledger.TokenInfo(ctx, payer, token)
	if err != nil {
		return network.TokenInfo{}, errors.Wrapf(err, "failed querying token [%s]", token)
	}
	return info, nil
}

func (l *Library) tokenHasName(ctx context.Context, name string) error {
	info, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	return assertEqual("token name", name, info.Name)
}

func (l *Library) tokenHasSymbol(ctx context.Context, symbol string) error {
	info, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	return assertEqual("token symbol", symbol, info.Symbol)
}

func (l *Library) tokenHasDecimals(ctx context.Context, decimals int64) error {
	info, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	return assertEqual("token decimals", decimals, int64(info.Decimals))
}

func (l *Library) tokenOwnedByTreasury(ctx context.Context) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	treasury, err := s.treasury()
	if err != nil {
		return err
	}
	info, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	if len(info.Treasury) == 0 {
		return &AssertionError{What: "token treasury", Expected: treasury.Account, Actual: "none"}
	}
	return assertEqual("token treasury", treasury.Account, info.Treasury)
}

func (l *Library) tokenTotalSupply(ctx context.Context, supply int64) error {
	info, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	return assertEqual("token total supply", uint64(supply), info.TotalSupply)
}

func (l *Library) mintSucceeds(ctx context.Context, amount int64) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	treasury, err := s.treasury()
	if err != nil {
		return err
	}
	before, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	if err := l.mint(ctx, s, treasury, uint64(amount)); err != nil {
		return err
	}
	after, err := l.tokenInfo(ctx)
	if err != nil {
		return err
	}
	return assertEqual("token total supply after mint", before.TotalSupply+uint64(amount), after.TotalSupply)
}

func (l *Library) mintFails(ctx context.Context) error {
	s, err := StateOf(ctx)
	if err != nil {
		return err
	}
	treasury, err := s.treasury()
	if err != nil {
		return err
	}
	return expectFailure(network.StatusTokenHasNoSupplyKey, func() error {
		return l.mint(ctx, s, treasury, rejectedMintAmount)
	})
}

// mint credits the treasury; the treasury pays and its key is the supply key.
func (l *Library) mint(ctx context.Context, s *State, treasury network.Identity, amount uint64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	if _, err := l.ledger.MintToken(ctx, treasury, token, amount); err != nil {
		return errors.Wrapf(err, "failed minting %d units of [%s]", amount, token)
	}
	if held, ok := s.holdings[treasury.Account]; ok {
		s.holdings[treasury.Account] = held + amount
	}
	return nil
}
