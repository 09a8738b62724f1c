/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"context"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/cache"
)

// CachingLedger answers repeated TokenInfo queries from a cache. TokenInfo is a paid query and
// scenarios issue several in a row against an unchanged token. Any mint or executed transfer
// touching the token invalidates its entry.
type CachingLedger struct {
	Ledger
	tokens cache.Cache[TokenInfo]
}

func NewCachingLedger(l Ledger, tokens cache.Cache[TokenInfo]) *CachingLedger {
	return &CachingLedger{Ledger: l, tokens: tokens}
}

func (c *CachingLedger) TokenInfo(ctx context.Context, payer Identity, token TokenID) (TokenInfo, error) {
	info, _, err := c.tokens.GetOrLoad(string(token), func() (TokenInfo, error) {
		return c.Ledger.TokenInfo(ctx, payer, token)
	})
	return info, err
}

func (c *CachingLedger) MintToken(ctx context.Context, payer Identity, token TokenID, amount uint64, signers ...Identity) (Receipt, error) {
	defer c.tokens.Delete(string(token))
	return c.Ledger.MintToken(ctx, payer, token, amount, signers...)
}

func (c *CachingLedger) NewTransfer(ctx context.Context, spec TransferSpec) (PendingTransaction, error) {
	tx, err := c.Ledger.NewTransfer(ctx, spec)
	if err != nil {
		return nil, err
	}
	return &invalidatingTransaction{PendingTransaction: tx, tokens: c.tokens}, nil
}

type invalidatingTransaction struct {
	PendingTransaction
	tokens cache.Cache[TokenInfo]
}

func (t *invalidatingTransaction) Execute(ctx context.Context, submitter Identity) (Receipt, error) {
	defer func() {
		for _, leg := range t.Spec().Transfers {
			t.tokens.Delete(string(leg.Token))
		}
	}()
	return t.PendingTransaction.Execute(ctx, submitter)
}
