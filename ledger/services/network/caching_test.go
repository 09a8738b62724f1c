/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network_test

import (
	"context"
	"testing"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/memory"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLedger struct {
	network.Ledger
	tokenInfoCalls int
}

func (c *countingLedger) TokenInfo(ctx context.Context, payer network.Identity, token network.TokenID) (network.TokenInfo, error) {
	c.tokenInfoCalls++
	return c.Ledger.TokenInfo(ctx, payer, token)
}

func tokenCache(t *testing.T) cache.Cache[network.TokenInfo] {
	t.Helper()
	c, err := cache.NewDefaultRistrettoCache[network.TokenInfo](time.Minute)
	require.NoError(t, err)
	return c
}

func TestCachingLedger(t *testing.T) {
	ctx := context.Background()
	priv, pub, err := network.GenerateKey()
	require.NoError(t, err)
	treasury := network.Identity{Account: "0.0.5613562", PrivateKey: priv}
	alicePriv, _, err := network.GenerateKey()
	require.NoError(t, err)
	alice := network.Identity{Account: "0.0.5613563", PrivateKey: alicePriv}

	backend := memory.New()
	require.NoError(t, backend.Genesis(100, treasury, alice))
	counting := &countingLedger{Ledger: backend}
	ledger := network.NewCachingLedger(counting, tokenCache(t))

	key := network.SingleKey(pub)
	receipt, err := ledger.CreateToken(ctx, treasury, network.TokenSpec{
		Name: "Test Token", Symbol: "HTT", Decimals: 2, Treasury: treasury.Account, SupplyKey: &key,
	}, treasury)
	require.NoError(t, err)
	tok := receipt.TokenID

	for range 3 {
		info, err := ledger.TokenInfo(ctx, treasury, tok)
		require.NoError(t, err)
		assert.Zero(t, info.TotalSupply)
	}
	assert.Equal(t, 1, counting.tokenInfoCalls)

	_, err = ledger.MintToken(ctx, treasury, tok, 100, treasury)
	require.NoError(t, err)
	info, err := ledger.TokenInfo(ctx, treasury, tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), info.TotalSupply)
	assert.Equal(t, 2, counting.tokenInfoCalls)

	_, err = ledger.AssociateToken(ctx, alice, alice.Account, []network.TokenID{tok}, alice)
	require.NoError(t, err)
	tx, err := ledger.NewTransfer(ctx, network.TransferSpec{Payer: treasury.Account, Transfers: []network.TokenTransfer{
		{Token: tok, Account: treasury.Account, Amount: -10},
		{Token: tok, Account: alice.Account, Amount: 10},
	}})
	require.NoError(t, err)
	_, err = ledger.TokenInfo(ctx, treasury, tok)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.tokenInfoCalls)

	_, err = tx.Execute(ctx, treasury)
	require.NoError(t, err)
	_, err = ledger.TokenInfo(ctx, treasury, tok)
	require.NoError(t, err)
	assert.Equal(t, 3, counting.tokenInfoCalls)
}

func TestCachingLedgerDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	priv, _, err := network.GenerateKey()
	require.NoError(t, err)
	payer := network.Identity{Account: "0.0.5613562", PrivateKey: priv}
	backend := memory.New()
	require.NoError(t, backend.Genesis(100, payer))
	counting := &countingLedger{Ledger: backend}
	ledger := network.NewCachingLedger(counting, tokenCache(t))

	for range 2 {
		_, err := ledger.TokenInfo(ctx, payer, "0.0.42")
		s, ok := network.StatusOf(err)
		require.True(t, ok)
		assert.Equal(t, network.StatusInvalidTokenID, s)
	}
	assert.Equal(t, 2, counting.tokenInfoCalls)
}
