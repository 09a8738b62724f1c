/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdk

import (
	"context"
	"testing"
	"time"

	"github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToKey(t *testing.T) {
	_, a, err := network.GenerateKey()
	require.NoError(t, err)
	_, b, err := network.GenerateKey()
	require.NoError(t, err)

	single, err := toKey(network.SingleKey(a))
	require.NoError(t, err)
	pk, ok := single.(hedera.PublicKey)
	require.True(t, ok)
	assert.Equal(t, a, pk.String())
	assert.Equal(t, &network.Key{PublicKeys: []string{a}}, fromKey(single))

	threshold, err := toKey(network.ThresholdKey(1, a, b))
	require.NoError(t, err)
	_, ok = threshold.(*hedera.KeyList)
	assert.True(t, ok)
	assert.Nil(t, fromKey(threshold))

	_, err = toKey(network.Key{})
	assert.Error(t, err)
	_, err = toKey(network.SingleKey("zz"))
	assert.Error(t, err)
}

func TestIDs(t *testing.T) {
	a, err := accountID("0.0.5613562")
	require.NoError(t, err)
	assert.Equal(t, uint64(5613562), a.Account)

	_, err = accountID("alice")
	assert.Error(t, err)
	_, err = topicID("0.0.x")
	assert.Error(t, err)
	tok, err := tokenID("0.0.7000")
	require.NoError(t, err)
	assert.Equal(t, "0.0.7000", tok.String())

	ids, err := accountIDs([]network.AccountID{"0.0.3", "0.0.4"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestPrivateKey(t *testing.T) {
	_, err := privateKey(network.Identity{})
	assert.ErrorIs(t, err, network.ErrNoPayer)

	_, err = privateKey(network.Identity{Account: "0.0.1", PrivateKey: "nope"})
	assert.Error(t, err)

	priv, pub, err := network.GenerateKey()
	require.NoError(t, err)
	pk, err := privateKey(network.Identity{Account: "0.0.1", PrivateKey: priv})
	require.NoError(t, err)
	assert.Equal(t, pub, pk.PublicKey().String())
}

func TestSigningKeysSkipPayer(t *testing.T) {
	p, _, err := network.GenerateKey()
	require.NoError(t, err)
	s, _, err := network.GenerateKey()
	require.NoError(t, err)
	payer := network.Identity{Account: "0.0.1", PrivateKey: p}
	other := network.Identity{Account: "0.0.2", PrivateKey: s}

	keys, err := signingKeys(payer, []network.Identity{payer, other})
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("token mint", nil))

	acct, err := hedera.AccountIDFromString("0.0.5613562")
	require.NoError(t, err)
	txID := hedera.TransactionIDGenerate(acct)

	err = translate("token mint", hedera.ErrHederaReceiptStatus{TxID: txID, Status: hedera.StatusTokenHasNoSupplyKey})
	s, ok := network.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, network.StatusTokenHasNoSupplyKey, s)
	var se *network.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, network.TransactionID(txID.String()), se.TransactionID)
	assert.Contains(t, err.Error(), "token mint")

	err = translate("topic create", hedera.ErrHederaPreCheckStatus{Status: hedera.StatusInsufficientPayerBalance})
	s, ok = network.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, network.StatusInsufficientPayerBalance, s)
	require.True(t, errors.As(err, &se))
	assert.Empty(t, se.TransactionID)

	err = translate("topic create", errors.New("connection refused"))
	_, ok = network.StatusOf(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFromTokenInfo(t *testing.T) {
	treasury, err := hedera.AccountIDFromString("0.0.5613562")
	require.NoError(t, err)
	_, pub, err := network.GenerateKey()
	require.NoError(t, err)
	pk, err := hedera.PublicKeyFromString(pub)
	require.NoError(t, err)

	info := fromTokenInfo("0.0.7000", hedera.TokenInfo{
		Name: "Test Token", Symbol: "HTT", Decimals: 2, TotalSupply: 1000, MaxSupply: 1000,
		SupplyType: hedera.TokenSupplyTypeFinite, Treasury: treasury, SupplyKey: pk,
	})
	assert.Equal(t, network.TokenInfo{
		ID: "0.0.7000", Name: "Test Token", Symbol: "HTT", Decimals: 2, TotalSupply: 1000, MaxSupply: 1000,
		SupplyType: network.FiniteSupply, Treasury: "0.0.5613562", HasSupplyKey: true,
	}, info)

	empty := fromTokenInfo("0.0.7000", hedera.TokenInfo{})
	assert.False(t, empty.HasSupplyKey)
	assert.Empty(t, empty.Treasury)
	assert.Equal(t, network.InfiniteSupply, fromSupplyType(hedera.TokenSupplyTypeInfinite))
	assert.Equal(t, hedera.TokenSupplyTypeFinite, supplyType(network.FiniteSupply))
}

func TestFromReceipt(t *testing.T) {
	topic, err := hedera.TopicIDFromString("0.0.8000")
	require.NoError(t, err)
	r := fromReceipt(hedera.TransactionID{}, hedera.TransactionReceipt{
		Status: hedera.StatusSuccess, TopicID: &topic, TopicSequenceNumber: 4,
	})
	assert.Equal(t, network.StatusSuccess, r.Status)
	assert.Equal(t, network.TopicID("0.0.8000"), r.TopicID)
	assert.Equal(t, uint64(4), r.TopicSequenceNumber)
	assert.Empty(t, r.TokenID)
	assert.Empty(t, r.TransactionID)
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	_, err := run(ctx, "token info query", func() (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	v, err := run(context.Background(), "token info query", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNewClientAppliesRequestTimeout(t *testing.T) {
	c, err := newClient(Config{Network: "testnet", RequestTimeout: 7 * time.Second})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.NotNil(t, c.GetRequestTimeout())
	assert.Equal(t, 7*time.Second, *c.GetRequestTimeout())

	_, err = newClient(Config{Network: "nowhere"})
	assert.Error(t, err)
}
