/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdk

import (
	"github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

func accountID(id network.AccountID) (hedera.AccountID, error) {
	a, err := hedera.AccountIDFromString(string(id))
	if err != nil {
		return hedera.AccountID{}, errors.Wrapf(err, "invalid account id [%s]", id)
	}
	return a, nil
}

func accountIDs(ids []network.AccountID) ([]hedera.AccountID, error) {
	out := make([]hedera.AccountID, 0, len(ids))
	for _, id := range ids {
		a, err := accountID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func topicID(id network.TopicID) (hedera.TopicID, error) {
	t, err := hedera.TopicIDFromString(string(id))
	if err != nil {
		return hedera.TopicID{}, errors.Wrapf(err, "invalid topic id [%s]", id)
	}
	return t, nil
}

func tokenID(id network.TokenID) (hedera.TokenID, error) {
	t, err := hedera.TokenIDFromString(string(id))
	if err != nil {
		return hedera.TokenID{}, errors.Wrapf(err, "invalid token id [%s]", id)
	}
	return t, nil
}

func privateKey(id network.Identity) (hedera.PrivateKey, error) {
	if err := network.CheckPayer(id); err != nil {
		return hedera.PrivateKey{}, err
	}
	pk, err := hedera.PrivateKeyFromStringEd25519(id.PrivateKey)
	if err != nil {
		return hedera.PrivateKey{}, errors.Wrapf(err, "invalid private key of [%s]", id.Account)
	}
	return pk, nil
}

// toKey converts a key structure: a single key stays a public key, anything else becomes a
// key list with the required threshold.
func toKey(k network.Key) (hedera.Key, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if !k.IsThreshold() {
		pk, err := hedera.PublicKeyFromString(k.PublicKeys[0])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid public key [%s]", k.PublicKeys[0])
		}
		return pk, nil
	}
	list := hedera.KeyListWithThreshold(uint(k.Required()))
	for _, s := range k.PublicKeys {
		pk, err := hedera.PublicKeyFromString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid public key [%s]", s)
		}
		list.Add(pk)
	}
	return list, nil
}

// fromKey reads back a single public key. Key lists are not introspectable through the SDK and
// yield nil.
func fromKey(k hedera.Key) *network.Key {
	switch key := k.(type) {
	case hedera.PublicKey:
		s := network.SingleKey(key.String())
		return &s
	case *hedera.PublicKey:
		if key == nil {
			return nil
		}
		s := network.SingleKey(key.String())
		return &s
	}
	return nil
}

func supplyType(t network.SupplyType) hedera.TokenSupplyType {
	if t == network.FiniteSupply {
		return hedera.TokenSupplyTypeFinite
	}
	return hedera.TokenSupplyTypeInfinite
}

func fromSupplyType(t hedera.TokenSupplyType) network.SupplyType {
	if t == hedera.TokenSupplyTypeFinite {
		return network.FiniteSupply
	}
	return network.InfiniteSupply
}

func fromReceipt(tx hedera.TransactionID, r hedera.TransactionReceipt) network.Receipt {
	out := network.Receipt{
		TransactionID:       txID(tx),
		Status:              network.Status(r.Status.String()),
		TopicSequenceNumber: r.TopicSequenceNumber,
		TotalSupply:         r.TotalSupply,
	}
	if r.AccountID != nil {
		out.AccountID = network.AccountID(r.AccountID.String())
	}
	if r.TopicID != nil {
		out.TopicID = network.TopicID(r.TopicID.String())
	}
	if r.TokenID != nil {
		out.TokenID = network.TokenID(r.TokenID.String())
	}
	return out
}

func fromTokenInfo(id network.TokenID, info hedera.TokenInfo) network.TokenInfo {
	out := network.TokenInfo{
		ID:           id,
		Name:         info.Name,
		Symbol:       info.Symbol,
		Decimals:     info.Decimals,
		TotalSupply:  info.TotalSupply,
		MaxSupply:    info.MaxSupply,
		SupplyType:   fromSupplyType(info.SupplyType),
		HasSupplyKey: info.SupplyKey != nil,
	}
	if info.Treasury != (hedera.AccountID{}) {
		out.Treasury = network.AccountID(info.Treasury.String())
	}
	return out
}

func txID(id hedera.TransactionID) network.TransactionID {
	if id.AccountID == nil || id.ValidStart == nil {
		return ""
	}
	return network.TransactionID(id.String())
}

// translate turns the SDK's status errors into network.StatusError, keeping op as context.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var receiptErr hedera.ErrHederaReceiptStatus
	if errors.As(err, &receiptErr) {
		return errors.Wrapf(network.NewStatusError(txID(receiptErr.TxID), network.Status(receiptErr.Status.String())), "%s", op)
	}
	var precheckErr hedera.ErrHederaPreCheckStatus
	if errors.As(err, &precheckErr) {
		return errors.Wrapf(network.NewStatusError(txID(precheckErr.TxID), network.Status(precheckErr.Status.String())), "%s", op)
	}
	return errors.Wrapf(err, "%s", op)
}
