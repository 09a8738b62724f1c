/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdk implements network.Ledger on top of the hedera SDK. Each payer identity gets its
// own client with the identity bound as operator, so no operator is ever swapped on a shared
// client.
package sdk

import (
	"context"
	"sync"
	"time"

	"github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger()

type Config struct {
	// Network is a name known to the SDK: mainnet, testnet, previewnet or local.
	Network        string
	MirrorNetwork  []string
	RequestTimeout time.Duration
}

type operatorClient struct {
	privateKey string
	client     *hedera.Client
}

type Ledger struct {
	cfg Config

	// bare has no operator; it serves free queries and freezes transfers.
	bare *hedera.Client

	mu      sync.Mutex
	clients map[network.AccountID]*operatorClient
}

var _ network.Ledger = (*Ledger)(nil)

func New(cfg Config) (*Ledger, error) {
	bare, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		cfg:     cfg,
		bare:    bare,
		clients: map[network.AccountID]*operatorClient{},
	}, nil
}

func newClient(cfg Config) (*hedera.Client, error) {
	c, err := hedera.ClientForName(cfg.Network)
	if err != nil {
		return nil, errors.Wrapf(err, "failed creating client for network [%s]", cfg.Network)
	}
	if len(cfg.MirrorNetwork) != 0 {
		c.SetMirrorNetwork(cfg.MirrorNetwork)
	}
	if cfg.RequestTimeout > 0 {
		timeout := cfg.RequestTimeout
		c.SetRequestTimeout(&timeout)
	}
	return c, nil
}

// clientFor returns the client operated by payer, creating it on first use.
func (l *Ledger) clientFor(payer network.Identity) (*hedera.Client, error) {
	pk, err := privateKey(payer)
	if err != nil {
		return nil, err
	}
	id, err := accountID(payer.Account)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if oc, ok := l.clients[payer.Account]; ok {
		if oc.privateKey == payer.PrivateKey {
			return oc.client, nil
		}
		logger.Warnf("key of operator [%s] changed, replacing its client", payer.Account)
		if err := oc.client.Close(); err != nil {
			logger.Warnf("failed closing client of [%s]: %s", payer.Account, err)
		}
	}
	c, err := newClient(l.cfg)
	if err != nil {
		return nil, err
	}
	c.SetOperator(id, pk)
	l.clients[payer.Account] = &operatorClient{privateKey: payer.PrivateKey, client: c}
	logger.Debugf("created client for operator [%s]", payer.Account)
	return c, nil
}

func signingKeys(payer network.Identity, signers []network.Identity) ([]hedera.PrivateKey, error) {
	keys := make([]hedera.PrivateKey, 0, len(signers))
	for _, s := range signers {
		if s.Account == payer.Account && s.PrivateKey == payer.PrivateKey {
			// the operator signs its own transactions
			continue
		}
		pk, err := privateKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

// run calls fn, which blocks inside the SDK, and gives up waiting when ctx ends.
func run[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrapf(ctx.Err(), "%s abandoned", op)
	case r := <-done:
		return r.v, translate(op, r.err)
	}
}

type executable[T any] interface {
	Sign(hedera.PrivateKey) T
	Execute(*hedera.Client) (hedera.TransactionResponse, error)
}

func signAndExecute[T executable[T]](c *hedera.Client, keys []hedera.PrivateKey, tx T, err error) (hedera.TransactionResponse, error) {
	if err != nil {
		return hedera.TransactionResponse{}, errors.Wrap(err, "failed freezing transaction")
	}
	for _, k := range keys {
		tx = tx.Sign(k)
	}
	return tx.Execute(c)
}

// submit executes a transaction built by execute and waits for its receipt.
func (l *Ledger) submit(ctx context.Context, op string, payer network.Identity, signers []network.Identity,
	execute func(*hedera.Client, []hedera.PrivateKey) (hedera.TransactionResponse, error)) (network.Receipt, error) {
	c, err := l.clientFor(payer)
	if err != nil {
		return network.Receipt{}, err
	}
	keys, err := signingKeys(payer, signers)
	if err != nil {
		return network.Receipt{}, err
	}
	return awaitReceipt(ctx, op, c, func() (hedera.TransactionResponse, error) {
		return execute(c, keys)
	})
}

func awaitReceipt(ctx context.Context, op string, c *hedera.Client, execute func() (hedera.TransactionResponse, error)) (network.Receipt, error) {
	r, err := run(ctx, op, func() (network.Receipt, error) {
		resp, err := execute()
		if err != nil {
			return network.Receipt{}, err
		}
		receipt, err := resp.GetReceipt(c)
		out := fromReceipt(resp.TransactionID, receipt)
		if err != nil {
			return out, err
		}
		if receipt.Status != hedera.StatusSuccess {
			return out, network.NewStatusError(out.TransactionID, out.Status)
		}
		return out, nil
	})
	if err != nil {
		logger.Debugf("%s [%s] failed: %s", op, r.TransactionID, err)
	}
	return r, err
}

func (l *Ledger) AccountBalance(ctx context.Context, id network.AccountID) (network.Balance, error) {
	acct, err := accountID(id)
	if err != nil {
		return network.Balance{}, err
	}
	b, err := run(ctx, "account balance query", func() (hedera.AccountBalance, error) {
		return hedera.NewAccountBalanceQuery().SetAccountID(acct).Execute(l.bare)
	})
	if err != nil {
		return network.Balance{}, err
	}
	return network.Balance{Account: id, Tinybars: b.Hbars.AsTinybar()}, nil
}

func (l *Ledger) CreateAccount(ctx context.Context, payer network.Identity, spec network.AccountSpec) (network.Receipt, error) {
	key, err := toKey(spec.Key)
	if err != nil {
		return network.Receipt{}, errors.Wrap(err, "invalid account key")
	}
	return l.submit(ctx, "account create", payer, nil, func(c *hedera.Client, keys []hedera.PrivateKey) (hedera.TransactionResponse, error) {
		tx, err := hedera.NewAccountCreateTransaction().
			SetKey(key).
			SetInitialBalance(hedera.HbarFromTinybar(spec.InitialTinybars)).
			FreezeWith(c)
		return signAndExecute(c, keys, tx, err)
	})
}

func (l *Ledger) CreateTopic(ctx context.Context, payer network.Identity, spec network.TopicSpec, signers ...network.Identity) (network.Receipt, error) {
	tx := hedera.NewTopicCreateTransaction().SetTopicMemo(spec.Memo)
	if spec.SubmitKey != nil {
		k, err := toKey(*spec.SubmitKey)
		if err != nil {
			return network.Receipt{}, errors.Wrap(err, "invalid submit key")
		}
		tx.SetSubmitKey(k)
	}
	if spec.AdminKey != nil {
		k, err := toKey(*spec.AdminKey)
		if err != nil {
			return network.Receipt{}, errors.Wrap(err, "invalid admin key")
		}
		tx.SetAdminKey(k)
	}
	return l.submit(ctx, "topic create", payer, signers, func(c *hedera.Client, keys []hedera.PrivateKey) (hedera.TransactionResponse, error) {
		frozen, err := tx.FreezeWith(c)
		return signAndExecute(c, keys, frozen, err)
	})
}

func (l *Ledger) SubmitMessage(ctx context.Context, payer network.Identity, topic network.TopicID, message []byte, signers ...network.Identity) (network.Receipt, error) {
	t, err := topicID(topic)
	if err != nil {
		return network.Receipt{}, err
	}
	return l.submit(ctx, "topic message submit", payer, signers, func(c *hedera.Client, keys []hedera.PrivateKey) (hedera.TransactionResponse, error) {
		tx, err := hedera.NewTopicMessageSubmitTransaction().
			SetTopicID(t).
			SetMessage(message).
			FreezeWith(c)
		return signAndExecute(c, keys, tx, err)
	})
}

func (l *Ledger) TopicInfo(ctx context.Context, payer network.Identity, topic network.TopicID) (network.TopicInfo, error) {
	t, err := topicID(topic)
	if err != nil {
		return network.TopicInfo{}, err
	}
	c, err := l.clientFor(payer)
	if err != nil {
		return network.TopicInfo{}, err
	}
	info, err := run(ctx, "topic info query", func() (hedera.TopicInfo, error) {
		return hedera.NewTopicInfoQuery().SetTopicID(t).Execute(c)
	})
	if err != nil {
		return network.TopicInfo{}, err
	}
	return network.TopicInfo{
		ID:             topic,
		Memo:           info.TopicMemo,
		SequenceNumber: info.SequenceNumber,
		SubmitKey:      fromKey(info.SubmitKey),
	}, nil
}

func (l *Ledger) CreateToken(ctx context.Context, payer network.Identity, spec network.TokenSpec, signers ...network.Identity) (network.Receipt, error) {
	treasury, err := accountID(spec.Treasury)
	if err != nil {
		return network.Receipt{}, err
	}
	tx := hedera.NewTokenCreateTransaction().
		SetTokenName(spec.Name).
		SetTokenSymbol(spec.Symbol).
		SetDecimals(uint(spec.Decimals)).
		SetInitialSupply(spec.InitialSupply).
		SetTreasuryAccountID(treasury).
		SetTokenType(hedera.TokenTypeFungibleCommon).
		SetSupplyType(supplyType(spec.SupplyType))
	if spec.SupplyType == network.FiniteSupply {
		tx.SetMaxSupply(spec.MaxSupply)
	}
	if spec.AdminKey != nil {
		k, err := toKey(*spec.AdminKey)
		if err != nil {
			return network.Receipt{}, errors.Wrap(err, "invalid admin key")
		}
		tx.SetAdminKey(k)
	}
	if spec.SupplyKey != nil {
		k, err := toKey(*spec.SupplyKey)
		if err != nil {
			return network.Receipt{}, errors.Wrap(err, "invalid supply key")
		}
		tx.SetSupplyKey(k)
	}
	return l.submit(ctx, "token create", payer, signers, func(c *hedera.Client, keys []hedera.PrivateKey) (hedera.TransactionResponse, error) {
		frozen, err := tx.FreezeWith(c)
		return signAndExecute(c, keys, frozen, err)
	})
}

func (l *Ledger) MintToken(ctx context.Context, payer network.Identity, token network.TokenID, amount uint64, signers ...network.Identity) (network.Receipt, error) {
	t, err := tokenID(token)
	if err != nil {
		return network.Receipt{}, err
	}
	return l.submit(ctx, "token mint", payer, signers, func(c *hedera.Client, keys []hedera.PrivateKey) (hedera.TransactionResponse, error) {
		tx, err := hedera.NewTokenMintTransaction().
			SetTokenID(t).
			SetAmount(amount).
			FreezeWith(c)
		return signAndExecute(c, keys, tx, err)
	})
}

func (l *Ledger) TokenInfo(ctx context.Context, payer network.Identity, token network.TokenID) (network.TokenInfo, error) {
	t, err := tokenID(token)
	if err != nil {
		return network.TokenInfo{}, err
	}
	c, err := l.clientFor(payer)
	if err != nil {
		return network.TokenInfo{}, err
	}
	info, err := run(ctx, "token info query", func() (hedera.TokenInfo, error) {
		return hedera.NewTokenInfoQuery().SetTokenID(t).Execute(c)
	})
	if err != nil {
		return network.TokenInfo{}, err
	}
	return fromTokenInfo(token, info), nil
}

func (l *Ledger) AssociateToken(ctx context.Context, payer network.Identity, account network.AccountID, tokens []network.TokenID, signers ...network.Identity) (network.Receipt, error) {
	a, err := accountID(account)
	if err != nil {
		return network.Receipt{}, err
	}
	ids := make([]hedera.TokenID, 0, len(tokens))
	for _, tok := range tokens {
		t, err := tokenID(tok)
		if err != nil {
			return network.Receipt{}, err
		}
		ids = append(ids, t)
	}
	return l.submit(ctx, "token associate", payer, signers, func(c *hedera.Client, keys []hedera.PrivateKey) (hedera.TransactionResponse, error) {
		tx, err := hedera.NewTokenAssociateTransaction().
			SetAccountID(a).
			SetTokenIDs(ids...).
			FreezeWith(c)
		return signAndExecute(c, keys, tx, err)
	})
}

func (l *Ledger) Record(ctx context.Context, payer network.Identity, tx network.TransactionID) (network.Record, error) {
	id, err := hedera.TransactionIdFromString(string(tx))
	if err != nil {
		return network.Record{}, errors.Wrapf(err, "invalid transaction id [%s]", tx)
	}
	c, err := l.clientFor(payer)
	if err != nil {
		return network.Record{}, err
	}
	rec, err := run(ctx, "transaction record query", func() (hedera.TransactionRecord, error) {
		return hedera.NewTransactionRecordQuery().SetTransactionID(id).Execute(c)
	})
	if err != nil {
		return network.Record{}, err
	}
	out := network.Record{
		Receipt:            fromReceipt(id, rec.Receipt),
		TransactionFee:     rec.TransactionFee.AsTinybar(),
		ConsensusTimestamp: rec.ConsensusTimestamp,
	}
	if rec.TransactionID.AccountID != nil {
		out.Payer = network.AccountID(rec.TransactionID.AccountID.String())
	}
	return out, nil
}

// Close releases every client.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for id, oc := range l.clients {
		if err := oc.client.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "failed closing client of [%s]", id)
		}
		delete(l.clients, id)
	}
	if err := l.bare.Close(); err != nil && first == nil {
		first = errors.Wrap(err, "failed closing client")
	}
	return first
}
