/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"context"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
)

type balanceKey struct {
	account network.AccountID
	token   network.TokenID
}

// mirrorView is what the mirror has ingested so far.
type mirrorView struct {
	accounts map[network.AccountID]struct{}
	balances map[balanceKey]uint64
	topics   map[network.TopicID]map[uint64]network.Message
}

func newMirrorView() *mirrorView {
	return &mirrorView{
		accounts: map[network.AccountID]struct{}{},
		balances: map[balanceKey]uint64{},
		topics:   map[network.TopicID]map[uint64]network.Message{},
	}
}

type pendingChange struct {
	due   time.Time
	apply func(*mirrorView)
}

// publish queues a change for the mirror. Must be called with l.mu held.
func (l *Ledger) publish(apply func(*mirrorView)) {
	l.pending = append(l.pending, pendingChange{due: l.now().Add(l.mirrorLag), apply: apply})
}

func (l *Ledger) publishBalance(account network.AccountID, tok network.TokenID, value uint64) {
	l.publish(func(v *mirrorView) { v.balances[balanceKey{account, tok}] = value })
}

// settle applies, in order, every change that is due. Must be called with l.mu held.
func (l *Ledger) settle() {
	now := l.now()
	i := 0
	for ; i < len(l.pending) && !l.pending[i].due.After(now); i++ {
		l.pending[i].apply(l.view)
	}
	l.pending = l.pending[i:]
}

func (l *Ledger) TokenBalance(ctx context.Context, account network.AccountID, tok network.TokenID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settle()
	if _, ok := l.view.accounts[account]; !ok {
		return 0, network.ErrNotFound
	}
	return l.view.balances[balanceKey{account, tok}], nil
}

func (l *Ledger) TopicMessage(ctx context.Context, topicID network.TopicID, sequence uint64) (network.Message, error) {
	if err := ctx.Err(); err != nil {
		return network.Message{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settle()
	msgs, ok := l.view.topics[topicID]
	if !ok {
		return network.Message{}, network.ErrNotFound
	}
	m, ok := msgs[sequence]
	if !ok {
		return network.Message{}, network.ErrNotFound
	}
	return m, nil
}

func (l *Ledger) TopicExists(ctx context.Context, topicID network.TopicID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settle()
	_, ok := l.view.topics[topicID]
	return ok, nil
}
