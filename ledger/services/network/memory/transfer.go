/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

func (l *Ledger) NewTransfer(ctx context.Context, spec network.TransferSpec) (network.PendingTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid transfer")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &pendingTransfer{
		ledger:    l,
		id:        l.newTransactionID(spec.Payer),
		spec:      spec,
		createdAt: l.now(),
	}, nil
}

type pendingTransfer struct {
	ledger    *Ledger
	id        network.TransactionID
	spec      network.TransferSpec
	createdAt time.Time

	mu      sync.Mutex
	signers []string
}

func (p *pendingTransfer) ID() network.TransactionID { return p.id }

func (p *pendingTransfer) Spec() network.TransferSpec { return p.spec }

func (p *pendingTransfer) Sign(signer network.Identity) error {
	pk, err := signer.PublicKey()
	if err != nil {
		return errors.Wrapf(err, "cannot sign transaction [%s] as [%s]", p.id, signer.Account)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.signers {
		if s == pk {
			return nil
		}
	}
	p.signers = append(p.signers, pk)
	return nil
}

func (p *pendingTransfer) Signers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signers...)
}

// Execute submits the transfer. The submitter signs only when it is the payer, as the SDK
// does for its operator.
func (p *pendingTransfer) Execute(ctx context.Context, submitter network.Identity) (network.Receipt, error) {
	if err := network.CheckPayer(submitter); err != nil {
		return network.Receipt{}, err
	}
	if submitter.Account == p.spec.Payer {
		if err := p.Sign(submitter); err != nil {
			return network.Receipt{}, err
		}
	}
	return p.ledger.executeTransfer(ctx, p)
}

func (l *Ledger) executeTransfer(ctx context.Context, p *pendingTransfer) (network.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return network.Receipt{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, n := range p.spec.Nodes {
		if _, ok := l.nodes[n]; !ok {
			return network.Receipt{}, network.NewStatusError(p.id, network.StatusInvalidNodeAccount)
		}
	}
	if _, done := l.executed[p.id]; done {
		return network.Receipt{}, network.NewStatusError(p.id, network.StatusDuplicateTransaction)
	}
	if l.now().After(p.createdAt.Add(p.spec.ValidDuration)) {
		return network.Receipt{}, network.NewStatusError(p.id, network.StatusTransactionExpired)
	}
	payer, ok := l.accounts[p.spec.Payer]
	if !ok {
		return network.Receipt{}, network.NewStatusError(p.id, network.StatusPayerAccountNotFound)
	}
	t := &txn{id: p.id, payer: payer, signatures: p.Signers(), fee: l.fees.CryptoTransfer}
	if !t.signedBy(payer.key) {
		return network.Receipt{}, network.NewStatusError(p.id, network.StatusInvalidSignature)
	}
	if payer.tinybars < t.fee {
		return network.Receipt{}, network.NewStatusError(p.id, network.StatusInsufficientPayerBalance)
	}

	if status := l.checkTransfer(t, p.spec); status != network.StatusSuccess {
		return l.commit(t, network.Receipt{}, status)
	}
	for _, leg := range p.spec.Transfers {
		a := l.accounts[leg.Account]
		a.tokens[leg.Token] = uint64(int64(a.tokens[leg.Token]) + leg.Amount)
		l.publishBalance(a.id, leg.Token, a.tokens[leg.Token])
	}
	logger.Debugf("transfer [%s] applied %d legs", p.id, len(p.spec.Transfers))
	return l.commit(t, network.Receipt{}, network.StatusSuccess)
}

func (l *Ledger) checkTransfer(t *txn, spec network.TransferSpec) network.Status {
	sums := map[network.TokenID]int64{}
	after := map[network.AccountID]map[network.TokenID]int64{}
	for _, leg := range spec.Transfers {
		tk, ok := l.tokens[leg.Token]
		if !ok {
			return network.StatusInvalidTokenID
		}
		a, ok := l.accounts[leg.Account]
		if !ok {
			return network.StatusInvalidAccountID
		}
		held, associated := a.tokens[leg.Token]
		if !associated && a.id != tk.info.Treasury {
			return network.StatusTokenNotAssociatedToAccount
		}
		if after[a.id] == nil {
			after[a.id] = map[network.TokenID]int64{}
		}
		if _, ok := after[a.id][leg.Token]; !ok {
			after[a.id][leg.Token] = int64(held)
		}
		after[a.id][leg.Token] += leg.Amount
		sums[leg.Token] += leg.Amount
	}
	for _, sum := range sums {
		if sum != 0 {
			return network.StatusTransfersNotZeroSumForToken
		}
	}
	for _, sender := range spec.Senders() {
		if !t.signedBy(l.accounts[sender].key) {
			return network.StatusInvalidSignature
		}
	}
	for _, balances := range after {
		for _, b := range balances {
			if b < 0 {
				return network.StatusInsufficientTokenBalance
			}
		}
	}
	return network.StatusSuccess
}
