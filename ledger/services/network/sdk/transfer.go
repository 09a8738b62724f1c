/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdk

import (
	"context"
	"sync"

	"github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

// NewTransfer freezes a token transfer with a transaction id of the payer and the spec's nodes.
// It carries no signature until Sign or Execute is called.
func (l *Ledger) NewTransfer(ctx context.Context, spec network.TransferSpec) (network.PendingTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid transfer")
	}
	payer, err := accountID(spec.Payer)
	if err != nil {
		return nil, err
	}
	nodes, err := accountIDs(spec.Nodes)
	if err != nil {
		return nil, err
	}

	id := hedera.TransactionIDGenerate(payer)
	tx := hedera.NewTransferTransaction().
		SetTransactionID(id).
		SetNodeAccountIDs(nodes).
		SetTransactionValidDuration(spec.ValidDuration)
	if len(spec.Memo) != 0 {
		tx.SetTransactionMemo(spec.Memo)
	}
	for _, leg := range spec.Transfers {
		tok, err := tokenID(leg.Token)
		if err != nil {
			return nil, err
		}
		acct, err := accountID(leg.Account)
		if err != nil {
			return nil, err
		}
		tx.AddTokenTransfer(tok, acct, leg.Amount)
	}
	frozen, err := tx.FreezeWith(l.bare)
	if err != nil {
		return nil, errors.Wrapf(err, "failed freezing transfer [%s]", id.String())
	}
	return &pendingTransfer{
		ledger: l,
		id:     network.TransactionID(id.String()),
		spec:   spec,
		tx:     frozen,
	}, nil
}

type pendingTransfer struct {
	ledger *Ledger
	id     network.TransactionID
	spec   network.TransferSpec

	mu      sync.Mutex
	tx      *hedera.TransferTransaction
	signers []string
}

func (p *pendingTransfer) ID() network.TransactionID { return p.id }

func (p *pendingTransfer) Spec() network.TransferSpec { return p.spec }

func (p *pendingTransfer) Sign(signer network.Identity) error {
	pk, err := privateKey(signer)
	if err != nil {
		return errors.Wrapf(err, "cannot sign transaction [%s]", p.id)
	}
	pub := pk.PublicKey().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.signers {
		if s == pub {
			return nil
		}
	}
	p.tx = p.tx.Sign(pk)
	p.signers = append(p.signers, pub)
	return nil
}

func (p *pendingTransfer) Signers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signers...)
}

// Execute submits the transfer through the submitter's client. The SDK adds the submitter's
// signature only when the submitter is the payer.
func (p *pendingTransfer) Execute(ctx context.Context, submitter network.Identity) (network.Receipt, error) {
	c, err := p.ledger.clientFor(submitter)
	if err != nil {
		return network.Receipt{}, err
	}
	p.mu.Lock()
	tx := p.tx
	p.mu.Unlock()
	return awaitReceipt(ctx, "token transfer", c, func() (hedera.TransactionResponse, error) {
		return tx.Execute(c)
	})
}
