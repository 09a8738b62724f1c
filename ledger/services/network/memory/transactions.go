/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package memory

import (
	"context"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

// txn carries one transaction from precheck to its recorded outcome.
type txn struct {
	id         network.TransactionID
	payer      *account
	signatures []string
	fee        int64
}

func (t *txn) signedBy(k network.Key) bool {
	return k.SatisfiedBy(t.signatures...)
}

func signaturesOf(identities ...network.Identity) ([]string, error) {
	out := make([]string, 0, len(identities))
	for _, id := range identities {
		pk, err := id.PublicKey()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot sign with key of [%s]", id.Account)
		}
		out = append(out, pk)
	}
	return out, nil
}

// precheck mirrors the node-side checks that reject a transaction without charging a fee.
// Must be called with l.mu held.
func (l *Ledger) precheck(ctx context.Context, payer network.Identity, fee int64, signers []network.Identity) (*txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := network.CheckPayer(payer); err != nil {
		return nil, err
	}
	a, ok := l.accounts[payer.Account]
	if !ok {
		return nil, network.NewStatusError("", network.StatusPayerAccountNotFound)
	}
	sigs, err := signaturesOf(append([]network.Identity{payer}, signers...)...)
	if err != nil {
		return nil, err
	}
	if !a.key.SatisfiedBy(sigs...) {
		return nil, network.NewStatusError("", network.StatusInvalidSignature)
	}
	if a.tinybars < fee {
		return nil, network.NewStatusError("", network.StatusInsufficientPayerBalance)
	}
	return &txn{
		id:         l.newTransactionID(payer.Account),
		payer:      a,
		signatures: sigs,
		fee:        fee,
	}, nil
}

// commit charges the fee and stores the record. A non-success status is returned as error.
// Must be called with l.mu held.
func (l *Ledger) commit(t *txn, receipt network.Receipt, status network.Status) (network.Receipt, error) {
	t.payer.tinybars -= t.fee
	receipt.TransactionID = t.id
	receipt.Status = status
	now := l.now()
	l.records[t.id] = &recordEntry{
		record: network.Record{
			Receipt:            receipt,
			Payer:              t.payer.id,
			TransactionFee:     t.fee,
			ConsensusTimestamp: now,
		},
		visibleAt: now.Add(l.recordLag),
	}
	l.executed[t.id] = struct{}{}
	if status != network.StatusSuccess {
		logger.Debugf("transaction [%s] failed with [%s]", t.id, status)
		return receipt, network.NewStatusError(t.id, status)
	}
	return receipt, nil
}

func (l *Ledger) CreateAccount(ctx context.Context, payer network.Identity, spec network.AccountSpec) (network.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.precheck(ctx, payer, l.fees.CryptoCreate+spec.InitialTinybars, nil)
	if err != nil {
		return network.Receipt{}, err
	}
	// the initial balance is moved, not charged
	t.fee = l.fees.CryptoCreate
	if spec.Key.Validate() != nil || spec.InitialTinybars < 0 {
		return l.commit(t, network.Receipt{}, network.StatusBadEncoding)
	}
	id := network.AccountID(l.newEntityID())
	t.payer.tinybars -= spec.InitialTinybars
	l.accounts[id] = &account{
		id:       id,
		key:      spec.Key,
		tinybars: spec.InitialTinybars,
		tokens:   map[network.TokenID]uint64{},
	}
	l.publish(func(v *mirrorView) { v.accounts[id] = struct{}{} })
	return l.commit(t, network.Receipt{AccountID: id}, network.StatusSuccess)
}

func (l *Ledger) CreateTopic(ctx context.Context, payer network.Identity, spec network.TopicSpec, signers ...network.Identity) (network.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.precheck(ctx, payer, l.fees.TopicCreate, signers)
	if err != nil {
		return network.Receipt{}, err
	}
	for _, k := range []*network.Key{spec.SubmitKey, spec.AdminKey} {
		if k != nil && k.Validate() != nil {
			return l.commit(t, network.Receipt{}, network.StatusBadEncoding)
		}
	}
	if spec.AdminKey != nil && !t.signedBy(*spec.AdminKey) {
		return l.commit(t, network.Receipt{}, network.StatusInvalidSignature)
	}
	id := network.TopicID(l.newEntityID())
	l.topics[id] = &topic{
		id:        id,
		memo:      spec.Memo,
		submitKey: spec.SubmitKey,
		adminKey:  spec.AdminKey,
	}
	l.publish(func(v *mirrorView) { v.topics[id] = map[uint64]network.Message{} })
	return l.commit(t, network.Receipt{TopicID: id}, network.StatusSuccess)
}

func (l *Ledger) SubmitMessage(ctx context.Context, payer network.Identity, topicID network.TopicID, message []byte, signers ...network.Identity) (network.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.precheck(ctx, payer, l.fees.TopicSubmit, signers)
	if err != nil {
		return network.Receipt{}, err
	}
	tp, ok := l.topics[topicID]
	if !ok {
		return l.commit(t, network.Receipt{}, network.StatusInvalidTopicID)
	}
	if len(message) == 0 {
		return l.commit(t, network.Receipt{}, network.StatusInvalidTopicMessage)
	}
	if tp.submitKey != nil && !t.signedBy(*tp.submitKey) {
		return l.commit(t, network.Receipt{}, network.StatusInvalidSignature)
	}
	tp.sequence++
	msg := network.Message{
		Topic:              topicID,
		SequenceNumber:     tp.sequence,
		Contents:           append([]byte(nil), message...),
		ConsensusTimestamp: l.now(),
	}
	l.publish(func(v *mirrorView) {
		if msgs, ok := v.topics[topicID]; ok {
			msgs[msg.SequenceNumber] = msg
		}
	})
	return l.commit(t, network.Receipt{TopicID: topicID, TopicSequenceNumber: tp.sequence}, network.StatusSuccess)
}

func (l *Ledger) TopicInfo(ctx context.Context, payer network.Identity, topicID network.TopicID) (network.TopicInfo, error) {
	if err := ctx.Err(); err != nil {
		return network.TopicInfo{}, err
	}
	if err := network.CheckPayer(payer); err != nil {
		return network.TopicInfo{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tp, ok := l.topics[topicID]
	if !ok {
		return network.TopicInfo{}, network.NewStatusError("", network.StatusInvalidTopicID)
	}
	return network.TopicInfo{
		ID:             tp.id,
		Memo:           tp.memo,
		SequenceNumber: tp.sequence,
		SubmitKey:      tp.submitKey,
	}, nil
}

func (l *Ledger) CreateToken(ctx context.Context, payer network.Identity, spec network.TokenSpec, signers ...network.Identity) (network.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.precheck(ctx, payer, l.fees.TokenCreate, signers)
	if err != nil {
		return network.Receipt{}, err
	}
	if status := l.checkTokenSpec(t, spec); status != network.StatusSuccess {
		return l.commit(t, network.Receipt{}, status)
	}
	id := network.TokenID(l.newEntityID())
	l.tokens[id] = &token{
		info: network.TokenInfo{
			ID:           id,
			Name:         spec.Name,
			Symbol:       spec.Symbol,
			Decimals:     spec.Decimals,
			TotalSupply:  spec.InitialSupply,
			MaxSupply:    spec.MaxSupply,
			SupplyType:   spec.SupplyType,
			Treasury:     spec.Treasury,
			HasSupplyKey: spec.SupplyKey != nil,
		},
		adminKey:  spec.AdminKey,
		supplyKey: spec.SupplyKey,
	}
	treasury := l.accounts[spec.Treasury]
	treasury.tokens[id] = spec.InitialSupply
	l.publishBalance(treasury.id, id, spec.InitialSupply)
	return l.commit(t, network.Receipt{TokenID: id, TotalSupply: spec.InitialSupply}, network.StatusSuccess)
}

func (l *Ledger) checkTokenSpec(t *txn, spec network.TokenSpec) network.Status {
	switch {
	case len(spec.Name) == 0:
		return network.StatusMissingTokenName
	case len(spec.Symbol) == 0:
		return network.StatusMissingTokenSymbol
	}
	treasury, ok := l.accounts[spec.Treasury]
	if !ok {
		return network.StatusInvalidTreasuryAccount
	}
	switch spec.SupplyType {
	case network.FiniteSupply:
		if spec.MaxSupply <= 0 {
			return network.StatusInvalidTokenMaxSupply
		}
		if spec.InitialSupply > uint64(spec.MaxSupply) {
			return network.StatusInvalidTokenInitialSupply
		}
	default:
		if spec.MaxSupply != 0 {
			return network.StatusInvalidTokenMaxSupply
		}
	}
	for _, k := range []*network.Key{spec.AdminKey, spec.SupplyKey} {
		if k != nil && k.Validate() != nil {
			return network.StatusBadEncoding
		}
	}
	if !t.signedBy(treasury.key) {
		return network.StatusInvalidSignature
	}
	if spec.AdminKey != nil && !t.signedBy(*spec.AdminKey) {
		return network.StatusInvalidSignature
	}
	return network.StatusSuccess
}

func (l *Ledger) MintToken(ctx context.Context, payer network.Identity, tokenID network.TokenID, amount uint64, signers ...network.Identity) (network.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.precheck(ctx, payer, l.fees.TokenMint, signers)
	if err != nil {
		return network.Receipt{}, err
	}
	tk, ok := l.tokens[tokenID]
	if !ok {
		return l.commit(t, network.Receipt{}, network.StatusInvalidTokenID)
	}
	if tk.supplyKey == nil {
		return l.commit(t, network.Receipt{}, network.StatusTokenHasNoSupplyKey)
	}
	if !t.signedBy(*tk.supplyKey) {
		return l.commit(t, network.Receipt{}, network.StatusInvalidSignature)
	}
	if tk.info.SupplyType == network.FiniteSupply && tk.info.TotalSupply+amount > uint64(tk.info.MaxSupply) {
		return l.commit(t, network.Receipt{}, network.StatusTokenMaxSupplyReached)
	}
	tk.info.TotalSupply += amount
	treasury := l.accounts[tk.info.Treasury]
	treasury.tokens[tokenID] += amount
	l.publishBalance(treasury.id, tokenID, treasury.tokens[tokenID])
	return l.commit(t, network.Receipt{TokenID: tokenID, TotalSupply: tk.info.TotalSupply}, network.StatusSuccess)
}

func (l *Ledger) TokenInfo(ctx context.Context, payer network.Identity, tokenID network.TokenID) (network.TokenInfo, error) {
	if err := ctx.Err(); err != nil {
		return network.TokenInfo{}, err
	}
	if err := network.CheckPayer(payer); err != nil {
		return network.TokenInfo{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tk, ok := l.tokens[tokenID]
	if !ok {
		return network.TokenInfo{}, network.NewStatusError("", network.StatusInvalidTokenID)
	}
	return tk.info, nil
}

func (l *Ledger) AssociateToken(ctx context.Context, payer network.Identity, accountID network.AccountID, tokens []network.TokenID, signers ...network.Identity) (network.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.precheck(ctx, payer, l.fees.TokenAssociate, signers)
	if err != nil {
		return network.Receipt{}, err
	}
	a, ok := l.accounts[accountID]
	if !ok {
		return l.commit(t, network.Receipt{}, network.StatusInvalidAccountID)
	}
	if !t.signedBy(a.key) {
		return l.commit(t, network.Receipt{}, network.StatusInvalidSignature)
	}
	for _, tok := range tokens {
		if _, ok := l.tokens[tok]; !ok {
			return l.commit(t, network.Receipt{}, network.StatusInvalidTokenID)
		}
		if _, ok := a.tokens[tok]; ok {
			return l.commit(t, network.Receipt{}, network.StatusTokenAlreadyAssociatedToAccount)
		}
	}
	for _, tok := range tokens {
		a.tokens[tok] = 0
		l.publishBalance(a.id, tok, 0)
	}
	return l.commit(t, network.Receipt{AccountID: accountID}, network.StatusSuccess)
}
