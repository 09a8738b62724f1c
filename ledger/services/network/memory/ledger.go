/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package memory is an in-process ledger that enforces the account, topic and token rules the
// scenarios rely on. Its mirror view lags behind consensus by a configurable delay.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger()

// Fees charged to the payer, in tinybars.
type Fees struct {
	CryptoCreate    int64
	TopicCreate     int64
	TopicSubmit     int64
	TokenCreate     int64
	TokenMint       int64
	TokenAssociate  int64
	CryptoTransfer  int64
	PaidQueryCharge int64
}

var DefaultFees = Fees{
	CryptoCreate:    5_000_000,
	TopicCreate:     1_000_000,
	TopicSubmit:     10_000,
	TokenCreate:     50_000_000,
	TokenMint:       100_000,
	TokenAssociate:  5_000_000,
	CryptoTransfer:  100_000,
	PaidQueryCharge: 0,
}

type Option func(*Ledger)

// WithClock replaces the wall clock; used to drive mirror and record lag in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMirrorLag delays every change before the mirror view reflects it.
func WithMirrorLag(d time.Duration) Option {
	return func(l *Ledger) { l.mirrorLag = d }
}

// WithRecordLag delays the availability of transaction records.
func WithRecordLag(d time.Duration) Option {
	return func(l *Ledger) { l.recordLag = d }
}

func WithFees(f Fees) Option {
	return func(l *Ledger) { l.fees = f }
}

// WithNodes sets the node accounts transactions may be pinned to.
func WithNodes(nodes ...network.AccountID) Option {
	return func(l *Ledger) {
		l.nodes = map[network.AccountID]struct{}{}
		for _, n := range nodes {
			l.nodes[n] = struct{}{}
		}
	}
}

type account struct {
	id       network.AccountID
	key      network.Key
	tinybars int64
	tokens   map[network.TokenID]uint64
}

type topic struct {
	id        network.TopicID
	memo      string
	submitKey *network.Key
	adminKey  *network.Key
	sequence  uint64
}

type token struct {
	info      network.TokenInfo
	adminKey  *network.Key
	supplyKey *network.Key
}

type recordEntry struct {
	record    network.Record
	visibleAt time.Time
}

type Ledger struct {
	mu        sync.Mutex
	now       func() time.Time
	mirrorLag time.Duration
	recordLag time.Duration
	fees      Fees
	nodes     map[network.AccountID]struct{}

	nextEntity uint64
	txSeq      int64

	accounts map[network.AccountID]*account
	topics   map[network.TopicID]*topic
	tokens   map[network.TokenID]*token
	records  map[network.TransactionID]*recordEntry
	executed map[network.TransactionID]struct{}

	view    *mirrorView
	pending []pendingChange
}

var (
	_ network.Ledger = (*Ledger)(nil)
	_ network.Mirror = (*Ledger)(nil)
)

func New(opts ...Option) *Ledger {
	l := &Ledger{
		now:        time.Now,
		fees:       DefaultFees,
		nextEntity: 1000,
		accounts:   map[network.AccountID]*account{},
		topics:     map[network.TopicID]*topic{},
		tokens:     map[network.TokenID]*token{},
		records:    map[network.TransactionID]*recordEntry{},
		executed:   map[network.TransactionID]struct{}{},
		view:       newMirrorView(),
	}
	WithNodes("0.0.3", "0.0.4", "0.0.5", "0.0.6", "0.0.7")(l)
	for _, o := range opts {
		o(l)
	}
	return l
}

// Fund registers an account with a fixed id, controlled by publicKey, holding tinybars.
func (l *Ledger) Fund(id network.AccountID, publicKey string, tinybars int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[id] = &account{
		id:       id,
		key:      network.SingleKey(publicKey),
		tinybars: tinybars,
		tokens:   map[network.TokenID]uint64{},
	}
	l.view.accounts[id] = struct{}{}
}

// Genesis funds every identity with the same hbar amount.
func (l *Ledger) Genesis(hbars int64, identities ...network.Identity) error {
	for _, id := range identities {
		pk, err := id.PublicKey()
		if err != nil {
			return errors.Wrapf(err, "failed deriving key for genesis account [%s]", id.Account)
		}
		l.Fund(id.Account, pk, network.HbarToTinybars(hbars))
	}
	return nil
}

// TotalTinybars sums all hbar balances; fees are burnt, so this only decreases.
func (l *Ledger) TotalTinybars() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, a := range l.accounts {
		total += a.tinybars
	}
	return total
}

// ConsensusTokenBalance reads the balance without mirror lag.
func (l *Ledger) ConsensusTokenBalance(account network.AccountID, tok network.TokenID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[account]; ok {
		return a.tokens[tok]
	}
	return 0
}

func (l *Ledger) AccountBalance(ctx context.Context, id network.AccountID) (network.Balance, error) {
	if err := ctx.Err(); err != nil {
		return network.Balance{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[id]
	if !ok {
		return network.Balance{}, network.NewStatusError("", network.StatusInvalidAccountID)
	}
	return network.Balance{Account: id, Tinybars: a.tinybars}, nil
}

func (l *Ledger) Record(ctx context.Context, payer network.Identity, tx network.TransactionID) (network.Record, error) {
	if err := ctx.Err(); err != nil {
		return network.Record{}, err
	}
	if err := network.CheckPayer(payer); err != nil {
		return network.Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.records[tx]
	if !ok || l.now().Before(e.visibleAt) {
		return network.Record{}, network.NewStatusError(tx, network.StatusRecordNotFound)
	}
	return e.record, nil
}

func (l *Ledger) newEntityID() string {
	l.nextEntity++
	return fmt.Sprintf("0.0.%d", l.nextEntity)
}

func (l *Ledger) newTransactionID(payer network.AccountID) network.TransactionID {
	l.txSeq++
	ts := l.now().Add(time.Duration(l.txSeq))
	return network.TransactionID(fmt.Sprintf("%s@%d.%09d", payer, ts.Unix(), ts.Nanosecond()))
}
