/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package observe decorates a network.Ledger with metrics, spans and journal entries.
package observe

import (
	"context"
	"sync"
	"time"

	"github.com/ledger-labs/hedera-scenarios/ledger/services/journal"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var logger = logging.MustGetLogger()

const tracerName = "github.com/ledger-labs/hedera-scenarios/ledger/services/network/observe"

// Transaction and query kinds, named after the ledger's functionalities.
const (
	CryptoGetAccountBalance = "CryptoGetAccountBalance"
	CryptoCreate            = "CryptoCreate"
	CryptoTransfer          = "CryptoTransfer"
	ConsensusCreateTopic    = "ConsensusCreateTopic"
	ConsensusSubmitMessage  = "ConsensusSubmitMessage"
	ConsensusGetTopicInfo   = "ConsensusGetTopicInfo"
	TokenCreate             = "TokenCreate"
	TokenMint               = "TokenMint"
	TokenGetInfo            = "TokenGetInfo"
	TokenAssociate          = "TokenAssociate"
	TransactionGetRecord    = "TransactionGetRecord"

	// StatusError labels failures that carry no ledger status.
	StatusError = "ERROR"
)

type Recorder interface {
	ObserveTransaction(kind, status string, d time.Duration)
	ObserveFee(kind string, tinybars int64)
}

type Journal interface {
	Append(ctx context.Context, e journal.Entry) error
}

type scenarioKey struct{}

// WithScenario tags the operations issued under ctx with a scenario name.
func WithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, name)
}

func scenarioOf(ctx context.Context) string {
	s, _ := ctx.Value(scenarioKey{}).(string)
	return s
}

type Ledger struct {
	network.Ledger
	runID    string
	recorder Recorder
	journal  Journal
	tracer   trace.Tracer

	mu    sync.Mutex
	kinds map[network.TransactionID]string
}

var _ network.Ledger = (*Ledger)(nil)

// New wraps l. recorder and journal may be nil.
func New(l network.Ledger, runID string, recorder Recorder, j Journal) *Ledger {
	return &Ledger{
		Ledger:   l,
		runID:    runID,
		recorder: recorder,
		journal:  j,
		tracer:   otel.Tracer(tracerName),
		kinds:    map[network.TransactionID]string{},
	}
}

type outcome struct {
	tx    network.TransactionID
	payer network.AccountID
	fee   int64
}

// observe runs op inside a span and reports its outcome.
func (l *Ledger) observe(ctx context.Context, kind string, payer network.AccountID, op func(context.Context) (outcome, error)) error {
	ctx, span := l.tracer.Start(ctx, kind, trace.WithAttributes(
		attribute.String("hsc.kind", kind),
		attribute.String("hsc.payer", string(payer)),
	))
	defer span.End()

	start := time.Now()
	out, err := op(ctx)
	elapsed := time.Since(start)
	if len(out.payer) == 0 {
		out.payer = payer
	}

	status := string(network.StatusSuccess)
	if err != nil {
		status = StatusError
		if s, ok := network.StatusOf(err); ok {
			status = string(s)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	if len(out.tx) != 0 {
		span.SetAttributes(attribute.String("hsc.tx_id", string(out.tx)))
		if kind != TransactionGetRecord {
			l.mu.Lock()
			l.kinds[out.tx] = kind
			l.mu.Unlock()
		}
	}
	span.SetAttributes(attribute.String("hsc.status", status))

	if l.recorder != nil {
		l.recorder.ObserveTransaction(kind, status, elapsed)
	}
	if l.journal != nil {
		e := journal.Entry{
			RunID:         l.runID,
			Scenario:      scenarioOf(ctx),
			Kind:          kind,
			TransactionID: string(out.tx),
			Payer:         string(out.payer),
			Status:        status,
			Fee:           out.fee,
			Duration:      elapsed,
		}
		if err != nil {
			e.Error = err.Error()
		}
		if jerr := l.journal.Append(ctx, e); jerr != nil {
			logger.Warnf("failed journaling %s [%s]: %s", kind, out.tx, jerr)
		}
	}
	return err
}

// KindOf returns the kind of a transaction submitted through l.
func (l *Ledger) KindOf(tx network.TransactionID) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.kinds[tx]
	return k, ok
}

func (l *Ledger) receipt(ctx context.Context, kind string, payer network.Identity, op func(context.Context) (network.Receipt, error)) (network.Receipt, error) {
	var r network.Receipt
	err := l.observe(ctx, kind, payer.Account, func(ctx context.Context) (outcome, error) {
		var err error
		r, err = op(ctx)
		return outcome{tx: r.TransactionID}, err
	})
	return r, err
}

func (l *Ledger) AccountBalance(ctx context.Context, id network.AccountID) (network.Balance, error) {
	var b network.Balance
	err := l.observe(ctx, CryptoGetAccountBalance, "", func(ctx context.Context) (outcome, error) {
		var err error
		b, err = l.Ledger.AccountBalance(ctx, id)
		return outcome{}, err
	})
	return b, err
}

func (l *Ledger) CreateAccount(ctx context.Context, payer network.Identity, spec network.AccountSpec) (network.Receipt, error) {
	return l.receipt(ctx, CryptoCreate, payer, func(ctx context.Context) (network.Receipt, error) {
		return l.Ledger.CreateAccount(ctx, payer, spec)
	})
}

func (l *Ledger) CreateTopic(ctx context.Context, payer network.Identity, spec network.TopicSpec, signers ...network.Identity) (network.Receipt, error) {
	return l.receipt(ctx, ConsensusCreateTopic, payer, func(ctx context.Context) (network.Receipt, error) {
		return l.Ledger.CreateTopic(ctx, payer, spec, signers...)
	})
}

func (l *Ledger) SubmitMessage(ctx context.Context, payer network.Identity, topic network.TopicID, message []byte, signers ...network.Identity) (network.Receipt, error) {
	return l.receipt(ctx, ConsensusSubmitMessage, payer, func(ctx context.Context) (network.Receipt, error) {
		return l.Ledger.SubmitMessage(ctx, payer, topic, message, signers...)
	})
}

func (l *Ledger) TopicInfo(ctx context.Context, payer network.Identity, topic network.TopicID) (network.TopicInfo, error) {
	var info network.TopicInfo
	err := l.observe(ctx, ConsensusGetTopicInfo, payer.Account, func(ctx context.Context) (outcome, error) {
		var err error
		info, err = l.Ledger.TopicInfo(ctx, payer, topic)
		return outcome{}, err
	})
	return info, err
}

func (l *Ledger) CreateToken(ctx context.Context, payer network.Identity, spec network.TokenSpec, signers ...network.Identity) (network.Receipt, error) {
	return l.receipt(ctx, TokenCreate, payer, func(ctx context.Context) (network.Receipt, error) {
		return l.Ledger.CreateToken(ctx, payer, spec, signers...)
	})
}

func (l *Ledger) MintToken(ctx context.Context, payer network.Identity, token network.TokenID, amount uint64, signers ...network.Identity) (network.Receipt, error) {
	return l.receipt(ctx, TokenMint, payer, func(ctx context.Context) (network.Receipt, error) {
		return l.Ledger.MintToken(ctx, payer, token, amount, signers...)
	})
}

func (l *Ledger) TokenInfo(ctx context.Context, payer network.Identity, token network.TokenID) (network.TokenInfo, error) {
	var info network.TokenInfo
	err := l.observe(ctx, TokenGetInfo, payer.Account, func(ctx context.Context) (outcome, error) {
		var err error
		info, err = l.Ledger.TokenInfo(ctx, payer, token)
		return outcome{}, err
	})
	return info, err
}

func (l *Ledger) AssociateToken(ctx context.Context, payer network.Identity, account network.AccountID, tokens []network.TokenID, signers ...network.Identity) (network.Receipt, error) {
	return l.receipt(ctx, TokenAssociate, payer, func(ctx context.Context) (network.Receipt, error) {
		return l.Ledger.AssociateToken(ctx, payer, account, tokens, signers...)
	})
}

// Record also books the fee under the kind of the recorded transaction.
func (l *Ledger) Record(ctx context.Context, payer network.Identity, tx network.TransactionID) (network.Record, error) {
	var rec network.Record
	err := l.observe(ctx, TransactionGetRecord, payer.Account, func(ctx context.Context) (outcome, error) {
		var err error
		rec, err = l.Ledger.Record(ctx, payer, tx)
		if err != nil {
			return outcome{tx: tx}, err
		}
		return outcome{tx: tx, payer: rec.Payer, fee: rec.TransactionFee}, nil
	})
	if err == nil && l.recorder != nil {
		kind, ok := l.KindOf(tx)
		if !ok {
			kind = "unknown"
		}
		l.recorder.ObserveFee(kind, rec.TransactionFee)
	}
	return rec, err
}

func (l *Ledger) NewTransfer(ctx context.Context, spec network.TransferSpec) (network.PendingTransaction, error) {
	tx, err := l.Ledger.NewTransfer(ctx, spec)
	if err != nil {
		return nil, err
	}
	return &pendingTransaction{PendingTransaction: tx, ledger: l}, nil
}

type pendingTransaction struct {
	network.PendingTransaction
	ledger *Ledger
}

func (p *pendingTransaction) Execute(ctx context.Context, submitter network.Identity) (network.Receipt, error) {
	var r network.Receipt
	err := p.ledger.observe(ctx, CryptoTransfer, p.Spec().Payer, func(ctx context.Context) (outcome, error) {
		var err error
		r, err = p.PendingTransaction.Execute(ctx, submitter)
		tx := r.TransactionID
		if len(tx) == 0 {
			tx = p.ID()
		}
		return outcome{tx: tx}, err
	})
	return r, err
}
