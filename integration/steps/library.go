/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package steps binds the scenario lines of the account, topic and token features to ledger
// operations and assertions.
package steps

import (
	"context"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/cucumber/godog"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/credentials"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/observe"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/poll"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger()

// Config tunes step deadlines, mirror polling and the shape of pre-built transfers.
type Config struct {
	Poll poll.Config
	// StepTimeout bounds every step.
	StepTimeout time.Duration
	// PropagationTimeout bounds the steps waiting on the mirror or on records.
	PropagationTimeout time.Duration
	Nodes              []network.AccountID
	ValidDuration      time.Duration
}

var DefaultConfig = Config{
	Poll:               poll.DefaultConfig,
	StepTimeout:        15 * time.Second,
	PropagationTimeout: 30 * time.Second,
	Nodes:              []network.AccountID{network.DefaultNode},
	ValidDuration:      network.DefaultValidDuration,
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultConfig.StepTimeout
	}
	if c.PropagationTimeout <= 0 {
		c.PropagationTimeout = DefaultConfig.PropagationTimeout
	}
	if len(c.Nodes) == 0 {
		c.Nodes = DefaultConfig.Nodes
	}
	if c.ValidDuration <= 0 {
		c.ValidDuration = DefaultConfig.ValidDuration
	}
	return c
}

// Recorder receives the outcome of every step and scenario.
type Recorder interface {
	ObserveStep(status string)
	ObserveScenario(status string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveStep(string)     {}
func (noopRecorder) ObserveScenario(string) {}

type Option func(*Library)

func WithRecorder(r Recorder) Option {
	return func(l *Library) { l.recorder = r }
}

// WithOutput sets where received topic messages are printed.
func WithOutput(w io.Writer) Option {
	return func(l *Library) { l.out = w }
}

// Library holds what the steps act on. It is safe to share between concurrent scenarios; all
// per-scenario data lives in State.
type Library struct {
	ledger   network.Ledger
	mirror   network.Mirror
	accounts *credentials.Store
	cfg      Config
	recorder Recorder
	out      io.Writer

	propagation []*regexp.Regexp
}

func New(ledger network.Ledger, mirror network.Mirror, accounts *credentials.Store, cfg Config, opts ...Option) *Library {
	l := &Library{
		ledger:   ledger,
		mirror:   mirror,
		accounts: accounts,
		cfg:      cfg.withDefaults(),
		recorder: noopRecorder{},
		out:      os.Stdout,
	}
	for _, o := range opts {
		o(l)
	}
	for _, s := range l.steps() {
		if s.propagation {
			l.propagation = append(l.propagation, regexp.MustCompile(s.pattern))
		}
	}
	return l
}

// With returns a copy of l with opts applied on top.
func (l *Library) With(opts ...Option) *Library {
	c := *l
	for _, o := range opts {
		o(&c)
	}
	return &c
}

// step is a pattern with its handler. Propagation steps wait on eventually consistent reads and
// get the longer deadline.
type step struct {
	pattern     string
	handler     interface{}
	propagation bool
}

func (l *Library) steps() []step {
	return append(append(l.topicSteps(), l.tokenSteps()...), l.transferSteps()...)
}

// InitializeScenario registers the step patterns and the scenario hooks.
func (l *Library) InitializeScenario(sc *godog.ScenarioContext) {
	for _, s := range l.steps() {
		sc.Step(s.pattern, s.handler)
	}

	sc.Before(func(ctx context.Context, scenario *godog.Scenario) (context.Context, error) {
		if err := ctx.Err(); err != nil {
			return ctx, errors.Wrapf(err, "run ended before scenario [%s]", scenario.Name)
		}
		logger.Debugf("start scenario [%s]", scenario.Name)
		ctx = observe.WithScenario(ctx, scenario.Name)
		return withState(ctx, newState(scenario.Name)), nil
	})
	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if err == nil {
			err = l.verifyTransfers(ctx)
		}
		status := "passed"
		if err != nil {
			status = "failed"
			logger.Warnf("scenario [%s] failed: %v", scenario.Name, err)
		}
		l.recorder.ObserveScenario(status)
		return ctx, err
	})

	sc.StepContext().Before(func(ctx context.Context, st *godog.Step) (context.Context, error) {
		stepCtx, cancel := context.WithTimeout(ctx, l.timeoutOf(st.Text))
		return context.WithValue(stepCtx, scopeKey{}, &stepScope{parent: ctx, cancel: cancel}), nil
	})
	sc.StepContext().After(func(ctx context.Context, st *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
		l.recorder.ObserveStep(status.String())
		if err != nil {
			logger.Debugf("step [%s] ended with [%s]: %v", st.Text, status, err)
		}
		// the next step must not inherit this step's deadline
		if scope, ok := ctx.Value(scopeKey{}).(*stepScope); ok {
			scope.cancel()
			return scope.parent, err
		}
		return ctx, err
	})
}

type scopeKey struct{}

type stepScope struct {
	parent context.Context
	cancel context.CancelFunc
}

func (l *Library) timeoutOf(text string) time.Duration {
	for _, re := range l.propagation {
		if re.MatchString(text) {
			return l.cfg.PropagationTimeout
		}
	}
	return l.cfg.StepTimeout
}
