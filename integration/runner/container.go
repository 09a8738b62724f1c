/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"context"
	"errors"

	"github.com/ledger-labs/hedera-scenarios/integration/steps"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/config"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/credentials"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/journal"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/metrics"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/mirror"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/memory"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/observe"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/sdk"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/cache"
	errors2 "github.com/pkg/errors"
	"go.uber.org/dig"
)

// RunID tags every journal entry and span of one invocation.
type RunID string

// Backend is the network the suite talks to, before instrumentation.
type Backend struct {
	Ledger network.Ledger
	Mirror network.Mirror
	close  func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// NewContainer wires the suite from cfg. Single providers can be replaced with Decorate before
// the first Invoke.
func NewContainer(cfg *config.Configuration) (*dig.Container, error) {
	c := dig.New()

	err := errors.Join(
		c.Provide(func() *config.Configuration { return cfg }),
		c.Provide(func(cfg *config.Configuration) *credentials.Store { return cfg.Store() }),
		c.Provide(newRunID),
		c.Provide(metrics.New),
		c.Provide(newJournal),
		c.Provide(NewBackend),
		c.Provide(newLedger),
		c.Provide(newLibrary),
		c.Provide(NewSuiteRunner),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newRunID() (RunID, error) {
	id, err := journal.NewRunID()
	return RunID(id), err
}

// newJournal returns nil when no driver is configured.
func newJournal(cfg *config.Configuration) (*journal.Store, error) {
	if len(cfg.Journal.Driver) == 0 {
		return nil, nil
	}
	s, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DataSource)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewBackend connects to the configured network, or builds the in-process ledger with every
// credential funded when the network is "memory".
func NewBackend(cfg *config.Configuration, store *credentials.Store) (*Backend, error) {
	if cfg.Network.Name == config.MemoryNetwork {
		return newMemoryBackend(cfg, store)
	}
	l, err := sdk.New(sdk.Config{
		Network:        cfg.Network.Name,
		MirrorNetwork:  cfg.Network.MirrorNetwork,
		RequestTimeout: cfg.Network.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	url := cfg.Network.MirrorRestURL
	if len(url) == 0 {
		url = mirror.DefaultURLs[cfg.Network.Name]
	}
	m, err := mirror.New(url, cfg.Network.RequestTimeout)
	if err != nil {
		_ = l.Close()
		return nil, errors2.WithMessagef(err, "no mirror for network [%s]", cfg.Network.Name)
	}
	return &Backend{Ledger: l, Mirror: m, close: l.Close}, nil
}

func newMemoryBackend(cfg *config.Configuration, store *credentials.Store) (*Backend, error) {
	opts := []memory.Option{
		memory.WithMirrorLag(cfg.Network.Memory.MirrorLag),
		memory.WithRecordLag(cfg.Network.Memory.RecordLag),
	}
	if nodes := nodeIDs(cfg); len(nodes) != 0 {
		opts = append(opts, memory.WithNodes(nodes...))
	}
	l := memory.New(opts...)

	identities := make([]network.Identity, 0, store.Len()+1)
	for _, a := range store.All() {
		identities = append(identities, a.Identity())
	}
	if main := store.Main(); len(main.ID) != 0 {
		if _, err := network.PublicKeyOf(main.PrivateKey); err != nil {
			logger.Warnf("provisioning account [%s] left unfunded: %v", main.ID, err)
		} else {
			identities = append(identities, main.Identity())
		}
	}
	if err := l.Genesis(cfg.Network.Memory.GenesisHbars, identities...); err != nil {
		return nil, err
	}
	logger.Infof("in-memory ledger funded %d accounts with %d hbar", len(identities), cfg.Network.Memory.GenesisHbars)
	return &Backend{Ledger: l, Mirror: l}, nil
}

// newLedger instruments the backend. The cache sits outside the instrumentation so that cached
// token queries are neither paid nor counted.
func newLedger(cfg *config.Configuration, b *Backend, runID RunID, m *metrics.Metrics, j *journal.Store) (network.Ledger, error) {
	var journalOrNil observe.Journal
	if j != nil {
		journalOrNil = j
	}
	var l network.Ledger = observe.New(b.Ledger, string(runID), m, journalOrNil)
	if !cfg.Cache.Enabled {
		return network.NewCachingLedger(l, cache.NewNoCache[network.TokenInfo]()), nil
	}
	tokens, err := cache.NewRistrettoCacheWithSize[network.TokenInfo](cfg.Cache.MaxCost, cfg.Cache.TTL)
	if err != nil {
		return nil, errors2.Wrap(err, "failed creating token info cache")
	}
	return network.NewCachingLedger(l, tokens), nil
}

func newLibrary(cfg *config.Configuration, l network.Ledger, b *Backend, store *credentials.Store, m *metrics.Metrics) *steps.Library {
	return steps.New(l, b.Mirror, store, steps.Config{
		Poll:               cfg.Poll,
		StepTimeout:        cfg.Steps.Timeout,
		PropagationTimeout: cfg.Steps.PropagationTimeout,
		Nodes:              nodeIDs(cfg),
		ValidDuration:      cfg.Network.TransactionValidDuration,
	}, steps.WithRecorder(m))
}

func nodeIDs(cfg *config.Configuration) []network.AccountID {
	out := make([]network.AccountID, 0, len(cfg.Network.NodeAccountIDs))
	for _, n := range cfg.Network.NodeAccountIDs {
		out = append(out, network.AccountID(n))
	}
	return out
}
