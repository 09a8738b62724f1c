/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package steps_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/ledger-labs/hedera-scenarios/integration/steps"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/credentials"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/metrics"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/network/memory"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/utils/poll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPoll = poll.Config{
	InitialInterval: 5 * time.Millisecond,
	MaxInterval:     20 * time.Millisecond,
	Multiplier:      2,
	Timeout:         2 * time.Second,
}

func fixtures(t *testing.T, n int) []credentials.Account {
	t.Helper()
	out := make([]credentials.Account, 0, n)
	for i := 0; i < n; i++ {
		sk, _, err := network.GenerateKey()
		require.NoError(t, err)
		out = append(out, credentials.Account{ID: fmt.Sprintf("0.0.%d", 9001+i), PrivateKey: sk})
	}
	return out
}

func newLibrary(t *testing.T, ledger *memory.Ledger, opts ...steps.Option) *steps.Library {
	t.Helper()
	accounts := fixtures(t, 5)
	identities := make([]network.Identity, 0, len(accounts))
	for _, a := range accounts {
		identities = append(identities, a.Identity())
	}
	require.NoError(t, ledger.Genesis(100, identities...))
	cfg := steps.DefaultConfig
	cfg.Poll = fastPoll
	cfg.StepTimeout = 5 * time.Second
	cfg.PropagationTimeout = 5 * time.Second
	return steps.New(ledger, ledger, credentials.NewStore(accounts, credentials.Account{}), cfg, opts...)
}

func TestFeatures(t *testing.T) {
	ledger := memory.New(memory.WithMirrorLag(30*time.Millisecond), memory.WithRecordLag(30*time.Millisecond))
	m := metrics.New()
	var out bytes.Buffer
	lib := newLibrary(t, ledger, steps.WithRecorder(m), steps.WithOutput(&out))

	suite := godog.TestSuite{
		Name:                "hedera-scenarios",
		ScenarioInitializer: lib.InitializeScenario,
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"../features"},
			Strict:   true,
			TestingT: t,
		},
	}
	require.Equal(t, 0, suite.Run(), "non-zero status returned, failed to run feature tests")

	assert.Contains(t, out.String(), "Ride 1: 12 km, 3 passengers")
	assert.Contains(t, out.String(), "Ride 2: 4 km, 1 passenger")
	assert.Contains(t, m.Summary(), "scenarios")
}

func TestFeaturesConcurrently(t *testing.T) {
	ledger := memory.New(memory.WithMirrorLag(10 * time.Millisecond))
	lib := newLibrary(t, ledger, steps.WithOutput(&bytes.Buffer{}))

	// topic scenarios share no token state, so they can run side by side
	suite := godog.TestSuite{
		Name:                "topics",
		ScenarioInitializer: lib.InitializeScenario,
		Options: &godog.Options{
			Format:      "progress",
			Paths:       []string{"../features/topic.feature"},
			Strict:      true,
			Concurrency: 2,
			TestingT:    t,
		},
	}
	require.Equal(t, 0, suite.Run())
}
