/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	m := New()
	m.ObserveTransaction("TokenMint", "SUCCESS", 2*time.Second)
	m.ObserveTransaction("TokenMint", "TOKEN_HAS_NO_SUPPLY_KEY", time.Second)
	m.ObserveFee("TokenMint", 200_000)
	m.ObserveFee("TokenMint", 0)
	m.ObserveTransaction("CryptoTransfer", "SUCCESS", 500*time.Millisecond)
	m.ObserveStep("passed")
	m.ObserveStep("passed")
	m.ObserveStep("failed")
	m.ObserveScenario("passed")

	s := m.Summary()
	assert.Contains(t, s, "TokenMint")
	assert.Contains(t, s, "2 requests, success ratio 50.00%, average 1.5s, fees 200000 tinybars")
	assert.Contains(t, s, "1 requests, success ratio 100.00%, average 500ms")
	assert.Contains(t, s, "steps: failed=1 passed=2")
	assert.Contains(t, s, "scenarios: passed=1")
	assert.Less(t, bytes.Index([]byte(s), []byte("CryptoTransfer")), bytes.Index([]byte(s), []byte("TokenMint")))
}

func TestWriteTextAndHandler(t *testing.T) {
	m := New()
	m.ObserveTransaction("ConsensusSubmitMessage", "SUCCESS", time.Second)

	buf := &bytes.Buffer{}
	require.NoError(t, m.WriteText(buf))
	assert.Contains(t, buf.String(), `hsc_transactions_total{kind="ConsensusSubmitMessage",status="SUCCESS"} 1`)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hsc_transaction_duration_seconds_count")
}

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewWithRegistry(reg, reg)
	second := NewWithRegistry(reg, reg)
	first.ObserveStep("passed")
	second.ObserveStep("passed")
	assert.Contains(t, second.Summary(), "steps: passed=2")
}
