/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestCallerPackageName(t *testing.T) {
	l := MustGetLogger().(*logger)
	assert.Equal(t, "hsc.ledger.services.logging", l.Desugar().Name())

	l = MustGetLogger("steps", "", "token").(*logger)
	assert.Equal(t, "steps.token", l.Desugar().Name())
}

func TestInitializeAppliesToExistingLoggers(t *testing.T) {
	l := MustGetLogger("early")

	buf := &bytes.Buffer{}
	require.NoError(t, Initialize(Config{Level: "warn", Format: "json"}))
	SetOutput("json", zapcore.AddSync(buf))
	defer func() {
		require.NoError(t, Initialize(Config{Level: "info"}))
	}()

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	assert.False(t, l.IsEnabledFor(zapcore.InfoLevel))
	assert.True(t, l.IsEnabledFor(zapcore.ErrorLevel))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestInitializeRejectsBadInput(t *testing.T) {
	assert.Error(t, Initialize(Config{Level: "loud"}))
	assert.Error(t, Initialize(Config{Format: "xml"}))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "short", Prefix("short").String())
	long := strings.Repeat("a", 64)
	p := Prefix(long).String()
	assert.True(t, strings.HasPrefix(p, strings.Repeat("a", 20)+"~"))
	assert.Len(t, p, 20+1+8)
}
