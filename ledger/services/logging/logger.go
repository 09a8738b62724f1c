/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	loggerNameSeparator = "."
	modulePath          = "github.com/ledger-labs/hedera-scenarios/"
	rootName            = "hsc"
)

// Logger provides logging API
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Panic(args ...interface{})
	Panicf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	IsEnabledFor(level zapcore.Level) bool
}

// Config selects the level and encoding shared by every logger.
type Config struct {
	Level  string
	Format string
}

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current atomic.Pointer[zapcore.Core]
)

func init() {
	c := newCore("console", zapcore.Lock(os.Stderr))
	current.Store(&c)
}

// Initialize sets level and format for all loggers, including those obtained before the call.
func Initialize(cfg Config) error {
	if len(cfg.Level) != 0 {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return errors.Wrapf(err, "invalid log level [%s]", cfg.Level)
		}
	}
	format := strings.ToLower(cfg.Format)
	switch format {
	case "", "console", "json":
	default:
		return errors.Errorf("invalid log format [%s]", cfg.Format)
	}
	c := newCore(format, zapcore.Lock(os.Stderr))
	current.Store(&c)
	return nil
}

// SetOutput redirects every logger to the given syncer, keeping the current level.
func SetOutput(format string, ws zapcore.WriteSyncer) {
	c := newCore(format, ws)
	current.Store(&c)
}

// MustGetLogger returns a logger named after the given parts, or after the caller's package
// when none are given.
func MustGetLogger(params ...string) Logger {
	name := loggerName(params...)
	if len(params) == 0 {
		name = callerPackage(2)
	}
	return &logger{
		SugaredLogger: zap.New(&delegatingCore{}, zap.AddCaller()).Named(name).Sugar(),
	}
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) IsEnabledFor(lvl zapcore.Level) bool {
	return level.Enabled(lvl)
}

func newCore(format string, ws zapcore.WriteSyncer) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(enc, ws, level)
}

// delegatingCore forwards to the core installed by the last Initialize.
type delegatingCore struct {
	fields []zapcore.Field
}

func (c *delegatingCore) Enabled(lvl zapcore.Level) bool {
	return level.Enabled(lvl)
}

func (c *delegatingCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	return &delegatingCore{fields: append(merged, fields...)}
}

func (c *delegatingCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *delegatingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	core := *current.Load()
	if len(c.fields) != 0 {
		core = core.With(c.fields)
	}
	return core.Write(entry, fields)
}

func (c *delegatingCore) Sync() error {
	return (*current.Load()).Sync()
}

func callerPackage(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return rootName
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return rootName
	}
	// github.com/x/y/pkg.(*T).Method -> github.com/x/y/pkg
	full := fn.Name()
	lastSlash := strings.LastIndex(full, "/")
	if dot := strings.Index(full[lastSlash+1:], "."); dot >= 0 {
		full = full[:lastSlash+1+dot]
	}
	full = strings.TrimPrefix(full, modulePath)
	return loggerName(rootName, strings.ReplaceAll(full, "/", loggerNameSeparator))
}

func loggerName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) != 0 {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, loggerNameSeparator)
}
