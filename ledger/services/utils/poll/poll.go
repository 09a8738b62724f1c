/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package poll waits for eventually consistent reads, such as mirror balances, to converge.
package poll

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

var ErrTimeout = errors.New("condition not met before timeout")

type Config struct {
	InitialInterval time.Duration `mapstructure:"initialInterval"`
	MaxInterval     time.Duration `mapstructure:"maxInterval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

var DefaultConfig = Config{
	InitialInterval: 250 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	Multiplier:      1.5,
	Timeout:         30 * time.Second,
}

func (c Config) withDefaults() Config {
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultConfig.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultConfig.MaxInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultConfig.Multiplier
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig.Timeout
	}
	return c
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// For calls fn until it succeeds, returns a permanent error, ctx ends or the timeout passes.
// On timeout the returned error wraps both ErrTimeout and the last error of fn.
func For[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = cfg.Timeout

	var (
		last      error
		attempts  int
		permanent bool
	)
	v, err := backoff.RetryWithData(func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil {
			last = err
			var p *backoff.PermanentError
			permanent = errors.As(err, &p)
		}
		return v, err
	}, backoff.WithContext(b, ctx))
	if err == nil || permanent {
		return v, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return v, errors.Wrapf(ctxErr, "gave up after %d attempts, last error: %v", attempts, last)
	}
	return v, &timeoutError{attempts: attempts, last: last}
}

// Until polls cond until it reports true. A cond error is retried like a false result.
func Until(ctx context.Context, cfg Config, cond func(context.Context) (bool, error)) error {
	_, err := For(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		ok, err := cond(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	})
	return err
}

var errNotYet = errors.New("condition not met yet")

type timeoutError struct {
	attempts int
	last     error
}

func (e *timeoutError) Error() string {
	return errors.Wrapf(e.last, "%s after %d attempts", ErrTimeout, e.attempts).Error()
}

func (e *timeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *timeoutError) Unwrap() error { return e.last }
