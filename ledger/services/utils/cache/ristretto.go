/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// ZeroCost defers to the configured Cost function, which counts every token info as one.
	ZeroCost = 0

	// Sized for the few tokens a run creates.
	DefaultNumCounters = 1e4
	DefaultMaxCost     = 1e3
	DefaultBufferItems = 64
)

// ristrettoCache expires every entry after ttl; a zero ttl keeps entries until evicted.
type ristrettoCache[T any] struct {
	cache *ristretto.Cache[string, T]
	ttl   time.Duration
	sfg   singleflight.Group
}

// NewRistrettoCache wraps a ristretto cache built from config.
func NewRistrettoCache[T any](config *ristretto.Config[string, T], ttl time.Duration) (*ristrettoCache[T], error) {
	rCache, err := ristretto.NewCache[string, T](config)
	if err != nil {
		return nil, err
	}
	return &ristrettoCache[T]{
		cache: rCache,
		ttl:   ttl,
	}, nil
}

func NewDefaultRistrettoCache[T any](ttl time.Duration) (*ristrettoCache[T], error) {
	return NewRistrettoCacheWithSize[T](DefaultMaxCost, ttl)
}

func NewRistrettoCacheWithSize[T any](maxCost int64, ttl time.Duration) (*ristrettoCache[T], error) {
	return NewRistrettoCache[T](&ristretto.Config[string, T]{
		NumCounters: DefaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: DefaultBufferItems,
		Cost: func(value T) int64 {
			return 1
		},
	}, ttl)
}

func (c *ristrettoCache[T]) Get(key string) (T, bool) {
	return c.cache.Get(key)
}

// Add waits for the write to land so that the next Get on the same token hits.
func (c *ristrettoCache[T]) Add(key string, value T) {
	c.cache.SetWithTTL(key, value, ZeroCost, c.ttl)
	c.cache.Wait()
}

// Delete drops the entry and detaches any in-flight load so that later callers reload.
func (c *ristrettoCache[T]) Delete(key string) {
	c.sfg.Forget(key)
	c.cache.Del(key)
	c.cache.Wait()
}

func (c *ristrettoCache[T]) Clear() {
	c.cache.Clear()
	c.cache.Wait()
}

func (c *ristrettoCache[T]) GetOrLoad(key string, loader func() (T, error)) (T, bool, error) {
	var zero T

	if value, found := c.Get(key); found {
		return value, true, nil
	}

	// concurrent scenarios asking for the same token share one paid query
	res, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		newValue, loadErr := loader()
		if loadErr != nil {
			return nil, loadErr
		}
		c.Add(key, newValue)
		return newValue, nil
	})
	if err != nil {
		return zero, false, err
	}
	return res.(T), false, nil
}
