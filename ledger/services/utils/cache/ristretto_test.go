/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddAndGet(t *testing.T) {
	t.Parallel()
	c, err := NewDefaultRistrettoCache[string](0)
	require.NoError(t, err)

	key := "0.0.1001"
	value := "Test Token"

	_, found := c.Get(key)
	require.False(t, found)

	c.Add(key, value)
	retrieved, found := c.Get(key)
	require.True(t, found)
	require.Equal(t, value, retrieved)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	c, err := NewDefaultRistrettoCache[int](0)
	require.NoError(t, err)

	key := "0.0.1001"
	c.Add(key, 123)
	c.Delete(key)

	_, found := c.Get(key)
	require.False(t, found)
}

func TestExpiry(t *testing.T) {
	t.Parallel()
	c, err := NewDefaultRistrettoCache[int](50 * time.Millisecond)
	require.NoError(t, err)

	c.Add("0.0.1001", 1)
	_, found := c.Get("0.0.1001")
	require.True(t, found)

	require.Eventually(t, func() bool {
		_, found := c.Get("0.0.1001")
		return !found
	}, 3*time.Second, 20*time.Millisecond)
}

func TestGetOrLoad(t *testing.T) {
	t.Parallel()
	c, err := NewDefaultRistrettoCache[string](0)
	require.NoError(t, err)

	key := "0.0.1001"
	expectedValue := "loaded-value"
	loaderCalls := 0

	loader := func() (string, error) {
		loaderCalls++
		return expectedValue, nil
	}

	val, found, err := c.GetOrLoad(key, loader)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, expectedValue, val)
	require.Equal(t, 1, loaderCalls)

	val, found, err = c.GetOrLoad(key, loader)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, expectedValue, val)
	require.Equal(t, 1, loaderCalls)

	// invalidation forces a reload
	c.Delete(key)
	_, found, err = c.GetOrLoad(key, loader)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 2, loaderCalls)
}

func TestGetOrLoadError(t *testing.T) {
	t.Parallel()
	c, err := NewDefaultRistrettoCache[string](0)
	require.NoError(t, err)

	key := "0.0.1001"
	loaderErr := errors.New("network is down")
	loader := func() (string, error) {
		return "", loaderErr
	}
	_, _, err = c.GetOrLoad(key, loader)
	require.Equal(t, loaderErr, err)

	_, found := c.Get(key)
	require.False(t, found)
}

func TestGetOrLoadConcurrency(t *testing.T) {
	t.Parallel()
	c, err := NewDefaultRistrettoCache[int](0)
	require.NoError(t, err)

	key := "0.0.1001"
	expectedValue := 42
	var loaderCalls int32

	loader := func() (int, error) {
		atomic.AddInt32(&loaderCalls, 1)
		time.Sleep(100 * time.Millisecond)
		return expectedValue, nil
	}

	numGoroutines := 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			val, _, loadErr := c.GetOrLoad(key, loader)
			require.NoError(t, loadErr)
			require.Equal(t, expectedValue, val)
		}()
	}

	wg.Wait()
	require.Equal(t, 1, int(atomic.LoadInt32(&loaderCalls)))
}

func TestNoCache(t *testing.T) {
	c := NewNoCache[int]()
	c.Add("k", 1)
	_, found := c.Get("k")
	require.False(t, found)
	calls := 0
	for i := 0; i < 2; i++ {
		v, hit, err := c.GetOrLoad("k", func() (int, error) { calls++; return 7, nil })
		require.NoError(t, err)
		require.False(t, hit)
		require.Equal(t, 7, v)
	}
	require.Equal(t, 2, calls)
}
