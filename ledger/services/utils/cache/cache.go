/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

// Cache stores query results keyed by entity id.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Add(key string, value T)
	Delete(key string)
	// GetOrLoad returns the cached value or the one produced by loader, reporting a cache hit.
	GetOrLoad(key string, loader func() (T, error)) (T, bool, error)
}

// NoCache always misses. Every TokenInfo reaches the ledger.
type NoCache[T any] struct {
}

func NewNoCache[T any]() *NoCache[T] {
	return &NoCache[T]{}
}

func (n *NoCache[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}

func (n *NoCache[T]) GetOrLoad(_ string, loader func() (T, error)) (T, bool, error) {
	v, err := loader()
	return v, false, err
}

func (n *NoCache[T]) Add(string, T) {
}

func (n *NoCache[T]) Delete(string) {
}
