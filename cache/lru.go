// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides the bounded read cache in front of the persistent store.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// LRU a LRU cache extends golang-lru with hit/miss statistics.
type LRU struct {
	cache *lru.Cache
	stats Stats
}

// NewLRU create a LRU cache instance.
// maxSize should be > 0, or an error returned.
func NewLRU(maxSize int) (*LRU, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: cache}, nil
}

// Get looks up the key and records a hit or a miss.
func (l *LRU) Get(key string) (any, bool) {
	v, ok := l.cache.Get(key)
	if ok {
		l.stats.Hit()
	} else {
		l.stats.Miss()
	}
	return v, ok
}

// Add adds or replaces the value of the key.
func (l *LRU) Add(key string, value any) {
	l.cache.Add(key, value)
}

// Remove drops the key.
func (l *LRU) Remove(key string) {
	l.cache.Remove(key)
}

// Purge drops all keys.
func (l *LRU) Purge() {
	l.cache.Purge()
}

// Len returns the number of cached keys.
func (l *LRU) Len() int {
	return l.cache.Len()
}

// Stats returns the collected statistics.
func (l *LRU) Stats() *Stats {
	return &l.stats
}

// Loader defines loader to load value.
type Loader func(key string) (any, error)

// GetOrLoad first try to get from cache, do load if missed.
func (l *LRU) GetOrLoad(key string, loader Loader) (any, error) {
	if v, ok := l.Get(key); ok {
		return v, nil
	}
	v, err := loader(key)
	if err != nil {
		return nil, err
	}
	l.Add(key, v)
	return v, nil
}

// Stats is a utility for collecting cache hit/miss.
type Stats struct {
	hit, miss atomic.Int64
	flag      atomic.Int32
}

// Hit records a hit.
func (cs *Stats) Hit() int64 { return cs.hit.Add(1) }

// Miss records a miss.
func (cs *Stats) Miss() int64 { return cs.miss.Add(1) }

// Counts returns the number of hits and misses.
func (cs *Stats) Counts() (hit, miss int64) {
	return cs.hit.Load(), cs.miss.Load()
}

// Stats returns the number of hits and misses and whether the hit rate,
// in per mille, changed since the last call.
func (cs *Stats) Stats() (changed bool, hit, miss int64) {
	hit, miss = cs.Counts()

	var rate int32
	if lookups := hit + miss; lookups > 0 {
		rate = int32(hit * 1000 / lookups)
	}
	return cs.flag.Swap(rate) != rate, hit, miss
}
