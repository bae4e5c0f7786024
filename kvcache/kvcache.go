// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kvcache implements layered, copy-on-write caches over a kv.Store.
//
// A cache layer buffers writes locally. Reads resolve through the local buffer,
// then the base layer chain, and finally the store. Flush merges the buffer into
// the base layer, or writes it to the store when the layer is the root of its chain.
//
// Each local entry is either dirty (holds a value) or a tombstone (masks the
// value of lower layers). Keys without local entry defer to the base.
//
// Layers are not safe for concurrent use.
package kvcache

import (
	"github.com/pkg/errors"

	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/log"
	"github.com/vechain/statecache/metrics"
)

var (
	// ErrCyclicBase is returned when rebinding the base would make the chain cyclic.
	ErrCyclicBase = errors.New("kvcache: cyclic base")
	// ErrSpaceMismatch is returned when binding layers of different namespaces.
	ErrSpaceMismatch = errors.New("kvcache: space mismatch")
	// ErrStoreMismatch is returned when flushing root layers of different stores together.
	ErrStoreMismatch = errors.New("kvcache: store mismatch")

	logger = log.WithContext("pkg", "kvcache")

	metricStoreReads     = metrics.LazyLoadCounterVec("kvcache_store_read_count", []string{"space"})
	metricFlushedEntries = metrics.LazyLoadCounterVec("kvcache_flushed_entries_count", []string{"space", "target"})
	metricFlushDuration  = metrics.LazyLoadHistogram("kvcache_flush_duration_ms", metrics.BucketFlushMs)
	metricFlushBatchOps  = metrics.LazyLoadGauge("kvcache_flush_batch_ops")
)

// Options optional parameters for root layers.
type Options struct {
	// ReadCacheSize is the capacity of the read cache in front of the store.
	// Zero disables it.
	ReadCacheSize int `yaml:"read-cache-size"`
}

// ReadStats are the statistics of the read cache of a chain.
type ReadStats struct {
	Space kv.Bucket `json:"space"`
	Hit   int64     `json:"hit"`
	Miss  int64     `json:"miss"`
	Len   int       `json:"len"`
}

// Pair is a key/value pair returned by scans.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// entry is a local buffer entry.
// Entries are immutable once inserted.
type entry[V any] struct {
	key     []byte // encoded key
	raw     []byte // encoded value, nil for tombstones
	val     V
	decoded bool // whether val is valid
	deleted bool // tombstone
}

// size is the approximate memory footprint of the entry.
func (e *entry[V]) size() int {
	return len(e.key) + len(e.raw)
}

func entryLess[V any](a, b *entry[V]) bool {
	return string(a.key) < string(b.key)
}
