// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kvcache

import (
	"github.com/vechain/statecache/codec"
	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/oplog"
)

var (
	_ oplog.Undoable = (*Simple[uint64])(nil)
	_ Layer          = (*Simple[uint64])(nil)
)

// Simple caches a single value. The namespace prefix alone is its store key.
type Simple[V any] struct {
	c *Composite[struct{}, V]
}

// NewSimple creates a root single value layer backed by the store.
func NewSimple[V any](store kv.Store, space kv.Bucket, values codec.Value[V], opts Options) (*Simple[V], error) {
	c, err := NewComposite[struct{}, V](store, space, codec.Empty, values, opts)
	if err != nil {
		return nil, err
	}
	return &Simple[V]{c}, nil
}

// NewChild creates a layer on top of s.
func (s *Simple[V]) NewChild() *Simple[V] {
	return &Simple[V]{s.c.NewChild()}
}

// Get returns the value.
func (s *Simple[V]) Get() (V, bool, error) { return s.c.Get(struct{}{}) }

// Set buffers the value.
func (s *Simple[V]) Set(v V) error { return s.c.Set(struct{}{}, v) }

// Erase buffers the deletion of the value.
func (s *Simple[V]) Erase() error { return s.c.Erase(struct{}{}) }

// SetBase rebinds the base layer, see Composite.SetBase.
func (s *Simple[V]) SetBase(base *Simple[V]) error {
	if base == nil {
		return s.c.SetBase(nil)
	}
	return s.c.SetBase(base.c)
}

// SetLog sets the log recording prior states of writes.
func (s *Simple[V]) SetLog(log *oplog.Log) { s.c.SetLog(log) }

// Undo implements oplog.Undoable.
func (s *Simple[V]) Undo(e oplog.Entry) error { return s.c.Undo(e) }

// Space returns the namespace of the cache.
func (s *Simple[V]) Space() kv.Bucket { return s.c.space }

// Size returns the approximate memory footprint of the local entry.
func (s *Simple[V]) Size() int { return s.c.Size() }

// ReadStats returns the statistics of the read cache, see Composite.ReadStats.
func (s *Simple[V]) ReadStats() (ReadStats, bool) { return s.c.ReadStats() }

// Clear drops the local entry.
func (s *Simple[V]) Clear() { s.c.Clear() }

// Flush merges the local entry into the base layer or the store.
func (s *Simple[V]) Flush() error { return Flush(s) }

func (s *Simple[V]) root() bool                       { return s.c.root() }
func (s *Simple[V]) physical() kv.Store               { return s.c.physical() }
func (s *Simple[V]) mergeIntoBase() int               { return s.c.mergeIntoBase() }
func (s *Simple[V]) writeTo(w kv.Putter) (int, error) { return s.c.writeTo(w) }
func (s *Simple[V]) committed()                       { s.c.committed() }
