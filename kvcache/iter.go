// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kvcache

import (
	"bytes"

	"github.com/vechain/statecache/kv"
)

// iter iterates entries of a layer chain in key order, tombstones included,
// so that upper layers can mask lower ones.
type iter[V any] interface {
	Next() bool
	Entry() *entry[V]
	Release()
	Error() error
}

// sliceIter iterates a snapshot of the local buffer.
type sliceIter[V any] struct {
	entries []*entry[V]
	i       int
}

func (it *sliceIter[V]) Next() bool {
	if it.i >= len(it.entries) {
		return false
	}
	it.i++
	return true
}

func (it *sliceIter[V]) Entry() *entry[V] { return it.entries[it.i-1] }
func (it *sliceIter[V]) Release()         {}
func (it *sliceIter[V]) Error() error     { return nil }

// storeIter pulls entries from the store lazily. Values are decoded on demand.
type storeIter[V any] struct {
	it  kv.Iterator
	cur *entry[V]
}

func (it *storeIter[V]) Next() bool {
	if !it.it.Next() {
		return false
	}
	// the underlying buffers are reused by the store iterator
	it.cur = &entry[V]{
		key: bytes.Clone(it.it.Key()),
		raw: bytes.Clone(it.it.Value()),
	}
	return true
}

func (it *storeIter[V]) Entry() *entry[V] { return it.cur }
func (it *storeIter[V]) Release()         { it.it.Release() }
func (it *storeIter[V]) Error() error     { return it.it.Error() }

const (
	pickA = iota + 1
	pickB
	pickBoth
)

// mergeIter merges two ordered iterators. On equal keys, a wins.
type mergeIter[V any] struct {
	a, b     iter[V]
	aOK, bOK bool
	started  bool
	last     int
	cur      *entry[V]
}

func (m *mergeIter[V]) Next() bool {
	if !m.started {
		m.aOK, m.bOK = m.a.Next(), m.b.Next()
		m.started = true
	} else {
		if m.last == pickA || m.last == pickBoth {
			m.aOK = m.a.Next()
		}
		if m.last == pickB || m.last == pickBoth {
			m.bOK = m.b.Next()
		}
	}

	switch {
	case m.aOK && m.bOK:
		switch cmp := bytes.Compare(m.a.Entry().key, m.b.Entry().key); {
		case cmp < 0:
			m.cur, m.last = m.a.Entry(), pickA
		case cmp > 0:
			m.cur, m.last = m.b.Entry(), pickB
		default:
			m.cur, m.last = m.a.Entry(), pickBoth
		}
	case m.aOK:
		m.cur, m.last = m.a.Entry(), pickA
	case m.bOK:
		m.cur, m.last = m.b.Entry(), pickB
	default:
		m.cur, m.last = nil, 0
		return false
	}
	return true
}

func (m *mergeIter[V]) Entry() *entry[V] { return m.cur }

func (m *mergeIter[V]) Release() {
	m.a.Release()
	m.b.Release()
}

func (m *mergeIter[V]) Error() error {
	if err := m.a.Error(); err != nil {
		return err
	}
	return m.b.Error()
}
