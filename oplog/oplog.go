// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package oplog records the prior state of every cache write, so that a batch
// of writes can be reversed exactly.
//
// Entries are undone in strict reverse order. A key written several times
// within one log is therefore restored through each intermediate state and
// ends at the value it had before the first write.
package oplog

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/log"
	"github.com/vechain/statecache/metrics"
)

var (
	logger = log.WithContext("pkg", "oplog")

	metricUndoneEntries = metrics.LazyLoadCounter("oplog_undone_entries_count")
)

// Entry is the state of one key before a write.
type Entry struct {
	Space   kv.Bucket // namespace of the owning cache
	Key     []byte    // encoded key within the namespace
	Existed bool      // false means the key did not exist
	Value   []byte    // encoded prior value, when existed
}

// Undoable is implemented by caches that can reverse their own entries.
type Undoable interface {
	// Space returns the namespace the cache owns.
	Space() kv.Bucket
	// Undo restores the prior state recorded in the entry.
	Undo(e Entry) error
}

// Log is the ordered list of entries of one transaction context.
type Log struct {
	entries []Entry
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append records an entry. Key and value are retained, callers must not modify them afterwards.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Extend appends all entries of other, used when a child context is folded into its parent.
func (l *Log) Extend(other *Log) {
	l.entries = append(l.entries, other.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns entries in write order. The returned slice must not be modified.
func (l *Log) Entries() []Entry {
	return l.entries
}

// Checkpoint returns the current revision, which can be passed to RevertTo.
func (l *Log) Checkpoint() int {
	return len(l.entries)
}

// Undo reverses all entries.
func (l *Log) Undo(handles ...Undoable) error {
	return l.RevertTo(0, handles...)
}

// RevertTo reverses entries written after the given checkpoint, newest first,
// dispatching each to the handle owning its namespace. Reverted entries are removed.
//
// It panics if an entry has no handle, since a partial rollback would leave the
// state inconsistent.
func (l *Log) RevertTo(rev int, handles ...Undoable) error {
	if rev < 0 || rev > len(l.entries) {
		panic(fmt.Errorf("oplog: revision %d out of range [0, %d]", rev, len(l.entries)))
	}
	registry := make(map[kv.Bucket]Undoable, len(handles))
	for _, h := range handles {
		if _, dup := registry[h.Space()]; dup {
			panic(fmt.Errorf("oplog: duplicated handle for space %q", h.Space()))
		}
		registry[h.Space()] = h
	}
	// check all before touching anything
	for _, e := range l.entries[rev:] {
		if _, ok := registry[e.Space]; !ok {
			panic(fmt.Errorf("oplog: no handle registered for space %q", e.Space))
		}
	}

	n := len(l.entries) - rev
	for i := len(l.entries) - 1; i >= rev; i-- {
		e := l.entries[i]
		if err := registry[e.Space].Undo(e); err != nil {
			l.entries = l.entries[:i+1]
			return errors.WithMessagef(err, "oplog: undo space %q key %x", e.Space, e.Key)
		}
		l.entries = l.entries[:i]
	}
	metricUndoneEntries().Add(int64(n))
	logger.Debug("log reverted", "entries", n, "rev", rev)
	return nil
}
