// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package oplog_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/lvldb"
	"github.com/vechain/statecache/oplog"
)

// table is a minimal undoable map that logs its writes.
type table struct {
	space kv.Bucket
	m     map[string]string
	log   *oplog.Log
	fail  bool
}

func newTable(space string, log *oplog.Log) *table {
	return &table{space: kv.Bucket(space), m: map[string]string{}, log: log}
}

func (t *table) set(k, v string) {
	old, ok := t.m[k]
	t.log.Append(oplog.Entry{Space: t.space, Key: []byte(k), Existed: ok, Value: []byte(old)})
	t.m[k] = v
}

func (t *table) del(k string) {
	old, ok := t.m[k]
	t.log.Append(oplog.Entry{Space: t.space, Key: []byte(k), Existed: ok, Value: []byte(old)})
	delete(t.m, k)
}

func (t *table) Space() kv.Bucket { return t.space }

func (t *table) Undo(e oplog.Entry) error {
	if t.fail {
		return errors.New("undo failed")
	}
	if e.Existed {
		t.m[string(e.Key)] = string(e.Value)
	} else {
		delete(t.m, string(e.Key))
	}
	return nil
}

func TestUndo(t *testing.T) {
	l := oplog.New()
	a := newTable("A", l)
	b := newTable("B", l)
	a.m["x"] = "0"

	a.set("x", "1")
	a.set("x", "2")
	b.set("y", "1")
	a.del("x")
	a.set("z", "1")
	b.set("y", "2")
	assert.Equal(t, 6, l.Len())

	require.NoError(t, l.Undo(a, b))
	assert.Equal(t, map[string]string{"x": "0"}, a.m)
	assert.Empty(t, b.m)
	assert.Equal(t, 0, l.Len())
}

func TestRevertTo(t *testing.T) {
	l := oplog.New()
	a := newTable("A", l)

	a.set("x", "1")
	rev := l.Checkpoint()
	a.set("x", "2")
	a.set("y", "2")

	require.NoError(t, l.RevertTo(rev, a))
	assert.Equal(t, map[string]string{"x": "1"}, a.m)
	assert.Equal(t, rev, l.Len())

	// reverting to the same checkpoint again is a no-op
	require.NoError(t, l.RevertTo(rev, a))
	assert.Equal(t, 1, l.Len())

	assert.Panics(t, func() { l.RevertTo(2, a) })
}

func TestUndoMissingHandle(t *testing.T) {
	l := oplog.New()
	a := newTable("A", l)
	b := newTable("B", l)
	a.set("x", "1")
	b.set("y", "1")

	assert.Panics(t, func() { l.Undo(a) })
	// nothing undone
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "1", a.m["x"])

	assert.Panics(t, func() { l.Undo(a, b, newTable("A", nil)) })
}

func TestUndoError(t *testing.T) {
	l := oplog.New()
	a := newTable("A", l)
	b := newTable("B", l)
	a.set("x", "1")
	b.set("y", "1")
	b.fail = true

	err := l.Undo(a, b)
	assert.Error(t, err)
	assert.Equal(t, 2, l.Len())

	b.fail = false
	require.NoError(t, l.Undo(a, b))
	assert.Empty(t, a.m)
	assert.Empty(t, b.m)
}

func TestExtend(t *testing.T) {
	parent, child := oplog.New(), oplog.New()
	a := newTable("A", parent)
	a.set("x", "1")
	a.log = child
	a.set("x", "2")

	parent.Extend(child)
	assert.Equal(t, 2, parent.Len())
	require.NoError(t, parent.Undo(a))
	assert.Empty(t, a.m)
}

func TestPersist(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	l := oplog.New()
	a := newTable("A", l)
	a.m["k"] = "v0"
	a.set("k", "v1")
	a.set("n", "v1")

	store := kv.Bucket("U").NewStore(db)
	require.NoError(t, oplog.Save(store, []byte("block1"), l))

	loaded, found, err := oplog.Load(store, []byte("block1"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, l.Len(), loaded.Len())
	for i, e := range l.Entries() {
		got := loaded.Entries()[i]
		assert.Equal(t, e.Space, got.Space)
		assert.Equal(t, string(e.Key), string(got.Key))
		assert.Equal(t, e.Existed, got.Existed)
		assert.Equal(t, string(e.Value), string(got.Value))
	}

	require.NoError(t, loaded.Undo(a))
	assert.Equal(t, map[string]string{"k": "v0"}, a.m)

	_, found, err = oplog.Load(store, []byte("block2"))
	assert.NoError(t, err)
	assert.False(t, found)

	assert.Error(t, loaded.UnmarshalBinary([]byte("garbage")))
}
