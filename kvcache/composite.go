// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kvcache

import (
	"bytes"
	"time"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/vechain/statecache/cache"
	"github.com/vechain/statecache/codec"
	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/oplog"
)

const btreeDegree = 16

var _ oplog.Undoable = (*Composite[uint64, uint64])(nil)

// Composite caches many values under (space, key), and supports ordered scans
// over keys sharing a prefix.
//
// Values passed to Set and returned by Get or scans are shared with the cache
// and must not be modified.
type Composite[K, V any] struct {
	space  kv.Bucket
	keys   codec.Key[K]
	values codec.Value[V]

	store kv.Store   // physical store, read only by the root
	reads *cache.LRU // read cache of the root, may be nil
	base  *Composite[K, V]

	buf  *btree.BTreeG[*entry[V]]
	size int
	log  *oplog.Log
}

// cachedRead is the read cache item. Absent keys are cached too.
type cachedRead[V any] struct {
	val   V
	raw   []byte
	found bool
}

// NewComposite creates a root layer backed by the store.
func NewComposite[K, V any](store kv.Store, space kv.Bucket, keys codec.Key[K], values codec.Value[V], opts Options) (*Composite[K, V], error) {
	c := &Composite[K, V]{
		space:  space,
		keys:   keys,
		values: values,
		store:  store,
		buf:    btree.NewG(btreeDegree, entryLess[V]),
	}
	if opts.ReadCacheSize > 0 {
		reads, err := cache.NewLRU(opts.ReadCacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "kvcache: new read cache")
		}
		c.reads = reads
	}
	return c, nil
}

// NewChild creates a layer on top of c.
func (c *Composite[K, V]) NewChild() *Composite[K, V] {
	return &Composite[K, V]{
		space:  c.space,
		keys:   c.keys,
		values: c.values,
		store:  c.store,
		reads:  c.reads,
		base:   c,
		buf:    btree.NewG(btreeDegree, entryLess[V]),
	}
}

// Space returns the namespace of the cache.
func (c *Composite[K, V]) Space() kv.Bucket {
	return c.space
}

// Base returns the base layer, nil for root layers.
func (c *Composite[K, V]) Base() *Composite[K, V] {
	return c.base
}

// SetBase rebinds the base layer. No data is copied, only where unresolved
// reads fall through changes. A nil base makes c a root layer over its store.
func (c *Composite[K, V]) SetBase(base *Composite[K, V]) error {
	if base != nil {
		if base.space != c.space {
			return errors.WithMessagef(ErrSpaceMismatch, "%q on %q", c.space, base.space)
		}
		for b := base; b != nil; b = b.base {
			if b == c {
				return ErrCyclicBase
			}
		}
	}
	c.base = base
	return nil
}

// SetLog sets the log recording prior states of writes. Nil disables logging.
func (c *Composite[K, V]) SetLog(log *oplog.Log) {
	c.log = log
}

// Get returns the value of the key.
func (c *Composite[K, V]) Get(k K) (V, bool, error) {
	e, found, err := c.lookup(c.keys.AppendKey(nil, k))
	if err != nil || !found {
		var zero V
		return zero, false, err
	}
	return e.val, true, nil
}

// Has returns whether the key exists.
func (c *Composite[K, V]) Has(k K) (bool, error) {
	_, found, err := c.lookup(c.keys.AppendKey(nil, k))
	return found, err
}

// Set buffers the value of the key.
func (c *Composite[K, V]) Set(k K, v V) error {
	raw, err := c.values.Encode(v)
	if err != nil {
		return err
	}
	key := c.keys.AppendKey(nil, k)
	if err := c.record(key); err != nil {
		return err
	}
	c.put(&entry[V]{key: key, raw: raw, val: v, decoded: true})
	return nil
}

// Erase buffers the deletion of the key.
func (c *Composite[K, V]) Erase(k K) error {
	key := c.keys.AppendKey(nil, k)
	if err := c.record(key); err != nil {
		return err
	}
	c.put(&entry[V]{key: key, deleted: true})
	return nil
}

// Undo implements oplog.Undoable. The prior state is written back through the
// local buffer, so the restoration is flushed like any other write.
func (c *Composite[K, V]) Undo(e oplog.Entry) error {
	if e.Space != c.space {
		return errors.WithMessagef(ErrSpaceMismatch, "undo %q on %q", e.Space, c.space)
	}
	if !e.Existed {
		c.put(&entry[V]{key: e.Key, deleted: true})
		return nil
	}
	val, err := c.values.Decode(e.Value)
	if err != nil {
		return err
	}
	c.put(&entry[V]{key: e.Key, raw: e.Value, val: val, decoded: true})
	return nil
}

// ReadStats returns the statistics of the read cache shared by the chain.
// It returns false if the chain has no read cache.
func (c *Composite[K, V]) ReadStats() (ReadStats, bool) {
	if c.reads == nil {
		return ReadStats{}, false
	}
	hit, miss := c.reads.Stats().Counts()
	return ReadStats{Space: c.space, Hit: hit, Miss: miss, Len: c.reads.Len()}, true
}

// Len returns the number of local entries, tombstones included.
func (c *Composite[K, V]) Len() int {
	return c.buf.Len()
}

// Size returns the approximate memory footprint of local entries.
func (c *Composite[K, V]) Size() int {
	return c.size
}

// Clear drops the local buffer.
func (c *Composite[K, V]) Clear() {
	c.buf.Clear(false)
	c.size = 0
}

// Flush merges the local buffer into the base layer, or writes it to the store
// if c is a root layer. The buffer is cleared only on success.
func (c *Composite[K, V]) Flush() error {
	return Flush(c)
}

// Scan returns up to limit pairs whose encoded key has the prefix, in key order.
// A non-positive limit means no limit.
func (c *Composite[K, V]) Scan(prefix []byte, limit int) ([]Pair[K, V], error) {
	var pairs []Pair[K, V]
	err := c.Iterate(prefix, func(k K, v V) bool {
		pairs = append(pairs, Pair[K, V]{k, v})
		return limit <= 0 || len(pairs) < limit
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// Iterate calls fn for each pair whose encoded key has the prefix, in key order,
// until fn returns false. Local entries take precedence over lower layers.
func (c *Composite[K, V]) Iterate(prefix []byte, fn func(k K, v V) bool) error {
	it := c.newIter(prefix)
	defer it.Release()

	for it.Next() {
		e := it.Entry()
		if e.deleted {
			continue
		}
		k, err := c.keys.DecodeKey(e.key)
		if err != nil {
			return err
		}
		v, err := c.decode(e)
		if err != nil {
			return err
		}
		if !fn(k, v) {
			break
		}
	}
	return it.Error()
}

// lookup resolves the key through the chain. The returned entry is never a tombstone.
func (c *Composite[K, V]) lookup(key []byte) (*entry[V], bool, error) {
	for l := c; l != nil; l = l.base {
		if e, ok := l.buf.Get(&entry[V]{key: key}); ok {
			if e.deleted {
				return nil, false, nil
			}
			return e, true, nil
		}
		if l.base == nil {
			return l.load(key)
		}
	}
	panic("unreachable")
}

// load reads the key from the store, through the read cache if any.
func (c *Composite[K, V]) load(key []byte) (*entry[V], bool, error) {
	var (
		r   *cachedRead[V]
		err error
	)
	if c.reads != nil {
		var v any
		v, err = c.reads.GetOrLoad(string(key), func(string) (any, error) {
			return c.read(key)
		})
		if err == nil {
			r = v.(*cachedRead[V])
		}
		if changed, hit, miss := c.reads.Stats().Stats(); changed {
			logger.Trace("read cache", "space", c.space, "hit", hit, "miss", miss)
		}
	} else {
		r, err = c.read(key)
	}
	if err != nil || !r.found {
		return nil, false, err
	}
	return &entry[V]{key: key, raw: r.raw, val: r.val, decoded: true}, true, nil
}

// read reads the key from the store. Absence is a valid result.
func (c *Composite[K, V]) read(key []byte) (*cachedRead[V], error) {
	metricStoreReads().AddWithLabel(1, map[string]string{"space": string(c.space)})

	raw, found, err := kv.Get(c.store, c.space.Key(key))
	if err != nil {
		return nil, errors.Wrapf(err, "kvcache: load %q %x", c.space, key)
	}
	r := &cachedRead[V]{raw: raw, found: found}
	if found {
		if r.val, err = c.values.Decode(raw); err != nil {
			return nil, errors.WithMessagef(err, "kvcache: load %q %x", c.space, key)
		}
	}
	return r, nil
}

// record appends the prior state of the key to the log.
func (c *Composite[K, V]) record(key []byte) error {
	if c.log == nil {
		return nil
	}
	e, found, err := c.lookup(key)
	if err != nil {
		return err
	}
	le := oplog.Entry{Space: c.space, Key: key}
	if found {
		le.Existed, le.Value = true, e.raw
	}
	c.log.Append(le)
	return nil
}

func (c *Composite[K, V]) put(e *entry[V]) {
	if old, replaced := c.buf.ReplaceOrInsert(e); replaced {
		c.size -= old.size()
	}
	c.size += e.size()
}

func (c *Composite[K, V]) decode(e *entry[V]) (V, error) {
	if e.decoded {
		return e.val, nil
	}
	return c.values.Decode(e.raw)
}

func (c *Composite[K, V]) newIter(prefix []byte) iter[V] {
	var local []*entry[V]
	c.buf.AscendGreaterOrEqual(&entry[V]{key: prefix}, func(e *entry[V]) bool {
		if !bytes.HasPrefix(e.key, prefix) {
			return false
		}
		local = append(local, e)
		return true
	})

	var lower iter[V]
	if c.base != nil {
		lower = c.base.newIter(prefix)
	} else {
		lower = &storeIter[V]{it: c.space.NewStore(c.store).Iterate(kv.PrefixRange(prefix))}
	}
	if len(local) == 0 {
		return lower
	}
	return &mergeIter[V]{a: &sliceIter[V]{entries: local}, b: lower}
}

// layer implementation

func (c *Composite[K, V]) root() bool { return c.base == nil }

func (c *Composite[K, V]) physical() kv.Store { return c.store }

func (c *Composite[K, V]) mergeIntoBase() int {
	n := c.buf.Len()
	c.buf.Ascend(func(e *entry[V]) bool {
		c.base.put(e)
		return true
	})
	c.Clear()
	return n
}

func (c *Composite[K, V]) writeTo(w kv.Putter) (int, error) {
	var err error
	p := c.space.NewPutter(w)
	c.buf.Ascend(func(e *entry[V]) bool {
		if e.deleted {
			err = p.Delete(e.key)
		} else {
			err = p.Put(e.key, e.raw)
		}
		return err == nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "kvcache: write %q", c.space)
	}
	return c.buf.Len(), nil
}

func (c *Composite[K, V]) committed() {
	if c.reads != nil {
		c.buf.Ascend(func(e *entry[V]) bool {
			c.reads.Remove(string(e.key))
			return true
		})
	}
	c.Clear()
}

// Flush flushes layers in the given order. Child layers merge into their bases.
// Root layers are written in a single atomic batch and cleared only after the
// batch is written. They must share one physical store, otherwise
// ErrStoreMismatch is returned and nothing is flushed.
func Flush(layers ...Layer) error {
	start := time.Now()
	var store kv.Store
	for _, l := range layers {
		if !l.root() {
			continue
		}
		if store == nil {
			store = l.physical()
		} else if l.physical() != store {
			return errors.WithMessagef(ErrStoreMismatch, "flush %q", l.Space())
		}
	}

	var (
		bulk  kv.Bulk
		roots []Layer
	)
	for _, l := range layers {
		if !l.root() {
			n := l.mergeIntoBase()
			metricFlushedEntries().AddWithLabel(int64(n), map[string]string{"space": string(l.Space()), "target": "base"})
			continue
		}
		if bulk == nil {
			bulk = store.Bulk()
		}
		n, err := l.writeTo(bulk)
		if err != nil {
			return err
		}
		metricFlushedEntries().AddWithLabel(int64(n), map[string]string{"space": string(l.Space()), "target": "store"})
		roots = append(roots, l)
	}
	if bulk != nil {
		n := bulk.Len()
		if err := bulk.Write(); err != nil {
			return errors.Wrap(err, "kvcache: flush")
		}
		for _, l := range roots {
			l.committed()
		}
		metricFlushBatchOps().Set(int64(n))
		logger.Debug("flushed to store", "layers", len(roots), "ops", n, "elapsed", time.Since(start))
	}
	metricFlushDuration().Observe(time.Since(start).Milliseconds())
	return nil
}

// Layer is a cache layer that can be flushed by Flush.
type Layer interface {
	Space() kv.Bucket
	Size() int
	ReadStats() (ReadStats, bool)
	Clear()
	Flush() error

	root() bool
	physical() kv.Store
	mergeIntoBase() int
	writeTo(w kv.Putter) (int, error)
	committed()
}
