// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegate_test

import (
	"math"
	"sort"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/statecache/delegate"
	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/kvcache"
	"github.com/vechain/statecache/lvldb"
	"github.com/vechain/statecache/oplog"
)

var (
	idA = delegate.RegID{Height: 10, Index: 2}
	idB = delegate.RegID{Height: 11, Index: 0}
	idC = delegate.RegID{Height: 10, Index: 1}
)

func newStore(t *testing.T) *lvldb.LevelDB {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newCache(t *testing.T, store kv.Store) *delegate.Cache {
	c, err := delegate.New(store, delegate.Options{MaxDelegates: 3})
	require.NoError(t, err)
	return c
}

func top(t *testing.T, c *delegate.Cache, n int) []delegate.VoteDelegate {
	ds, err := c.GetTopVoteDelegates(n)
	require.NoError(t, err)
	return ds
}

func TestDelegateVotes(t *testing.T) {
	c := newCache(t, newStore(t))

	require.NoError(t, c.SetDelegateVotes(idA, 100))
	votes, found, err := c.GetDelegateVotes(idA)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(100), votes)

	// moves the index entry
	require.NoError(t, c.SetDelegateVotes(idA, 30))
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idA, Votes: 30}}, top(t, c, 0))

	require.NoError(t, c.SetDelegateVotes(idA, 0))
	_, found, _ = c.GetDelegateVotes(idA)
	assert.False(t, found)
	assert.Empty(t, top(t, c, 0))

	assert.ErrorIs(t, c.SetDelegateVotes(delegate.RegID{}, 1), delegate.ErrInvalidRegID)
}

func TestTopVoteDelegates(t *testing.T) {
	c := newCache(t, newStore(t))
	require.NoError(t, c.SetDelegateVotes(idA, 100))
	require.NoError(t, c.SetDelegateVotes(idB, 50))
	require.NoError(t, c.SetDelegateVotes(idC, 100))

	assert.Equal(t, []delegate.VoteDelegate{
		{RegID: idC, Votes: 100},
		{RegID: idA, Votes: 100},
	}, top(t, c, 2))
	assert.Len(t, top(t, c, 0), 3)
	assert.Len(t, top(t, c, 10), 3)

	require.NoError(t, c.Flush())
	assert.Equal(t, []delegate.VoteDelegate{
		{RegID: idC, Votes: 100},
		{RegID: idA, Votes: 100},
		{RegID: idB, Votes: 50},
	}, top(t, c, 0))
}

func TestEraseDelegateVotes(t *testing.T) {
	c := newCache(t, newStore(t))
	require.NoError(t, c.SetDelegateVotes(idA, 100))

	assert.ErrorIs(t, c.EraseDelegateVotes(idA, 99), delegate.ErrVoteIndexMismatch)
	assert.ErrorIs(t, c.EraseDelegateVotes(idB, 100), delegate.ErrVoteIndexMismatch)
	assert.Len(t, top(t, c, 0), 1)

	require.NoError(t, c.EraseDelegateVotes(idA, 100))
	assert.Empty(t, top(t, c, 0))
	_, found, _ := c.GetDelegateVotes(idA)
	assert.False(t, found)
}

func TestAddDelegateVotes(t *testing.T) {
	c := newCache(t, newStore(t))

	votes, err := c.AddDelegateVotes(idA, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), votes)

	votes, err = c.AddDelegateVotes(idA, -4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), votes)

	_, err = c.AddDelegateVotes(idA, -7)
	assert.ErrorIs(t, err, delegate.ErrVotesUnderflow)
	_, err = c.AddDelegateVotes(idA, math.MinInt64)
	assert.ErrorIs(t, err, delegate.ErrVotesUnderflow)

	require.NoError(t, c.SetDelegateVotes(idB, math.MaxUint64-1))
	_, err = c.AddDelegateVotes(idB, 2)
	assert.ErrorIs(t, err, delegate.ErrVotesOverflow)

	votes, err = c.AddDelegateVotes(idA, -6)
	require.NoError(t, err)
	assert.Zero(t, votes)
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idB, Votes: math.MaxUint64 - 1}}, top(t, c, 0))
}

func TestCandidateVotes(t *testing.T) {
	c := newCache(t, newStore(t))
	votes := []delegate.CandidateReceivedVote{{Candidate: idA, Votes: 10}, {Candidate: idC, Votes: 5}}

	require.NoError(t, c.SetCandidateVotes(idB, votes))
	require.NoError(t, c.Flush())
	require.NoError(t, c.SetCandidateVotes(idC, votes[:1]))

	got, found, err := c.GetCandidateVotes(idB)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, votes, got)

	voters, err := c.GetVoterList()
	require.NoError(t, err)
	assert.Equal(t, map[delegate.RegID][]delegate.CandidateReceivedVote{
		idB: votes,
		idC: votes[:1],
	}, voters)

	require.NoError(t, c.SetCandidateVotes(idB, nil))
	voters, err = c.GetVoterList()
	require.NoError(t, err)
	assert.Len(t, voters, 1)
}

func TestLastVoteHeight(t *testing.T) {
	c := newCache(t, newStore(t))

	h, err := c.GetLastVoteHeight()
	assert.NoError(t, err)
	assert.Zero(t, h)

	require.NoError(t, c.SetLastVoteHeight(100))
	require.NoError(t, c.SetLastVoteHeight(100))
	assert.ErrorIs(t, c.SetLastVoteHeight(99), delegate.ErrHeightRegression)

	h, _ = c.GetLastVoteHeight()
	assert.Equal(t, uint32(100), h)
}

func TestActiveDelegates(t *testing.T) {
	c := newCache(t, newStore(t))
	ds := []delegate.VoteDelegate{{RegID: idA, Votes: 3}, {RegID: idB, Votes: 2}}

	ok, err := c.IsActiveDelegate(idA)
	assert.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetActiveDelegates(ds))
	ok, _ = c.IsActiveDelegate(idA)
	assert.True(t, ok)
	ok, _ = c.IsActiveDelegate(idC)
	assert.False(t, ok)

	d, found, err := c.GetActiveDelegate(idB)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ds[1], d)

	got, err := c.GetActiveDelegates()
	assert.NoError(t, err)
	assert.Equal(t, ds, got)

	tooMany := append(ds, delegate.VoteDelegate{RegID: idC}, delegate.VoteDelegate{RegID: delegate.RegID{Height: 99}})
	assert.ErrorIs(t, c.SetActiveDelegates(tooMany), delegate.ErrTooManyDelegates)
	assert.ErrorIs(t, c.SetActiveDelegates([]delegate.VoteDelegate{ds[0], ds[0]}), delegate.ErrDuplicateDelegate)
	assert.ErrorIs(t, c.SetActiveDelegates([]delegate.VoteDelegate{{}}), delegate.ErrInvalidRegID)

	// replaced wholesale
	require.NoError(t, c.SetActiveDelegates(ds[1:]))
	ok, _ = c.IsActiveDelegate(idA)
	assert.False(t, ok)

	require.NoError(t, c.SetActiveDelegates(nil))
	got, _ = c.GetActiveDelegates()
	assert.Empty(t, got)
}

func TestPendingDelegates(t *testing.T) {
	c := newCache(t, newStore(t))

	_, found, err := c.GetPendingDelegates()
	assert.NoError(t, err)
	assert.False(t, found)

	p := delegate.PendingDelegates{
		State:             delegate.PendingCounted,
		CountedVoteHeight: 7,
		TopVoteDelegates:  []delegate.VoteDelegate{{RegID: idC, Votes: 100}},
	}
	require.NoError(t, c.SetPendingDelegates(p))
	got, found, err := c.GetPendingDelegates()
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, p, got)

	p.TopVoteDelegates = append(p.TopVoteDelegates, p.TopVoteDelegates[0])
	assert.ErrorIs(t, c.SetPendingDelegates(p), delegate.ErrDuplicateDelegate)
}

func TestChildDiscard(t *testing.T) {
	store := newStore(t)
	parent := newCache(t, store)
	require.NoError(t, parent.SetDelegateVotes(idA, 10))
	require.NoError(t, parent.Flush())

	child := delegate.NewChild(parent)
	require.NoError(t, child.SetDelegateVotes(idA, 20))
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idA, Votes: 20}}, top(t, child, 1))

	// child discarded without flush
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idA, Votes: 10}}, top(t, parent, 1))
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idA, Votes: 10}}, top(t, newCache(t, store), 1))
}

func TestChildFlush(t *testing.T) {
	store := newStore(t)
	parent := newCache(t, store)
	require.NoError(t, parent.SetDelegateVotes(idA, 10))
	require.NoError(t, parent.SetLastVoteHeight(5))

	child := delegate.NewChild(parent)
	require.NoError(t, child.SetDelegateVotes(idA, 20))
	require.NoError(t, child.SetDelegateVotes(idB, 15))
	require.NoError(t, child.SetLastVoteHeight(6))
	require.NoError(t, child.SetActiveDelegates([]delegate.VoteDelegate{{RegID: idA, Votes: 20}}))
	assert.NotZero(t, child.Size())

	require.NoError(t, child.Flush())
	assert.Zero(t, child.Size())
	assert.Empty(t, top(t, newCache(t, store), 0), "nothing reaches the store")

	require.NoError(t, parent.Flush())
	require.NoError(t, parent.Flush())
	assert.Zero(t, parent.Size())

	reopened := newCache(t, store)
	want := []delegate.VoteDelegate{{RegID: idA, Votes: 20}, {RegID: idB, Votes: 15}}
	assert.Equal(t, want, top(t, reopened, 0))
	h, _ := reopened.GetLastVoteHeight()
	assert.Equal(t, uint32(6), h)
	ok, _ := reopened.IsActiveDelegate(idA)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := newCache(t, newStore(t))
	require.NoError(t, c.SetDelegateVotes(idA, 10))
	require.NoError(t, c.SetLastVoteHeight(5))

	c.Clear()
	assert.Zero(t, c.Size())
	assert.Empty(t, top(t, c, 0))
	h, _ := c.GetLastVoteHeight()
	assert.Zero(t, h)
}

func TestSetBase(t *testing.T) {
	a := newCache(t, newStore(t))
	b := newCache(t, newStore(t))
	require.NoError(t, a.SetDelegateVotes(idA, 1))
	require.NoError(t, b.SetDelegateVotes(idB, 2))

	child := delegate.NewChild(a)
	require.NoError(t, child.SetBase(b))
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idB, Votes: 2}}, top(t, child, 0))

	require.NoError(t, b.SetLastVoteHeight(7))
	grand := delegate.NewChild(child)
	assert.ErrorIs(t, child.SetBase(grand), kvcache.ErrCyclicBase)
	// a failed rebind leaves every sub cache on the previous base
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idB, Votes: 2}}, top(t, child, 0))
	h, err := child.GetLastVoteHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), h)

	require.NoError(t, child.SetBase(nil))
	assert.Empty(t, top(t, child, 0))
	h, err = child.GetLastVoteHeight()
	require.NoError(t, err)
	assert.Zero(t, h)
}

type snapshot struct {
	Top     []delegate.VoteDelegate
	Voters  map[delegate.RegID][]delegate.CandidateReceivedVote
	Height  uint32
	Pending delegate.PendingDelegates
	Active  []delegate.VoteDelegate
}

func takeSnapshot(t *testing.T, c *delegate.Cache) snapshot {
	var (
		s   snapshot
		err error
	)
	s.Top = top(t, c, 0)
	s.Voters, err = c.GetVoterList()
	require.NoError(t, err)
	s.Height, err = c.GetLastVoteHeight()
	require.NoError(t, err)
	s.Pending, _, err = c.GetPendingDelegates()
	require.NoError(t, err)
	s.Active, err = c.GetActiveDelegates()
	require.NoError(t, err)
	return s
}

func writeBlock(t *testing.T, c *delegate.Cache) {
	_, err := c.AddDelegateVotes(idA, 5)
	require.NoError(t, err)
	_, err = c.AddDelegateVotes(idA, -3)
	require.NoError(t, err)
	require.NoError(t, c.SetDelegateVotes(idB, 0))
	require.NoError(t, c.SetDelegateVotes(idC, 70))
	require.NoError(t, c.SetCandidateVotes(idB, []delegate.CandidateReceivedVote{{Candidate: idC, Votes: 70}}))
	require.NoError(t, c.SetCandidateVotes(idA, nil))
	require.NoError(t, c.SetLastVoteHeight(9))
	require.NoError(t, c.SetLastVoteHeight(12))
	require.NoError(t, c.SetPendingDelegates(delegate.PendingDelegates{State: delegate.PendingCounted, CountedVoteHeight: 12}))
	require.NoError(t, c.SetActiveDelegates(nil))
}

func newParent(t *testing.T) *delegate.Cache {
	parent := newCache(t, newStore(t))
	require.NoError(t, parent.SetDelegateVotes(idA, 10))
	require.NoError(t, parent.SetDelegateVotes(idB, 20))
	require.NoError(t, parent.SetCandidateVotes(idA, []delegate.CandidateReceivedVote{{Candidate: idB, Votes: 20}}))
	require.NoError(t, parent.SetLastVoteHeight(8))
	require.NoError(t, parent.SetActiveDelegates([]delegate.VoteDelegate{{RegID: idB, Votes: 20}}))
	require.NoError(t, parent.Flush())
	require.NoError(t, parent.SetDelegateVotes(idA, 11))
	return parent
}

func TestUndo(t *testing.T) {
	parent := newParent(t)
	before := takeSnapshot(t, parent)

	child := delegate.NewChild(parent)
	log := oplog.New()
	child.SetLog(log)
	writeBlock(t, child)
	assert.NotEqual(t, before, takeSnapshot(t, child))

	require.NoError(t, child.Undo(log))
	assert.Equal(t, before, takeSnapshot(t, child))
	assert.Zero(t, log.Len())

	require.NoError(t, child.Flush())
	assert.Equal(t, before, takeSnapshot(t, parent))
}

func TestUndoPersisted(t *testing.T) {
	parent := newParent(t)
	before := takeSnapshot(t, parent)

	log := oplog.New()
	parent.SetLog(log)
	writeBlock(t, parent)
	require.NoError(t, parent.Flush())

	// undo data saved along with the block, replayed on reorg
	undoStore := newStore(t)
	require.NoError(t, oplog.Save(undoStore, []byte("block-12"), log))

	loaded, found, err := oplog.Load(undoStore, []byte("block-12"))
	require.NoError(t, err)
	require.True(t, found)

	parent.SetLog(nil)
	require.NoError(t, parent.Undo(loaded))
	assert.Equal(t, before, takeSnapshot(t, parent))
}

func TestRevertTransaction(t *testing.T) {
	c := newCache(t, newStore(t))
	log := oplog.New()
	c.SetLog(log)

	require.NoError(t, c.SetDelegateVotes(idA, 10))
	rev := log.Checkpoint()
	_, err := c.AddDelegateVotes(idA, 10)
	require.NoError(t, err)
	require.NoError(t, c.SetDelegateVotes(idB, 30))

	require.NoError(t, log.RevertTo(rev, c.Undoables()...))
	assert.Equal(t, []delegate.VoteDelegate{{RegID: idA, Votes: 10}}, top(t, c, 0))
	assert.Equal(t, rev, log.Len())
}

type fuzzOp struct {
	Kind  uint8
	ID    uint8
	Votes uint16
}

// TestIndexConsistency applies random operations and checks the index against
// a model of the delegate votes.
func TestIndexConsistency(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		var ops []fuzzOp
		fuzz.NewWithSeed(seed).NilChance(0).NumElements(300, 300).Fuzz(&ops)

		store := newStore(t)
		root := newCache(t, store)
		c := delegate.NewChild(root)
		model := make(map[delegate.RegID]uint64)

		for i, op := range ops {
			id := delegate.RegID{Height: uint32(op.ID%8) + 1, Index: uint16(op.ID / 64)}
			votes := uint64(op.Votes % 64)

			switch op.Kind % 4 {
			case 0:
				require.NoError(t, c.SetDelegateVotes(id, votes))
				if votes == 0 {
					delete(model, id)
				} else {
					model[id] = votes
				}
			case 1:
				delta := int64(votes) - 32
				got, err := c.AddDelegateVotes(id, delta)
				if int64(model[id])+delta < 0 {
					require.ErrorIs(t, err, delegate.ErrVotesUnderflow)
					break
				}
				require.NoError(t, err)
				want := uint64(int64(model[id]) + delta)
				require.Equal(t, want, got)
				if want == 0 {
					delete(model, id)
				} else {
					model[id] = want
				}
			case 2:
				if cur, ok := model[id]; ok {
					require.NoError(t, c.EraseDelegateVotes(id, cur))
					delete(model, id)
				} else {
					require.ErrorIs(t, c.EraseDelegateVotes(id, votes), delegate.ErrVoteIndexMismatch)
				}
			case 3:
				if cur, ok := model[id]; ok {
					require.ErrorIs(t, c.EraseDelegateVotes(id, cur+1), delegate.ErrVoteIndexMismatch)
				}
			}

			if i%50 == 49 {
				require.NoError(t, c.Flush())
			}
			if i%100 == 99 {
				require.NoError(t, root.Flush())
			}
		}

		want := make([]delegate.VoteDelegate, 0, len(model))
		for id, votes := range model {
			want = append(want, delegate.VoteDelegate{RegID: id, Votes: votes})
		}
		sort.Slice(want, func(i, j int) bool {
			if want[i].Votes != want[j].Votes {
				return want[i].Votes > want[j].Votes
			}
			return want[i].RegID.Less(want[j].RegID)
		})

		assert.Equal(t, want, top(t, c, 0), "seed %d", seed)
		for _, d := range want {
			votes, found, err := c.GetDelegateVotes(d.RegID)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, d.Votes, votes)
		}

		require.NoError(t, c.Flush())
		require.NoError(t, root.Flush())
		assert.Equal(t, want, top(t, newCache(t, store), 0), "seed %d", seed)
	}
}
