// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package delegate implements the delegate vote cache: the vote ranking index,
// the voter ledger, the last vote height and the pending and active delegate
// rosters, layered over a kv.Store by kvcache.
package delegate

import (
	"math"

	"github.com/pkg/errors"

	"github.com/vechain/statecache/codec"
	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/kvcache"
	"github.com/vechain/statecache/log"
	"github.com/vechain/statecache/metrics"
	"github.com/vechain/statecache/oplog"
)

// namespaces
const (
	VoteIndexSpace      kv.Bucket = "V"
	VoterLedgerSpace    kv.Bucket = "R"
	DelegateVotesSpace  kv.Bucket = "D"
	LastVoteHeightSpace kv.Bucket = "H"
	PendingSpace        kv.Bucket = "P"
	ActiveSpace         kv.Bucket = "A"
)

// DefaultMaxDelegates is the default bound of delegate rosters.
const DefaultMaxDelegates = 11

var (
	ErrInvalidRegID      = errors.New("delegate: invalid reg id")
	ErrVoteIndexMismatch = errors.New("delegate: vote index mismatch")
	ErrVotesOverflow     = errors.New("delegate: votes overflow")
	ErrVotesUnderflow    = errors.New("delegate: votes underflow")
	ErrHeightRegression  = errors.New("delegate: last vote height regression")
	ErrTooManyDelegates  = errors.New("delegate: too many delegates")
	ErrDuplicateDelegate = errors.New("delegate: duplicate delegate")

	logger = log.WithContext("pkg", "delegate")

	metricVoteUpdates = metrics.LazyLoadCounterVec("delegate_vote_update_count", []string{"op"})
)

// Options optional parameters of the root cache.
type Options struct {
	kvcache.Options `yaml:",inline"`
	// MaxDelegates bounds the pending and active rosters. Zero means DefaultMaxDelegates.
	MaxDelegates int `yaml:"max-delegates"`
}

type rankKey = codec.Tuple[uint64, RegID]

// rankKeys sorts by votes descending, then by RegID ascending.
var rankKeys = codec.Pair[uint64, RegID](codec.DescUint64, RegIDKey)

// Cache is the delegate vote cache. A root cache reads and flushes to the
// store, a child cache reads through and flushes into its parent.
//
// The vote index and the delegate votes table always agree: a delegate with
// n > 0 votes has exactly one index entry (n, id).
type Cache struct {
	index   *kvcache.Composite[rankKey, uint8]
	voters  *kvcache.Composite[RegID, []CandidateReceivedVote]
	votes   *kvcache.Composite[RegID, uint64]
	height  *kvcache.Simple[uint32]
	pending *kvcache.Simple[PendingDelegates]
	active  *kvcache.Simple[[]VoteDelegate]

	maxDelegates int
}

// New creates the root cache backed by the store.
func New(store kv.Store, opts Options) (*Cache, error) {
	var (
		c   Cache
		err error
	)
	if c.index, err = kvcache.NewComposite[rankKey, uint8](store, VoteIndexSpace, rankKeys, codec.RLP[uint8](), opts.Options); err != nil {
		return nil, err
	}
	if c.voters, err = kvcache.NewComposite[RegID, []CandidateReceivedVote](store, VoterLedgerSpace, RegIDKey, codec.RLP[[]CandidateReceivedVote](), opts.Options); err != nil {
		return nil, err
	}
	if c.votes, err = kvcache.NewComposite[RegID, uint64](store, DelegateVotesSpace, RegIDKey, codec.RLP[uint64](), opts.Options); err != nil {
		return nil, err
	}
	if c.height, err = kvcache.NewSimple(store, LastVoteHeightSpace, codec.RLP[uint32](), opts.Options); err != nil {
		return nil, err
	}
	if c.pending, err = kvcache.NewSimple(store, PendingSpace, codec.RLP[PendingDelegates](), opts.Options); err != nil {
		return nil, err
	}
	if c.active, err = kvcache.NewSimple(store, ActiveSpace, codec.RLP[[]VoteDelegate](), opts.Options); err != nil {
		return nil, err
	}
	c.maxDelegates = opts.MaxDelegates
	if c.maxDelegates <= 0 {
		c.maxDelegates = DefaultMaxDelegates
	}
	return &c, nil
}

// NewChild creates a cache on top of parent.
func NewChild(parent *Cache) *Cache {
	return &Cache{
		index:        parent.index.NewChild(),
		voters:       parent.voters.NewChild(),
		votes:        parent.votes.NewChild(),
		height:       parent.height.NewChild(),
		pending:      parent.pending.NewChild(),
		active:       parent.active.NewChild(),
		maxDelegates: parent.maxDelegates,
	}
}

// layers returns sub caches in flush order.
func (c *Cache) layers() []kvcache.Layer {
	return []kvcache.Layer{c.index, c.voters, c.votes, c.height, c.pending, c.active}
}

// GetTopVoteDelegates returns the n most voted delegates, by votes descending
// then by RegID ascending. A non-positive n returns all delegates.
func (c *Cache) GetTopVoteDelegates(n int) ([]VoteDelegate, error) {
	pairs, err := c.index.Scan(nil, n)
	if err != nil {
		return nil, err
	}
	ds := make([]VoteDelegate, 0, len(pairs))
	for _, p := range pairs {
		ds = append(ds, VoteDelegate{RegID: p.Key.Second, Votes: p.Key.First})
	}
	return ds, nil
}

// GetDelegateVotes returns the received votes of the delegate.
func (c *Cache) GetDelegateVotes(id RegID) (uint64, bool, error) {
	return c.votes.Get(id)
}

// SetDelegateVotes sets the received votes of the delegate, moving its
// entry in the vote index. Zero votes removes the delegate.
func (c *Cache) SetDelegateVotes(id RegID, votes uint64) error {
	if id.IsEmpty() {
		return ErrInvalidRegID
	}
	prev, found, err := c.votes.Get(id)
	if err != nil {
		return err
	}
	if (found && prev == votes) || (!found && votes == 0) {
		return nil
	}
	metricVoteUpdates().AddWithLabel(1, map[string]string{"op": "set"})
	if found {
		if err := c.index.Erase(rankKey{First: prev, Second: id}); err != nil {
			return err
		}
	}
	if votes == 0 {
		return c.votes.Erase(id)
	}
	if err := c.index.Set(rankKey{First: votes, Second: id}, 1); err != nil {
		return err
	}
	return c.votes.Set(id, votes)
}

// EraseDelegateVotes removes the delegate, which must be indexed with exactly
// the given votes.
func (c *Cache) EraseDelegateVotes(id RegID, votes uint64) error {
	key := rankKey{First: votes, Second: id}
	indexed, err := c.index.Has(key)
	if err != nil {
		return err
	}
	prev, found, err := c.votes.Get(id)
	if err != nil {
		return err
	}
	if !indexed || !found || prev != votes {
		return errors.WithMessagef(ErrVoteIndexMismatch, "erase %v with %d votes", id, votes)
	}
	metricVoteUpdates().AddWithLabel(1, map[string]string{"op": "erase"})
	if err := c.index.Erase(key); err != nil {
		return err
	}
	return c.votes.Erase(id)
}

// AddDelegateVotes adds delta to the received votes of the delegate and
// returns the new votes.
func (c *Cache) AddDelegateVotes(id RegID, delta int64) (uint64, error) {
	prev, _, err := c.votes.Get(id)
	if err != nil {
		return 0, err
	}
	var votes uint64
	if delta >= 0 {
		if prev > math.MaxUint64-uint64(delta) {
			return 0, errors.WithMessagef(ErrVotesOverflow, "%v: %d + %d", id, prev, delta)
		}
		votes = prev + uint64(delta)
	} else {
		sub := uint64(-(delta + 1)) + 1
		if sub > prev {
			return 0, errors.WithMessagef(ErrVotesUnderflow, "%v: %d - %d", id, prev, sub)
		}
		votes = prev - sub
	}
	if err := c.SetDelegateVotes(id, votes); err != nil {
		return 0, err
	}
	return votes, nil
}

// GetCandidateVotes returns the votes cast by the voter.
func (c *Cache) GetCandidateVotes(voter RegID) ([]CandidateReceivedVote, bool, error) {
	return c.voters.Get(voter)
}

// SetCandidateVotes replaces the votes cast by the voter. Empty votes removes the voter.
func (c *Cache) SetCandidateVotes(voter RegID, votes []CandidateReceivedVote) error {
	if voter.IsEmpty() {
		return ErrInvalidRegID
	}
	if len(votes) == 0 {
		return c.voters.Erase(voter)
	}
	return c.voters.Set(voter, votes)
}

// GetVoterList returns the votes of all voters.
func (c *Cache) GetVoterList() (map[RegID][]CandidateReceivedVote, error) {
	voters := make(map[RegID][]CandidateReceivedVote)
	err := c.voters.Iterate(nil, func(voter RegID, votes []CandidateReceivedVote) bool {
		voters[voter] = votes
		return true
	})
	if err != nil {
		return nil, err
	}
	return voters, nil
}

// GetLastVoteHeight returns the last vote height, zero if never set.
func (c *Cache) GetLastVoteHeight() (uint32, error) {
	h, _, err := c.height.Get()
	return h, err
}

// SetLastVoteHeight sets the last vote height, which never decreases.
func (c *Cache) SetLastVoteHeight(height uint32) error {
	cur, err := c.GetLastVoteHeight()
	if err != nil {
		return err
	}
	if height < cur {
		return errors.WithMessagef(ErrHeightRegression, "%d < %d", height, cur)
	}
	return c.height.Set(height)
}

// GetPendingDelegates returns the pending delegates.
func (c *Cache) GetPendingDelegates() (PendingDelegates, bool, error) {
	return c.pending.Get()
}

// SetPendingDelegates replaces the pending delegates.
func (c *Cache) SetPendingDelegates(pending PendingDelegates) error {
	if err := c.checkRoster(pending.TopVoteDelegates); err != nil {
		return err
	}
	return c.pending.Set(pending)
}

// IsActiveDelegate returns whether the delegate is in the active roster.
func (c *Cache) IsActiveDelegate(id RegID) (bool, error) {
	_, found, err := c.GetActiveDelegate(id)
	return found, err
}

// GetActiveDelegate returns the delegate from the active roster.
func (c *Cache) GetActiveDelegate(id RegID) (VoteDelegate, bool, error) {
	ds, err := c.GetActiveDelegates()
	if err != nil {
		return VoteDelegate{}, false, err
	}
	for _, d := range ds {
		if d.RegID == id {
			return d, true, nil
		}
	}
	return VoteDelegate{}, false, nil
}

// GetActiveDelegates returns the active roster.
func (c *Cache) GetActiveDelegates() ([]VoteDelegate, error) {
	ds, _, err := c.active.Get()
	return ds, err
}

// SetActiveDelegates replaces the active roster. An empty roster removes it.
func (c *Cache) SetActiveDelegates(ds []VoteDelegate) error {
	if err := c.checkRoster(ds); err != nil {
		return err
	}
	if len(ds) == 0 {
		return c.active.Erase()
	}
	return c.active.Set(ds)
}

func (c *Cache) checkRoster(ds []VoteDelegate) error {
	if len(ds) > c.maxDelegates {
		return errors.WithMessagef(ErrTooManyDelegates, "%d > %d", len(ds), c.maxDelegates)
	}
	seen := make(map[RegID]struct{}, len(ds))
	for _, d := range ds {
		if d.RegID.IsEmpty() {
			return ErrInvalidRegID
		}
		if _, ok := seen[d.RegID]; ok {
			return errors.WithMessagef(ErrDuplicateDelegate, "%v", d.RegID)
		}
		seen[d.RegID] = struct{}{}
	}
	return nil
}

// SetBase rebinds all sub caches onto parent. A nil parent makes c a root cache.
func (c *Cache) SetBase(parent *Cache) error {
	if parent == nil {
		parent = &Cache{}
	}
	if err := c.index.SetBase(parent.index); err != nil {
		return err
	}
	if err := c.voters.SetBase(parent.voters); err != nil {
		return err
	}
	if err := c.votes.SetBase(parent.votes); err != nil {
		return err
	}
	if err := c.height.SetBase(parent.height); err != nil {
		return err
	}
	if err := c.pending.SetBase(parent.pending); err != nil {
		return err
	}
	return c.active.SetBase(parent.active)
}

// SetLog sets the log recording prior states of all writes.
func (c *Cache) SetLog(log *oplog.Log) {
	c.index.SetLog(log)
	c.voters.SetLog(log)
	c.votes.SetLog(log)
	c.height.SetLog(log)
	c.pending.SetLog(log)
	c.active.SetLog(log)
}

// Undoables returns the undo handles of all sub caches.
func (c *Cache) Undoables() []oplog.Undoable {
	return []oplog.Undoable{c.index, c.voters, c.votes, c.height, c.pending, c.active}
}

// Undo reverts all entries of the log.
func (c *Cache) Undo(log *oplog.Log) error {
	return log.Undo(c.Undoables()...)
}

// Flush flushes all sub caches. A root cache writes them in one batch.
func (c *Cache) Flush() error {
	if err := kvcache.Flush(c.layers()...); err != nil {
		return err
	}
	logger.Trace("flushed")
	return nil
}

// Size returns the approximate memory footprint of local entries.
func (c *Cache) Size() int {
	var size int
	for _, l := range c.layers() {
		size += l.Size()
	}
	return size
}

// ReadStats returns the read cache statistics of every namespace.
// It is safe to call concurrently with other methods.
func (c *Cache) ReadStats() []kvcache.ReadStats {
	var stats []kvcache.ReadStats
	for _, l := range c.layers() {
		if s, ok := l.ReadStats(); ok {
			stats = append(stats, s)
		}
	}
	return stats
}

// Clear drops all local entries.
func (c *Cache) Clear() {
	for _, l := range c.layers() {
		l.Clear()
	}
}
