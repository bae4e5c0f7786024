// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"github.com/pkg/errors"

	"github.com/vechain/statecache/codec"
	"github.com/vechain/statecache/kv"
	"github.com/vechain/statecache/oplog"
)

// journalSpace holds the undo logs of committed commands, keyed by
// descending sequence so that the newest sorts first.
const journalSpace kv.Bucket = "U"

func journalKey(seq uint64) []byte {
	return codec.EncodeKey[uint64](codec.DescUint64, seq)
}

// lastJournal returns the newest undo log and its sequence.
func lastJournal(store kv.Store) (uint64, *oplog.Log, bool, error) {
	it := journalSpace.NewStore(store).Iterate(kv.Range{})
	defer it.Release()

	if !it.Next() {
		return 0, nil, false, it.Error()
	}
	seq, err := codec.DescUint64.DecodeKey(it.Key())
	if err != nil {
		return 0, nil, false, errors.WithMessage(err, "journal key")
	}
	log := oplog.New()
	if err := log.UnmarshalBinary(it.Value()); err != nil {
		return 0, nil, false, errors.WithMessagef(err, "journal %d", seq)
	}
	return seq, log, true, nil
}

// pushJournal stores the undo log as the newest one. Empty logs are skipped.
func pushJournal(store kv.Store, log *oplog.Log) error {
	if log.Len() == 0 {
		return nil
	}
	seq, _, _, err := lastJournal(store)
	if err != nil {
		return err
	}
	return oplog.Save(journalSpace.NewPutter(store), journalKey(seq+1), log)
}

// dropJournal removes the undo log of the sequence.
func dropJournal(store kv.Store, seq uint64) error {
	return journalSpace.NewPutter(store).Delete(journalKey(seq))
}
