// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package oplog

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/vechain/statecache/kv"
)

// MarshalBinary encodes the log as snappy compressed RLP.
func (l *Log) MarshalBinary() ([]byte, error) {
	data, err := rlp.EncodeToBytes(l.entries)
	if err != nil {
		return nil, errors.Wrap(err, "oplog: encode")
	}
	return snappy.Encode(nil, data), nil
}

// UnmarshalBinary decodes the log encoded by MarshalBinary.
func (l *Log) UnmarshalBinary(data []byte) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(err, "oplog: decompress")
	}
	var entries []Entry
	if err := rlp.DecodeBytes(raw, &entries); err != nil {
		return errors.Wrap(err, "oplog: decode")
	}
	l.entries = entries
	return nil
}

// Save stores the log under the key, e.g. the undo data of a block.
func Save(w kv.Putter, key []byte, l *Log) error {
	data, err := l.MarshalBinary()
	if err != nil {
		return err
	}
	return w.Put(key, data)
}

// Load reads the log stored under the key.
func Load(r kv.Getter, key []byte) (*Log, bool, error) {
	data, found, err := kv.Get(r, key)
	if err != nil || !found {
		return nil, false, err
	}
	l := New()
	if err := l.UnmarshalBinary(data); err != nil {
		return nil, false, err
	}
	return l, true, nil
}
