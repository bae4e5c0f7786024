// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package codec defines how cache keys and values are turned into bytes.
//
// Key codecs are order preserving: for any two keys a < b in logical order,
// the encoding of a sorts before the encoding of b byte-lexicographically.
// Numeric fields are therefore fixed-width big-endian. A descending order is
// obtained with DescUint64, which stores math.MaxUint64 - v.
//
// Value codecs only promise the round trip: Decode(Encode(v)) == v.
package codec

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// Key encodes keys of type K, preserving order.
type Key[K any] interface {
	AppendKey(buf []byte, k K) []byte
	DecodeKey(data []byte) (K, error)
}

// FixedKey is a key codec whose encoding always has the same width.
// Only fixed keys can lead a composite key.
type FixedKey[K any] interface {
	Key[K]
	Width() int
}

// Value encodes values of type V.
type Value[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// EncodeKey is a shortcut of c.AppendKey(nil, k).
func EncodeKey[K any](c Key[K], k K) []byte {
	return c.AppendKey(nil, k)
}

func errKeyLen(name string, got, want int) error {
	return errors.Errorf("codec: %s key length %d, want %d", name, got, want)
}

type rlpValue[V any] struct{}

// RLP returns the value codec based on RLP encoding.
func RLP[V any]() Value[V] {
	return rlpValue[V]{}
}

func (rlpValue[V]) Encode(v V) ([]byte, error) {
	data, err := rlp.EncodeToBytes(&v)
	if err != nil {
		return nil, errors.Wrap(err, "codec: rlp encode")
	}
	return data, nil
}

func (rlpValue[V]) Decode(data []byte) (V, error) {
	var v V
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return v, errors.Wrap(err, "codec: rlp decode")
	}
	return v, nil
}
