// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package codec

import (
	"encoding/binary"
	"math"
)

var (
	// Empty encodes the zero-width key, used by caches that hold a single value.
	Empty FixedKey[struct{}] = emptyKey{}
	// Uint64 encodes uint64 as 8 bytes big-endian.
	Uint64 FixedKey[uint64] = uint64Key{}
	// DescUint64 encodes uint64 as 8 bytes big-endian of math.MaxUint64 - v,
	// so that ascending byte order yields descending numeric order.
	DescUint64 FixedKey[uint64] = descUint64Key{}
)

type emptyKey struct{}

func (emptyKey) Width() int                              { return 0 }
func (emptyKey) AppendKey(buf []byte, _ struct{}) []byte { return buf }
func (emptyKey) DecodeKey(data []byte) (struct{}, error) {
	if len(data) != 0 {
		return struct{}{}, errKeyLen("empty", len(data), 0)
	}
	return struct{}{}, nil
}

type uint64Key struct{}

func (uint64Key) Width() int                            { return 8 }
func (uint64Key) AppendKey(buf []byte, k uint64) []byte { return binary.BigEndian.AppendUint64(buf, k) }
func (uint64Key) DecodeKey(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, errKeyLen("uint64", len(data), 8)
	}
	return binary.BigEndian.Uint64(data), nil
}

type descUint64Key struct{}

func (descUint64Key) Width() int { return 8 }
func (descUint64Key) AppendKey(buf []byte, k uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, math.MaxUint64-k)
}
func (descUint64Key) DecodeKey(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, errKeyLen("desc uint64", len(data), 8)
	}
	return math.MaxUint64 - binary.BigEndian.Uint64(data), nil
}

// Tuple is the two-field composite key.
type Tuple[A, B any] struct {
	First  A
	Second B
}

type pairKey[A, B any] struct {
	first  FixedKey[A]
	second Key[B]
}

// Pair composes a composite key codec. The first field leads the encoding,
// so keys sort by first field, then by second field.
func Pair[A, B any](first FixedKey[A], second Key[B]) Key[Tuple[A, B]] {
	return pairKey[A, B]{first, second}
}

func (p pairKey[A, B]) AppendKey(buf []byte, k Tuple[A, B]) []byte {
	return p.second.AppendKey(p.first.AppendKey(buf, k.First), k.Second)
}

func (p pairKey[A, B]) DecodeKey(data []byte) (k Tuple[A, B], err error) {
	w := p.first.Width()
	if len(data) < w {
		return k, errKeyLen("pair", len(data), w)
	}
	if k.First, err = p.first.DecodeKey(data[:w]); err != nil {
		return
	}
	k.Second, err = p.second.DecodeKey(data[w:])
	return
}
