// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegate

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegID(t *testing.T) {
	id, err := ParseRegID("1024-3")
	require.NoError(t, err)
	assert.Equal(t, RegID{1024, 3}, id)
	assert.Equal(t, "1024-3", id.String())
	assert.False(t, id.IsEmpty())
	assert.True(t, RegID{}.IsEmpty())

	for _, s := range []string{"", "1024", "a-1", "1-65536", "4294967296-0"} {
		_, err := ParseRegID(s)
		assert.Error(t, err, s)
	}
}

func TestRegIDKey(t *testing.T) {
	ids := []RegID{{0, 1}, {0, 0xffff}, {1, 0}, {1, 2}, {0x01000000, 0}}
	for i, id := range ids {
		enc := RegIDKey.AppendKey(nil, id)
		assert.Len(t, enc, RegIDKey.Width())

		dec, err := RegIDKey.DecodeKey(enc)
		require.NoError(t, err)
		assert.Equal(t, id, dec)

		if i > 0 {
			prev := ids[i-1]
			assert.True(t, prev.Less(id))
			assert.Equal(t, -1, bytes.Compare(RegIDKey.AppendKey(nil, prev), enc), "%v < %v", prev, id)
		}
	}

	_, err := RegIDKey.DecodeKey([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRankKeys(t *testing.T) {
	a := rankKeys.AppendKey(nil, rankKey{First: 100, Second: RegID{9, 9}})
	b := rankKeys.AppendKey(nil, rankKey{First: 50, Second: RegID{1, 1}})
	c := rankKeys.AppendKey(nil, rankKey{First: 100, Second: RegID{10, 0}})

	// votes descending, then reg id ascending
	assert.Equal(t, -1, bytes.Compare(a, c))
	assert.Equal(t, -1, bytes.Compare(c, b))

	k, err := rankKeys.DecodeKey(c)
	require.NoError(t, err)
	assert.Equal(t, rankKey{First: 100, Second: RegID{10, 0}}, k)
}

func TestPendingDelegatesRLP(t *testing.T) {
	p := PendingDelegates{
		State:             PendingCounted,
		CountedVoteHeight: 100,
		TopVoteDelegates:  []VoteDelegate{{RegID{1, 2}, 300}, {RegID{3, 4}, 200}},
	}
	data, err := rlp.EncodeToBytes(&p)
	require.NoError(t, err)

	var dec PendingDelegates
	require.NoError(t, rlp.DecodeBytes(data, &dec))
	assert.Equal(t, p, dec)
	assert.Equal(t, "counted", dec.State.String())
	assert.Equal(t, "unknown(9)", PendingState(9).String())
}
