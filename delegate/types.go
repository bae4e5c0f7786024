// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegate

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/vechain/statecache/codec"
)

// RegID identifies a registered account by the position of its registration,
// block height then index in block.
type RegID struct {
	Height uint32
	Index  uint16
}

// IsEmpty returns whether id is the zero RegID.
func (id RegID) IsEmpty() bool {
	return id.Height == 0 && id.Index == 0
}

// Less orders ids by height, then by index.
func (id RegID) Less(other RegID) bool {
	if id.Height != other.Height {
		return id.Height < other.Height
	}
	return id.Index < other.Index
}

// String returns "height-index".
func (id RegID) String() string {
	return fmt.Sprintf("%d-%d", id.Height, id.Index)
}

// ParseRegID parses the "height-index" form.
func ParseRegID(s string) (RegID, error) {
	h, i, ok := strings.Cut(s, "-")
	if !ok {
		return RegID{}, errors.Errorf("invalid reg id %q", s)
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return RegID{}, errors.Wrapf(err, "invalid reg id %q", s)
	}
	index, err := strconv.ParseUint(i, 10, 16)
	if err != nil {
		return RegID{}, errors.Wrapf(err, "invalid reg id %q", s)
	}
	return RegID{uint32(height), uint16(index)}, nil
}

// RegIDKey encodes RegID as 6 bytes big-endian, height then index.
var RegIDKey codec.FixedKey[RegID] = regIDKey{}

type regIDKey struct{}

func (regIDKey) Width() int { return 6 }

func (regIDKey) AppendKey(buf []byte, id RegID) []byte {
	return binary.BigEndian.AppendUint16(binary.BigEndian.AppendUint32(buf, id.Height), id.Index)
}

func (regIDKey) DecodeKey(data []byte) (RegID, error) {
	if len(data) != 6 {
		return RegID{}, errors.Errorf("delegate: reg id key length %d, want 6", len(data))
	}
	return RegID{
		Height: binary.BigEndian.Uint32(data),
		Index:  binary.BigEndian.Uint16(data[4:]),
	}, nil
}

// CandidateReceivedVote is the votes a voter gave to one candidate.
type CandidateReceivedVote struct {
	Candidate RegID
	Votes     uint64
}

// VoteDelegate is a delegate with its received votes.
type VoteDelegate struct {
	RegID RegID
	Votes uint64
}

// PendingState is the state of the pending delegates.
type PendingState uint8

const (
	// PendingNone no pending delegates counted.
	PendingNone PendingState = iota
	// PendingCounted delegates are counted and wait for activation.
	PendingCounted
	// PendingActivated delegates have been activated.
	PendingActivated
)

func (s PendingState) String() string {
	switch s {
	case PendingNone:
		return "none"
	case PendingCounted:
		return "counted"
	case PendingActivated:
		return "activated"
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// PendingDelegates is the delegates counted at some vote height, to be activated.
type PendingDelegates struct {
	State             PendingState
	CountedVoteHeight uint32
	TopVoteDelegates  []VoteDelegate
}
