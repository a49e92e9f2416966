// Package skipgraph implements the Skip Graph overlay: routing table,
// membership vectors, the wire protocol, and the search/join/leave/repair
// state machine described by the DKG overlay's routing substrate.
package skipgraph

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alpha is the membership-vector alphabet size: symbols are drawn from
// {0, ..., Alpha-1}.
const Alpha = 2

// Length is the number of symbols in a membership vector, i.e. the maximum
// level of the skip graph.
const Length = 32

// MembershipVector is a fixed-length, immutable-after-creation sequence of
// symbols drawn from {0, ..., Alpha-1}. Two nodes are buddies at level l+1
// on a given side iff they share the first l+1 symbols.
type MembershipVector struct {
	val [Length]byte
}

// NewMembershipVector samples Length uniform symbols from {0, ..., Alpha-1}.
func NewMembershipVector() MembershipVector {
	var mv MembershipVector
	for i := range mv.val {
		n, err := rand.Int(rand.Reader, big.NewInt(Alpha))
		if err != nil {
			panic(fmt.Sprintf("skipgraph: failed to sample membership vector: %v", err))
		}
		mv.val[i] = byte(n.Int64())
	}
	return mv
}

// MembershipVectorFromSymbols constructs a membership vector from an
// explicit symbol list, for tests and deterministic scenarios that fix
// exact membership-vector prefixes. Unspecified symbols are zero.
func MembershipVectorFromSymbols(symbols []byte) MembershipVector {
	var mv MembershipVector
	copy(mv.val[:], symbols)
	return mv
}

// MembershipVectorFromBytes decodes the fixed-length wire encoding produced
// by ToBytes.
func MembershipVectorFromBytes(b []byte) MembershipVector {
	var mv MembershipVector
	copy(mv.val[:], b)
	return mv
}

// ToBytes serializes the vector as a fixed-length byte string of Length
// bytes, one symbol per byte.
func (mv MembershipVector) ToBytes() []byte {
	out := make([]byte, Length)
	copy(out, mv.val[:])
	return out
}

// At returns the symbol at index i.
func (mv MembershipVector) At(i int) byte {
	return mv.val[i]
}

// SharesPrefix reports whether mv and other agree on their first n symbols
// (indices 0..n-1).
func (mv MembershipVector) SharesPrefix(other MembershipVector, n int) bool {
	for i := 0; i < n; i++ {
		if mv.val[i] != other.val[i] {
			return false
		}
	}
	return true
}

func (mv MembershipVector) String() string {
	buf := make([]byte, Length)
	for i, s := range mv.val {
		buf[i] = '0' + s
	}
	return string(buf)
}
