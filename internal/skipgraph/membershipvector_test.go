package skipgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMembershipVectorRoundTrip(t *testing.T) {
	mv := MembershipVectorFromSymbols([]byte{1, 0, 1, 1, 0})
	decoded := MembershipVectorFromBytes(mv.ToBytes())
	assert.Equal(t, mv, decoded)
	assert.Equal(t, Length, len(mv.ToBytes()))
}

func TestMembershipVectorSharesPrefix(t *testing.T) {
	a := MembershipVectorFromSymbols([]byte{1, 0, 1, 1})
	b := MembershipVectorFromSymbols([]byte{1, 0, 1, 0})
	assert.True(t, a.SharesPrefix(b, 3))
	assert.False(t, a.SharesPrefix(b, 4))
}

func TestNewMembershipVectorSamplesBinarySymbols(t *testing.T) {
	mv := NewMembershipVector()
	for i := 0; i < Length; i++ {
		s := mv.At(i)
		assert.True(t, s == 0 || s == 1, "symbol %d out of alphabet: %d", i, s)
	}
}

func TestMembershipVectorString(t *testing.T) {
	mv := MembershipVectorFromSymbols([]byte{1, 0, 1})
	s := mv.String()
	assert.Equal(t, byte('1'), s[0])
	assert.Equal(t, byte('0'), s[1])
	assert.Equal(t, byte('1'), s[2])
	assert.Equal(t, Length, len(s))
}
