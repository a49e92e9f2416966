package dkg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeysDeterministic(t *testing.T) {
	a := Keys([]byte("abc"), 3)
	b := Keys([]byte("abc"), 3)
	require.Equal(t, a, b)
	require.Len(t, a, 3)
}

func TestKeysVerify(t *testing.T) {
	id := []byte("abcdefg")
	keys := Keys(id, 4)
	for _, k := range keys {
		require.True(t, VerifyKey(id, k, 4))
	}
	require.False(t, VerifyKey(id, keys[0]^0xFFFFFFFF, 4))
}

func TestKeysZeroReplicas(t *testing.T) {
	require.Empty(t, Keys([]byte("x"), 0))
}

func TestKeysWithCustomOverride(t *testing.T) {
	ks := &KeyStrategy{Custom: []uint32{20, 50}}
	require.Equal(t, []uint32{20, 50}, KeysWith(ks, []byte("whatever"), 7))
	require.Equal(t, Keys([]byte("whatever"), 2), KeysWith(nil, []byte("whatever"), 2))
}
