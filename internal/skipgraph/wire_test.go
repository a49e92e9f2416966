package skipgraph

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleNode(key uint32) SGNode {
	return SGNode{
		Peer: Peer{
			Address:   net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000 + int(key)},
			PublicKey: []byte{1, 2, 3},
		},
		Key: key,
		MV:  MembershipVectorFromSymbols([]byte{1, 0, 1, 1}),
	}
}

func TestWireRoundTripSearch(t *testing.T) {
	p := SearchPayload{
		Identifier:        7,
		ForwardIdentifier: 9,
		Originator:        sampleNode(100),
		SearchKey:         42,
		Level:             3,
		Hops:              2,
	}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	got, ok := decoded.(SearchPayload)
	require.True(t, ok)
	require.Equal(t, p.Identifier, got.Identifier)
	require.Equal(t, p.SearchKey, got.SearchKey)
	require.Equal(t, p.Originator.Key, got.Originator.Key)
	require.Equal(t, p.Originator.MV, got.Originator.MV)
	require.Equal(t, p.Originator.Peer.Address.String(), got.Originator.Peer.Address.String())
}

func TestWireRoundTripEmptyNode(t *testing.T) {
	p := SearchResponsePayload{Identifier: 1, Response: EmptySGNode(), Hops: 0}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	got := decoded.(SearchResponsePayload)
	require.True(t, got.Response.IsEmpty())
}

func TestWireRoundTripBuddy(t *testing.T) {
	p := BuddyPayload{
		Identifier: 3,
		Originator: sampleNode(55),
		Level:      4,
		Val:        1,
		Side:       1,
	}
	decoded, err := Decode(Encode(p))
	require.NoError(t, err)
	got := decoded.(BuddyPayload)
	require.Equal(t, p.Level, got.Level)
	require.Equal(t, p.Val, got.Val)
	require.Equal(t, p.Side, got.Side)
}

func TestDecodeUnknownMsgID(t *testing.T) {
	_, err := Decode([]byte{99})
	require.Error(t, err)
}

func TestDecodeEmptyMessage(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
}
