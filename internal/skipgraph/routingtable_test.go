package skipgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeWithKey(key uint32) SGNode {
	return SGNode{
		Peer: Peer{PublicKey: []byte{byte(key)}},
		Key:  key,
	}
}

func TestRoutingTableGetImmediateNeighbor(t *testing.T) {
	rt := NewRoutingTable(50, MembershipVector{}, 0)
	rt.Set(0, Right, nodeWithKey(60))
	rt.Set(0, Right, nodeWithKey(55))
	rt.Set(0, Right, nodeWithKey(70))

	got := rt.Get(0, Right)
	assert.Equal(t, uint32(55), got.Key, "Right's immediate neighbor is the closest (smallest) key")

	rt.Set(0, Left, nodeWithKey(10))
	rt.Set(0, Left, nodeWithKey(40))
	got = rt.Get(0, Left)
	assert.Equal(t, uint32(40), got.Key, "Left's immediate neighbor is the closest (largest) key")
}

func TestRoutingTableGetBest(t *testing.T) {
	rt := NewRoutingTable(50, MembershipVector{}, 0)
	for _, k := range []uint32{55, 70, 90} {
		rt.Set(2, Right, nodeWithKey(k))
	}
	best, ok := rt.GetBest(2, Right, 80)
	require.True(t, ok)
	assert.Equal(t, uint32(70), best.Key, "largest Right key not exceeding the target")

	_, ok = rt.GetBest(2, Right, 50)
	assert.False(t, ok, "no Right neighbor is small enough")

	for _, k := range []uint32{5, 20, 45} {
		rt.Set(2, Left, nodeWithKey(k))
	}
	best, ok = rt.GetBest(2, Left, 15)
	require.True(t, ok)
	assert.Equal(t, uint32(20), best.Key, "smallest Left key not below the target")
}

func TestRoutingTableSetIsIdempotent(t *testing.T) {
	rt := NewRoutingTable(50, MembershipVector{}, 0)
	n := nodeWithKey(60)
	rt.Set(0, Right, n)
	rt.Set(0, Right, n)
	assert.Len(t, rt.GetAllNodes(), 1)
}

func TestRoutingTableNbSizeTruncation(t *testing.T) {
	rt := NewRoutingTable(50, MembershipVector{}, 2)
	rt.Set(0, Right, nodeWithKey(55))
	rt.Set(0, Right, nodeWithKey(60))
	rt.Set(0, Right, nodeWithKey(65))

	all := rt.GetAllNodes()
	require.Len(t, all, 2)
	assert.Equal(t, uint32(55), rt.Get(0, Right).Key, "closest Right neighbor is kept")
	for _, node := range all {
		assert.NotEqual(t, uint32(65), node.Key, "farthest Right neighbor is dropped once nb_size is exceeded")
	}

	rt.Set(0, Left, nodeWithKey(10))
	rt.Set(0, Left, nodeWithKey(20))
	rt.Set(0, Left, nodeWithKey(30))
	assert.Equal(t, uint32(30), rt.Get(0, Left).Key, "closest Left neighbor is kept")
	for _, node := range rt.level(0).neighbors[Left] {
		assert.NotEqual(t, uint32(10), node.Key, "farthest Left neighbor is dropped once nb_size is exceeded")
	}
}

func TestRoutingTableRemoveNode(t *testing.T) {
	rt := NewRoutingTable(50, MembershipVector{}, 0)
	rt.Set(0, Right, nodeWithKey(60))
	rt.Set(1, Left, nodeWithKey(60))
	rt.RemoveNode(60)
	assert.True(t, rt.Get(0, Right).IsEmpty())
	assert.True(t, rt.Get(1, Left).IsEmpty())
}

func TestRoutingTableHeight(t *testing.T) {
	rt := NewRoutingTable(50, MembershipVector{}, 0)
	assert.Equal(t, 0, rt.Height())
	rt.Set(3, Right, nodeWithKey(60))
	assert.Equal(t, 3, rt.Height())
}
