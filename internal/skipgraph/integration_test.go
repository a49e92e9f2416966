package skipgraph

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"descan/internal/transport"
)

// buildSevenNodeGraph constructs a 7-node graph: keys
// 13,21,33,36,48,75,99 with membership-vector prefixes
// 00,10,01,01,00,11,11, all joined through the 13-keyed introducer.
func buildSevenNodeGraph(t *testing.T) (tp *transport.SimNetwork, nodes map[uint32]*Node) {
	t.Helper()
	tp = transport.NewSimNetwork()
	specs := []struct {
		key uint32
		mv  []byte
	}{
		{13, []byte{0, 0}},
		{21, []byte{1, 0}},
		{33, []byte{0, 1}},
		{36, []byte{0, 1}},
		{48, []byte{0, 0}},
		{75, []byte{1, 1}},
		{99, []byte{1, 1}},
	}

	nodes = make(map[uint32]*Node, len(specs))
	var introducer *Node
	for _, s := range specs {
		peer := Peer{
			Address:   net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 30000 + int(s.key)},
			PublicKey: []byte{byte(s.key), byte(s.key >> 8)},
		}
		n := NewNode(peer, s.key, MembershipVectorFromSymbols(s.mv), 0, tp)
		require.NoError(t, n.Start())
		nodes[s.key] = n
		if s.key == 13 {
			introducer = n
		}
	}
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Stop()
		}
	})

	for _, s := range specs {
		if s.key == 13 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := nodes[s.key].Join(ctx, introducer.Peer)
		cancel()
		require.NoError(t, err, "join of key %d", s.key)
	}
	return tp, nodes
}

// TestSevenNodeLevelZeroChain: after all joins the level-0 chain is
// 13<->21<->33<->36<->48<->75<->99, with symmetric links both ways.
func TestSevenNodeLevelZeroChain(t *testing.T) {
	_, nodes := buildSevenNodeGraph(t)

	order := []uint32{13, 21, 33, 36, 48, 75, 99}
	for i, key := range order {
		n := nodes[key]
		if i == 0 {
			require.True(t, n.RT.Get(0, Left).IsEmpty(), "key %d should have no left neighbor", key)
		} else {
			require.Equal(t, order[i-1], n.RT.Get(0, Left).Key, "key %d left neighbor", key)
		}
		if i == len(order)-1 {
			require.True(t, n.RT.Get(0, Right).IsEmpty(), "key %d should have no right neighbor", key)
		} else {
			require.Equal(t, order[i+1], n.RT.Get(0, Right).Key, "key %d right neighbor", key)
		}
	}
}

// TestSevenNodeSearchRouting: search resolves to the greatest key at or
// below the target, from several origins.
func TestSevenNodeSearchRouting(t *testing.T) {
	_, nodes := buildSevenNodeGraph(t)

	cases := []struct {
		from uint32
		key  uint32
		want uint32
	}{
		{13, 40, 36},
		{13, 100, 99},
		{13, 20, 13},
		{21, 34, 33},
	}
	for _, tc := range cases {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		result, err := nodes[tc.from].Search(ctx, tc.key)
		cancel()
		require.NoError(t, err)
		require.Equalf(t, tc.want, result.Key, "search(%d) from %d", tc.key, tc.from)
	}
}

// TestSevenNodeHigherLevels: level-1 chains are 13<->33<->36<->48 and
// 21<->75<->99 (grouped by the first membership-vector symbol), level 2
// isolates {13,48}, {33,36}, {75,99} with 21 alone, and every link is
// symmetric.
func TestSevenNodeHigherLevels(t *testing.T) {
	_, nodes := buildSevenNodeGraph(t)

	chains := map[int][][]uint32{
		1: {{13, 33, 36, 48}, {21, 75, 99}},
		2: {{13, 48}, {33, 36}, {75, 99}, {21}},
	}
	for level, groups := range chains {
		for _, group := range groups {
			for i, key := range group {
				n := nodes[key]
				if i == 0 {
					require.True(t, n.RT.Get(level, Left).IsEmpty(),
						"key %d should have no level-%d left neighbor", key, level)
				} else {
					require.Equalf(t, group[i-1], n.RT.Get(level, Left).Key,
						"key %d level-%d left neighbor", key, level)
				}
				if i == len(group)-1 {
					require.True(t, n.RT.Get(level, Right).IsEmpty(),
						"key %d should have no level-%d right neighbor", key, level)
				} else {
					require.Equalf(t, group[i+1], n.RT.Get(level, Right).Key,
						"key %d level-%d right neighbor", key, level)
				}
			}
		}
	}

	// Link symmetry and membership-vector prefix sharing across all levels.
	for key, n := range nodes {
		for level := 0; level <= n.RT.Height(); level++ {
			if r := n.RT.Get(level, Right); !r.IsEmpty() {
				require.Greater(t, r.Key, key)
				require.Equalf(t, key, nodes[r.Key].RT.Get(level, Left).Key,
					"level-%d link %d->%d not symmetric", level, key, r.Key)
				require.True(t, n.RT.MV.SharesPrefix(r.MV, level),
					"level-%d neighbors %d and %d must share their first %d symbols", level, key, r.Key, level)
			}
			if l := n.RT.Get(level, Left); !l.IsEmpty() {
				require.Less(t, l.Key, key)
				require.True(t, n.RT.MV.SharesPrefix(l.MV, level))
			}
		}
	}
}

// TestMaliciousPeerPoisonsSearch exercises the malicious-forwarding mode:
// a lying hop answers the originator with itself instead of routing, so
// the search terminates at the malicious node with a wrong result that
// only a higher layer could detect.
func TestMaliciousPeerPoisonsSearch(t *testing.T) {
	_, nodes := buildSevenNodeGraph(t)

	nodes[75].IsMalicious = true

	// search(100) from 13 routes 13 -> 48 -> 75 -> 99; when asked to
	// forward, 75 claims the result for itself instead of routing to 99.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := nodes[13].Search(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, uint32(75), result.Key)
}

// TestSearchRepairsAroundOfflinePeer drives a search into a silent hop:
// search(40) from 13 routes 13 -> 33 -> 36, but 36 is offline, so 33's
// forward times out after 1s, 33 evicts 36 from its table and replays the
// routing decision. With 36 gone the greatest live key at or below 40 is
// 33 itself.
func TestSearchRepairsAroundOfflinePeer(t *testing.T) {
	_, nodes := buildSevenNodeGraph(t)

	nodes[36].IsOffline = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := nodes[13].Search(ctx, 40)
	require.NoError(t, err)
	require.Equal(t, uint32(33), result.Key)
	require.True(t, nodes[33].RT.Get(0, Right).IsEmpty() || nodes[33].RT.Get(0, Right).Key != 36,
		"33 should have evicted the dead 36 from its routing table")
}

// TestSearchBypassesOfflinePeer: on a 4-node graph {21,33,36,99} with 33
// marked offline, search(21) from 99 still resolves to 21: 99 and 21 share
// their first membership-vector symbol, so 99 reaches 21 in one level-1
// hop and 33 is never on the route.
func TestSearchBypassesOfflinePeer(t *testing.T) {
	tp := transport.NewSimNetwork()
	keys := []uint32{21, 33, 36, 99}
	mvs := map[uint32][]byte{21: {1, 0}, 33: {0, 1}, 36: {0, 1}, 99: {1, 1}}

	nodes := make(map[uint32]*Node, len(keys))
	var introducer *Node
	for _, key := range keys {
		peer := Peer{
			Address:   net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 31000 + int(key)},
			PublicKey: []byte{byte(key), byte(key >> 8)},
		}
		n := NewNode(peer, key, MembershipVectorFromSymbols(mvs[key]), 0, tp)
		require.NoError(t, n.Start())
		nodes[key] = n
		if key == 21 {
			introducer = n
		}
	}
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Stop()
		}
	})
	for _, key := range keys {
		if key == 21 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, nodes[key].Join(ctx, introducer.Peer))
		cancel()
	}

	nodes[33].IsOffline = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := nodes[99].Search(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, uint32(21), result.Key)
}
