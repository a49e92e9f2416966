package dkg_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"descan/internal/dkg"
	"descan/internal/skipgraph"
	"descan/internal/transport"
)

// buildFourNodeOverlay constructs a single skip graph with keys
// {21,33,36,99}, each wrapped in a DKG node with replication factor 2 and
// a shared KeyStrategy forcing every replication key lookup onto [20,50]
// regardless of content identifier. Key verification is disabled since
// the forced keys are not sha1-derived from any real identifier.
func buildFourNodeOverlay(t *testing.T) (nodes map[uint32]*dkg.Node, ks *dkg.KeyStrategy) {
	t.Helper()
	tp := transport.NewSimNetwork()
	mvs := map[uint32][]byte{21: {1, 0}, 33: {0, 1}, 36: {0, 1}, 99: {1, 1}}
	keys := []uint32{21, 33, 36, 99}

	ks = &dkg.KeyStrategy{Custom: []uint32{20, 50}}

	sgNodes := make(map[uint32]*skipgraph.Node, len(keys))
	var introducer *skipgraph.Node
	for _, key := range keys {
		peer := skipgraph.Peer{
			Address:   net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 32000 + int(key)},
			PublicKey: []byte{byte(key), byte(key >> 8)},
		}
		sg := skipgraph.NewNode(peer, key, skipgraph.MembershipVectorFromSymbols(mvs[key]), 0, tp)
		require.NoError(t, sg.Start())
		sgNodes[key] = sg
		if key == 21 {
			introducer = sg
		}
	}
	for _, key := range keys {
		if key == 21 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, sgNodes[key].Join(ctx, introducer.Peer))
		cancel()
	}

	nodes = make(map[uint32]*dkg.Node, len(keys))
	for _, key := range keys {
		n := dkg.NewNode([]*skipgraph.Node{sgNodes[key]}, tp, tp, 2)
		n.ShouldVerifyKey = false
		n.KeyStrategy = ks
		require.NoError(t, n.Start())
		nodes[key] = n
	}
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Stop()
		}
		for _, sg := range sgNodes {
			sg.Stop()
		}
	})
	return nodes, ks
}

// TestReplicatedStorageAndSearchEdges: storing content with the forced
// keys [20,50] lands the triplets on exactly the two nodes responsible
// for those keys (no node precedes 20, so the search for 20 ends at the
// smallest node 21, and 36 is the closest predecessor of 50, on the
// {21,33,36,99} ring), and SearchEdges
// from any live node returns the single stored triplet.
func TestReplicatedStorageAndSearchEdges(t *testing.T) {
	nodes, _ := buildFourNodeOverlay(t)

	content := dkg.Content{Identifier: []byte("some-content")}
	triplets := []dkg.Triplet{{Head: []byte("some-content"), Relation: []byte("is_a"), Tail: []byte("thing")}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, nodes[21].OnNewTripletsGenerated(ctx, content, triplets))
	cancel()

	holders := 0
	for key, n := range nodes {
		got := n.KG.GetTripletsOfNode([]byte("some-content"))
		if len(got) == 1 {
			holders++
			require.True(t, got[0].Equal(triplets[0]), "key %d holds an unexpected triplet", key)
		}
	}
	require.Equal(t, 2, holders, "exactly two nodes should hold the replicated triplet")

	for _, searcher := range []uint32{21, 36, 99} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		found, err := nodes[searcher].SearchEdges(ctx, []byte("some-content"))
		cancel()
		require.NoError(t, err)
		require.Len(t, found, 1, "search_edges from %d", searcher)
		require.True(t, found[0].Equal(triplets[0]))
	}
}

// TestLeaveRepairsNeighboursAndSearchStillSucceeds: after the 33-keyed
// node leaves, 21's right neighbor becomes 36 and 36's left neighbor
// becomes 21, and a repeat SearchEdges still resolves the previously
// stored triplet.
func TestLeaveRepairsNeighboursAndSearchStillSucceeds(t *testing.T) {
	nodes, _ := buildFourNodeOverlay(t)

	content := dkg.Content{Identifier: []byte("some-content")}
	triplets := []dkg.Triplet{{Head: []byte("some-content"), Relation: []byte("is_a"), Tail: []byte("thing")}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, nodes[21].OnNewTripletsGenerated(ctx, content, triplets))
	cancel()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, nodes[33].SkipGraphs[0].Leave(ctx))
	cancel()
	delete(nodes, 33)

	require.Equal(t, uint32(36), nodes[21].SkipGraphs[0].RT.Get(0, skipgraph.Right).Key)
	require.Equal(t, uint32(21), nodes[36].SkipGraphs[0].RT.Get(0, skipgraph.Left).Key)

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	found, err := nodes[99].SearchEdges(ctx, []byte("some-content"))
	cancel()
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.True(t, found[0].Equal(triplets[0]))
}
