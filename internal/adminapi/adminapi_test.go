package adminapi

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"descan/internal/dkg"
	"descan/internal/skipgraph"
	"descan/internal/transport"
)

// newTestServer boots a single-peer overlay (one skip graph, one DKG node,
// no rule engine) and mounts the admin API over it.
func newTestServer(t *testing.T) (*httptest.Server, *dkg.Node) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tp := transport.NewSimNetwork()
	peer := skipgraph.Peer{
		Address:   net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 33001},
		PublicKey: []byte{1, 2, 3},
	}
	sg := skipgraph.NewNode(peer, 42, skipgraph.NewMembershipVector(), 0, tp)
	require.NoError(t, sg.Start())

	node := dkg.NewNode([]*skipgraph.Node{sg}, tp, tp, 2)
	require.NoError(t, node.Start())
	t.Cleanup(func() {
		node.Stop()
		sg.Stop()
	})

	router := gin.New()
	NewHandler(node, nil).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, node
}

func TestHealthReportsNodeState(t *testing.T) {
	srv, _ := newTestServer(t)

	c := NewClient(srv.URL, 0)
	health, err := c.Health(context.Background())
	require.NoError(t, err)

	require.Equal(t, uint32(42), health.Key)
	require.Equal(t, 1, health.SkipGraphs)
	require.False(t, health.IsMalicious)
	require.Zero(t, health.Edges)
}

func TestTripletsOfNodeReturnsLocalEdges(t *testing.T) {
	srv, node := newTestServer(t)
	node.KG.AddTriplet(dkg.Triplet{
		Head: []byte("abc"), Relation: []byte("is_a"), Tail: []byte("thing"), Rules: []string{"DUMMY"},
	})

	c := NewClient(srv.URL, 0)
	triplets, err := c.TripletsOfNode(context.Background(), hex.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	require.Equal(t, "is_a", triplets[0].Relation)
	require.Equal(t, []string{"DUMMY"}, triplets[0].Rules)
}

func TestSearchEdgesResolvesFromSinglePeer(t *testing.T) {
	srv, node := newTestServer(t)
	// On a one-node graph every replication key resolves to self, so the
	// stored triplet must come back through the edge-search path.
	node.KG.AddTriplet(dkg.Triplet{Head: []byte("abc"), Relation: []byte("r"), Tail: []byte("t")})

	c := NewClient(srv.URL, 0)
	triplets, err := c.SearchEdges(context.Background(), hex.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	require.Equal(t, "abc", triplets[0].Head)
}

func TestSetFaultTogglesFlags(t *testing.T) {
	srv, node := newTestServer(t)

	c := NewClient(srv.URL, 0)
	on := true
	require.NoError(t, c.SetFault(context.Background(), &on, nil))
	require.True(t, node.IsMalicious)
	require.True(t, node.SkipGraphs[0].IsMalicious)
	require.False(t, node.IsOffline)

	off := false
	require.NoError(t, c.SetFault(context.Background(), &off, nil))
	require.False(t, node.IsMalicious)
}

func TestEnqueueContentWithoutEngineIs501(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/content", "application/json",
		strings.NewReader(`{"identifier_hex":"abcd","data":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestUnknownSkipGraphIndexIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/skipgraph/3/routingtable")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
