// cmd/descannode is the process entrypoint for a DeScan overlay demo: it
// boots a configurable number of simulated peers sharing one in-process
// transport (the real networked transport and peer discovery are external
// collaborators, not implemented here), joins them into one or more
// co-resident Skip Graphs, attaches a rule engine and DKG node to each,
// and serves each peer's admin/introspection HTTP API on its own port.
//
// Example:
//
//	./descannode --nodes 7 --replication-factor 2 --admin-base-port 9000
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"descan/internal/adminapi"
	"descan/internal/dkg"
	"descan/internal/ruleengine"
	"descan/internal/rules"
	"descan/internal/skipgraph"
	"descan/internal/transport"
)

func main() {
	// ── Flags ──────────────────────────────────────────────────────────────
	numNodes := flag.Int("nodes", 7, "Number of simulated peers to join into the overlay")
	replicationFactor := flag.Int("replication-factor", 2, "Number of replication keys per content identifier")
	skipGraphs := flag.Int("skip-graphs", 1, "Number of co-resident skip graphs each peer joins")
	nbSize := flag.Int("nb-size", 0, "Per-level, per-side neighbor cap (0 = unbounded)")
	shouldVerifyKey := flag.Bool("should-verify-key", true, "Reject storage requests whose key isn't content-hash-derived")
	ruleInterval := flag.Duration("rule-interval", time.Second, "Rule engine tick interval")
	adminBasePort := flag.Int("admin-base-port", 9000, "First admin API port; peer i listens on admin-base-port+i")
	flag.Parse()

	if *numNodes < 1 {
		log.Fatalf("FATAL: --nodes must be >= 1")
	}
	if *skipGraphs < 1 {
		log.Fatalf("FATAL: --skip-graphs must be >= 1")
	}

	overlay, err := buildOverlay(*numNodes, *skipGraphs, *replicationFactor, *nbSize, *shouldVerifyKey)
	if err != nil {
		log.Fatalf("FATAL: build overlay: %v", err)
	}
	defer overlay.stop()

	// ── Rule engines + admin APIs, one pair per simulated peer ──────────────
	servers := make([]*http.Server, 0, *numNodes)
	for i, peer := range overlay.peers {
		registry := rules.NewRegistry()
		registry.Add(rules.DummyRule{})

		node := peer.dkgNode
		engine := ruleengine.New(registry, func(ctx context.Context, content dkg.Content, triplets []dkg.Triplet) {
			if err := node.OnNewTripletsGenerated(ctx, content, triplets); err != nil {
				log.Printf("node %d: replicate content: %v", peer.key, err)
			}
		})
		engine.Start(context.Background(), *ruleInterval)
		peer.engine = engine

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(adminapi.Logger(), adminapi.Recovery())
		adminapi.NewHandler(node, engine).Register(router)

		addr := fmt.Sprintf(":%d", *adminBasePort+i)
		srv := &http.Server{Addr: addr, Handler: router, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
		servers = append(servers, srv)

		i, peer := i, peer
		go func() {
			log.Printf("peer %d (key=%d) admin API listening on %s", i, peer.key, addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("peer %d: admin API error: %v", i, err)
			}
		}()
	}

	// Background overlay-health log.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for i, peer := range overlay.peers {
				log.Printf("peer %d (key=%d): %d edges stored", i, peer.key, peer.dkgNode.KG.NumEdges())
			}
		}
	}()

	log.Printf("overlay up: %d peers, replication_factor=%d, skip_graphs=%d", *numNodes, *replicationFactor, *skipGraphs)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down overlay")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for i, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("peer %d: admin API shutdown error: %v", i, err)
		}
	}
	for _, peer := range overlay.peers {
		if peer.engine != nil {
			peer.engine.Shutdown()
		}
	}
}

// peer bundles one simulated process's identity across every co-resident
// skip graph plus its DKG node and (once started) rule engine.
type peer struct {
	key        uint32 // the peer's position on its first skip graph, used only for logging
	skipGraphs []*skipgraph.Node
	dkgNode    *dkg.Node
	engine     *ruleengine.Engine
}

// overlay is the whole in-process simulated network: one shared transport
// and every peer joined onto every co-resident skip graph.
type overlay struct {
	tp    *transport.SimNetwork
	peers []*peer
}

func (o *overlay) stop() {
	for _, p := range o.peers {
		p.dkgNode.Stop()
		for _, sg := range p.skipGraphs {
			sg.Stop()
		}
	}
}

// buildOverlay constructs numNodes peers, each joined onto skipGraphCount
// independent Skip Graph rings sharing one transport, and wires a DKG node
// over each peer's set of co-resident rings.
func buildOverlay(numNodes, skipGraphCount, replicationFactor, nbSize int, shouldVerifyKey bool) (*overlay, error) {
	tp := transport.NewSimNetwork()
	o := &overlay{tp: tp, peers: make([]*peer, numNodes)}

	for g := 0; g < skipGraphCount; g++ {
		var introducer skipgraph.Peer
		for i := 0; i < numNodes; i++ {
			if o.peers[i] == nil {
				o.peers[i] = &peer{skipGraphs: make([]*skipgraph.Node, skipGraphCount)}
			}

			key, err := randomUint32()
			if err != nil {
				return nil, err
			}
			mv := skipgraph.NewMembershipVector()
			nodePeer := skipgraph.Peer{
				Address:   net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 20000 + g*1000 + i},
				PublicKey: randomPublicKey(),
			}

			sg := skipgraph.NewNode(nodePeer, key, mv, nbSize, tp)
			if err := sg.Start(); err != nil {
				return nil, fmt.Errorf("start peer %d skip graph %d: %w", i, g, err)
			}

			if i == 0 {
				introducer = nodePeer
			} else {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				err := sg.Join(ctx, introducer)
				cancel()
				if err != nil {
					return nil, fmt.Errorf("peer %d join skip graph %d: %w", i, g, err)
				}
			}

			o.peers[i].skipGraphs[g] = sg
			if g == 0 {
				o.peers[i].key = key
			}
		}
	}

	for i, p := range o.peers {
		node := dkg.NewNode(p.skipGraphs, tp, tp, replicationFactor)
		node.ShouldVerifyKey = shouldVerifyKey
		if err := node.Start(); err != nil {
			return nil, fmt.Errorf("start peer %d dkg node: %w", i, err)
		}
		p.dkgNode = node
	}

	return o, nil
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("sample random key: %w", err)
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func randomPublicKey() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}
