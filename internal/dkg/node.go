package dkg

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"descan/internal/reqcache"
	"descan/internal/skipgraph"
	"descan/internal/transport"
)

// Node orchestrates replicated storage and edge-search across one or more
// co-resident Skip Graphs. The DKG layer gets its own transport address
// (derived from the node's first Skip Graph address) since
// transport.Transport allows only one registered handler per address.
type Node struct {
	SkipGraphs []*skipgraph.Node
	KG         *KnowledgeGraph

	tp   transport.Transport
	blob transport.BlobTransport

	cache *reqcache.Cache

	actions chan func()
	stop    chan struct{}

	ReplicationFactor int
	ShouldVerifyKey   bool
	IsMalicious       bool
	IsOffline         bool

	// KeyStrategy, when non-nil, overrides replication-key derivation for
	// every call the node makes (storage and search alike): a test-only
	// override injected per node rather than held as a package-level
	// global.
	KeyStrategy *KeyStrategy

	EdgeSearchLatencies []EdgeSearchLatency

	Logger *log.Logger
}

// EdgeSearchLatency records the (sg search time, triplets request time)
// pair of one successfully-resolved SearchEdges call.
type EdgeSearchLatency struct {
	SkipGraphSearch time.Duration
	TripletsRequest time.Duration
}

// NewNode builds a DKG node riding atop skipGraphs (at least one is
// required), storing content replicationFactor-ways.
func NewNode(skipGraphs []*skipgraph.Node, tp transport.Transport, blob transport.BlobTransport, replicationFactor int) *Node {
	return &Node{
		SkipGraphs:        skipGraphs,
		KG:                NewKnowledgeGraph(),
		tp:                tp,
		blob:              blob,
		cache:             reqcache.New(),
		actions:           make(chan func(), 256),
		stop:              make(chan struct{}),
		ReplicationFactor: replicationFactor,
		ShouldVerifyKey:   true,
		Logger:            log.Default(),
	}
}

// dkgAddr derives this node's own DKG-layer transport address from its
// first skip graph's address, so both protocol layers can share one
// simulated host.
func dkgAddr(base transport.Addr) transport.Addr {
	return base + "#dkg"
}

// Addr is the transport address this node's DKG messages are delivered to.
func (n *Node) Addr() transport.Addr {
	return dkgAddr(n.SkipGraphs[0].Addr())
}

// peerDKGAddr derives the DKG address of the machine hosting the skip
// graph node identified by sg.
func peerDKGAddr(sg skipgraph.SGNode) transport.Addr {
	return dkgAddr(transport.Addr(sg.Peer.Address.String()))
}

// sgKeyUnsafe returns the key of this node's first skip graph, used to
// decide whether a search result refers to this node itself.
func (n *Node) sgKeyUnsafe() uint32 {
	return n.SkipGraphs[0].RT.Key
}

// Start registers this node's datagram and blob handlers and launches its
// dispatch goroutine.
func (n *Node) Start() error {
	if err := n.tp.Register(n.Addr(), func(from transport.Addr, data []byte) {
		n.enqueue(func() { n.onMessage(from, data) })
	}); err != nil {
		return fmt.Errorf("dkg: start node: %w", err)
	}
	if err := n.blob.RegisterBlobHandler(n.Addr(), func(from transport.Addr, info, blob []byte) {
		n.enqueue(func() { n.onBlob(from, info, blob) })
	}); err != nil {
		return fmt.Errorf("dkg: start node blob handler: %w", err)
	}
	go n.run()
	return nil
}

// Stop unregisters this node and shuts down its cache and dispatch loop.
func (n *Node) Stop() {
	n.tp.Unregister(n.Addr())
	n.blob.UnregisterBlobHandler(n.Addr())
	n.cache.Shutdown()
	close(n.stop)
}

func (n *Node) enqueue(fn func()) {
	select {
	case n.actions <- fn:
	case <-n.stop:
	}
}

// Do runs fn on the node's dispatch goroutine and waits for it to finish,
// giving callers outside the dispatch loop the same serialized view of
// node-owned state the message handlers get. If the node has already
// stopped, fn does not run.
func (n *Node) Do(fn func()) {
	done := make(chan struct{})
	n.enqueue(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-n.stop:
	}
}

func (n *Node) run() {
	for {
		select {
		case fn := <-n.actions:
			fn()
		case <-n.stop:
			return
		}
	}
}

func (n *Node) logf(format string, args ...interface{}) {
	if n.Logger != nil {
		n.Logger.Printf("dkg[%d]: "+format, append([]interface{}{n.sgKeyUnsafe()}, args...)...)
	}
}

func (n *Node) onMessage(from transport.Addr, data []byte) {
	if n.IsOffline {
		return
	}
	p, err := Decode(data)
	if err != nil {
		n.logf("dropping malformed message from %s: %v", from, err)
		return
	}
	switch payload := p.(type) {
	case StorageRequestPayload:
		n.onStorageRequest(from, payload)
	case StorageResponsePayload:
		n.onStorageResponse(payload)
	case TripletsRequestPayload:
		n.onTripletsRequest(from, payload)
	default:
		n.logf("dropping message with no handler: %T", payload)
	}
}

func (n *Node) onBlob(from transport.Addr, info, blob []byte) {
	if n.IsOffline {
		return
	}
	meta, err := decodeBlobInfo(info)
	if err != nil {
		n.logf("dropping malformed blob from %s: %v", from, err)
		return
	}
	payload, err := DecodeTriplets(blob)
	if err != nil {
		n.logf("dropping malformed triplet batch from %s: %v", from, err)
		return
	}
	triplets := make([]Triplet, len(payload.Triplets))
	for i, tp := range payload.Triplets {
		triplets[i] = FromPayload(tp)
	}

	switch meta.Type {
	case blobTypeStore:
		for _, t := range triplets {
			n.KG.AddTriplet(t)
		}
	case blobTypeSearchResponse:
		if meta.ID == nil {
			n.logf("search_response blob missing id")
			return
		}
		entry, ok := n.cache.Pop(KindTriplets, uint16(*meta.ID))
		if !ok {
			n.logf("triplets cache with id %d not found", *meta.ID)
			return
		}
		entry.(*TripletsRequestCache).Done <- triplets
	default:
		n.logf("dropping blob with unknown type %q", meta.Type)
	}
}

// ---- storage ----

// OnNewTripletsGenerated replicates triplets for content across
// ReplicationFactor Skip Graph positions: for each replica index, the
// first co-resident skip graph's search decides the responsible node; a
// self-match stores locally, otherwise a storage request precedes the
// triplet-batch transfer. The per-key replicas are independent of one
// another (one replica's storage refusal never affects the others), so
// they fan out concurrently via errgroup; a replica's own failure is
// logged and never escalated into the group's error, so it can never
// cancel its siblings. Only ctx expiring does that.
func (n *Node) OnNewTripletsGenerated(ctx context.Context, content Content, triplets []Triplet) error {
	if len(triplets) == 0 {
		n.logf("content generated no triplets - won't send out storage requests")
		return nil
	}
	if len(n.SkipGraphs) == 0 {
		n.logf("no skip graphs found - won't send out storage requests")
		return nil
	}

	keys := KeysWith(n.KeyStrategy, content.Identifier, n.ReplicationFactor)
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			n.replicateOneKey(gctx, content, triplets, key)
			return nil
		})
	}
	return g.Wait()
}

// replicateOneKey carries out one replica of OnNewTripletsGenerated:
// locate the node responsible for key, then store locally or over the
// wire. Every failure is logged and absorbed here; storage faults never
// reach the caller.
func (n *Node) replicateOneKey(ctx context.Context, content Content, triplets []Triplet, key uint32) {
	target, err := n.SkipGraphs[0].Search(ctx, key)
	if err != nil {
		n.logf("search for key %d failed: %v", key, err)
		return
	}
	if target.IsEmpty() {
		n.logf("search for key %d failed and returned nothing - bailing out", key)
		return
	}

	if target.Key == n.sgKeyUnsafe() {
		for _, t := range triplets {
			n.KG.AddTriplet(t)
		}
		return
	}

	accepted := n.sendStorageRequest(ctx, target, content.Identifier, key)
	if !accepted {
		n.logf("peer %d refused storage request for key %d", target.Key, key)
		return
	}
	n.sendTriplets(target, content.Identifier, triplets)
}

func (n *Node) sendStorageRequest(ctx context.Context, target skipgraph.SGNode, identifier []byte, key uint32) bool {
	entry := newStoreRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(target, StorageRequestPayload{
			Identifier:        uint32(entry.Number),
			ContentIdentifier: identifier,
			Key:               key,
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return false
	}
	select {
	case accepted := <-entry.Done:
		return accepted
	case <-ctx.Done():
		return false
	}
}

func (n *Node) sendTriplets(target skipgraph.SGNode, cid []byte, triplets []Triplet) {
	payload := TripletsPayload{Triplets: make([]TripletPayload, len(triplets))}
	for i, t := range triplets {
		payload.Triplets[i] = t.ToPayload()
	}
	body := EncodeTriplets(payload)
	info := encodeStoreInfo(cid)
	if err := n.blob.SendBlob(n.Addr(), peerDKGAddr(target), info, body); err != nil {
		n.logf("sending triplet batch to %d failed: %v", target.Key, err)
	}
}

// ShouldStore decides whether this node is the closest live predecessor
// responsible for contentKey: optionally verifying the key is
// content-hash-derived, then checking its first skip graph's immediate
// neighbors for a closer candidate.
func (n *Node) ShouldStore(identifier []byte, contentKey uint32) bool {
	if len(n.SkipGraphs) == 0 {
		n.logf("no skip graphs initialized, unable to determine if we should store content with key %d", contentKey)
		return false
	}
	if n.ShouldVerifyKey && !VerifyKey(identifier, contentKey, n.ReplicationFactor) {
		n.logf("key %d not generated from content with id %s", contentKey, hex.EncodeToString(identifier))
		return false
	}

	rt := n.SkipGraphs[0].RT
	if ln := rt.Get(0, skipgraph.Left); !ln.IsEmpty() && contentKey <= ln.Key {
		return false
	}
	if rn := rt.Get(0, skipgraph.Right); !rn.IsEmpty() && contentKey >= rn.Key {
		return false
	}
	return true
}

func (n *Node) onStorageRequest(from transport.Addr, payload StorageRequestPayload) {
	accepted := n.ShouldStore(payload.ContentIdentifier, payload.Key)
	n.sendToAddr(from, StorageResponsePayload{Identifier: payload.Identifier, Accepted: accepted})
}

func (n *Node) onStorageResponse(payload StorageResponsePayload) {
	entry, ok := n.cache.Pop(KindStore, uint16(payload.Identifier))
	if !ok {
		n.logf("store cache with id %d not found", payload.Identifier)
		return
	}
	entry.(*StoreRequestCache).Done <- payload.Accepted
}

// ---- retrieval ----

// requestTriplets fetches the triplets target holds for contentHash over
// the wire, blocking the caller (never the dispatch loop) until the blob
// transfer completes or the request times out.
func (n *Node) requestTriplets(ctx context.Context, target skipgraph.SGNode, contentHash []byte) []Triplet {
	entry := newTripletsRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(target, TripletsRequestPayload{
			Identifier: uint32(entry.Number),
			Content:    contentHash,
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return nil
	}
	select {
	case triplets := <-entry.Done:
		return triplets
	case <-ctx.Done():
		return nil
	}
}

func (n *Node) onTripletsRequest(from transport.Addr, payload TripletsRequestPayload) {
	var triplets []Triplet
	if n.IsMalicious {
		n.logf("malicious - responding with no triplets")
	} else {
		triplets = n.KG.GetTripletsOfNode(payload.Content)
	}
	wp := TripletsPayload{Triplets: make([]TripletPayload, len(triplets))}
	for i, t := range triplets {
		wp.Triplets[i] = t.ToPayload()
	}
	body := EncodeTriplets(wp)
	info := encodeSearchResponseInfo(payload.Identifier, payload.Content)
	if err := n.blob.SendBlob(n.Addr(), from, info, body); err != nil {
		n.logf("sending triplets response failed: %v", err)
	}
}

// SearchEdges locates and fetches the triplets incident to contentHash:
// replicated, parallel Skip Graph searches across every co-resident skip
// graph and replication key, fused with per-node triplet fetches,
// first-non-empty-response-wins.
func (n *Node) SearchEdges(ctx context.Context, contentHash []byte) ([]Triplet, error) {
	keys := KeysWith(n.KeyStrategy, contentHash, n.ReplicationFactor)
	shuffled := shuffleKeys(keys)

	coord := newEdgeSearchCoordinator(n, contentHash)
	for sgInd := range n.SkipGraphs {
		for _, key := range shuffled {
			coord.performSearch(sgInd, key)
		}
	}
	n.logf("initiated %d parallel edge searches", len(n.SkipGraphs)*len(shuffled))

	select {
	case result := <-coord.entry.Done:
		if coord.LatencySGSearch > 0 && coord.LatencyTriplets > 0 {
			n.EdgeSearchLatencies = append(n.EdgeSearchLatencies, EdgeSearchLatency{
				SkipGraphSearch: coord.LatencySGSearch,
				TripletsRequest: coord.LatencyTriplets,
			})
		}
		n.cache.Pop(KindEdgeSearch, coord.entry.Number)
		return result, nil
	case <-ctx.Done():
		n.cache.Pop(KindEdgeSearch, coord.entry.Number)
		return nil, ctx.Err()
	}
}

func (n *Node) sendTo(target skipgraph.SGNode, p Payload) {
	n.sendToAddr(peerDKGAddr(target), p)
}

func (n *Node) sendToAddr(addr transport.Addr, p Payload) {
	if n.IsOffline {
		return
	}
	if err := n.tp.Send(n.Addr(), addr, Encode(p)); err != nil {
		n.logf("send %T to %s failed: %v", p, addr, err)
	}
}
