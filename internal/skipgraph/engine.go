package skipgraph

import (
	"context"
	"fmt"
	"log"
	"time"

	"descan/internal/reqcache"
	"descan/internal/transport"
)

// addrOf derives the transport address a peer is reachable at. The
// simulator keys mailboxes by the string form of the peer's UDP address,
// so two peers must not share one in a given test/demo network.
func addrOf(p Peer) transport.Addr {
	return transport.Addr(p.Address.String())
}

// Node is a single Skip Graph participant: its routing table plus the
// message-driven state machine that implements search, join, leave, and
// repair. All state below is touched only from the node's own actor
// goroutine (run), which both inbound transport messages and cache
// timeouts are funneled through via enqueue. That single point of
// serialization is what lets the rest of this package skip locking
// node-owned state.
type Node struct {
	Peer Peer
	RT   *RoutingTable

	tp    transport.Transport
	cache *reqcache.Cache

	actions chan func()
	stop    chan struct{}

	IsLeaving   bool
	IsOffline   bool
	IsMalicious bool

	SearchHops      int
	SearchMessages  int
	SearchLatencies []time.Duration
	JoinLatencies   []time.Duration
	LeaveLatencies  []time.Duration

	Logger *log.Logger
}

// NewNode constructs a node bound to key/mv and registers it on tp under
// its own peer address. Call Start to begin processing.
func NewNode(peer Peer, key uint32, mv MembershipVector, nbSize int, tp transport.Transport) *Node {
	return &Node{
		Peer:    peer,
		RT:      NewRoutingTable(key, mv, nbSize),
		tp:      tp,
		cache:   reqcache.New(),
		actions: make(chan func(), 256),
		stop:    make(chan struct{}),
		Logger:  log.Default(),
	}
}

// Self returns this node's own descriptor, as sent in wire payloads.
func (n *Node) Self() SGNode {
	return SGNode{Peer: n.Peer, Key: n.RT.Key, MV: n.RT.MV}
}

// Addr is the transport address this node is registered under.
func (n *Node) Addr() transport.Addr {
	return addrOf(n.Peer)
}

// Start registers the node's message handler with its transport and
// launches its dispatch goroutine.
func (n *Node) Start() error {
	if err := n.tp.Register(n.Addr(), func(from transport.Addr, data []byte) {
		n.enqueue(func() { n.onMessage(from, data) })
	}); err != nil {
		return fmt.Errorf("skipgraph: start node %d: %w", n.RT.Key, err)
	}
	go n.run()
	return nil
}

// Stop unregisters the node from its transport and shuts down its cache
// and dispatch goroutine.
func (n *Node) Stop() {
	n.tp.Unregister(n.Addr())
	n.cache.Shutdown()
	close(n.stop)
}

func (n *Node) enqueue(fn func()) {
	select {
	case n.actions <- fn:
	case <-n.stop:
	}
}

// Do runs fn on the node's actor goroutine and waits for it to finish,
// giving callers outside the dispatch loop (the admin plane, test
// harnesses) the same serialized view of node-owned state the message
// handlers get. If the node has already stopped, fn does not run.
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

// sendTo delivers p to the peer's address. A peer rebuilt from a transport
// address (peerFromAddr) has no public key but is still reachable, so only
// a zero port marks "no destination".
func (n *Node) sendTo(to Peer, p Payload) {
	if to.Address.Port == 0 || n.IsOffline {
		return
	}
	if err := n.tp.Send(n.Addr(), addrOf(to), Encode(p)); err != nil {
		n.logf("send %T to %s failed: %v", p, to.Address.String(), err)
	}
}

func (n *Node) logf(format string, args ...interface{}) {
	if n.Logger != nil {
		n.Logger.Printf("skipgraph[%d]: "+format, append([]interface{}{n.RT.Key}, args...)...)
	}
}

// onMessage decodes and dispatches one inbound wire message. It always
// runs on the node's actor goroutine.
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
	case SearchPayload:
		n.onSearchRequest(from, payload)
	case SearchResponsePayload:
		n.onSearchResponse(payload)
	case SearchIntermediateResponsePayload:
		n.onSearchIntermediateResponse(payload)
	case NeighbourRequestPayload:
		n.onNeighbourRequest(from, payload)
	case NeighbourResponsePayload:
		n.onNeighbourResponse(payload)
	case GetLinkPayload:
		n.onGetLink(payload)
	case SetLinkPayload:
		n.onSetLink(payload)
	case BuddyPayload:
		n.onBuddy(payload)
	case DeletePayload:
		n.onDelete(payload)
	case NoNeighbourPayload:
		n.onNoNeighbour(payload)
	case FindNewNeighbourPayload:
		n.onFindNewNeighbour(payload)
	case FoundNewNeighbourPayload:
		n.onFoundNewNeighbour(payload)
	case ConfirmDeletePayload:
		n.onConfirmDelete(payload)
	case SetNeighbourNilPayload:
		n.onSetNeighbourNil(payload)
	default:
		n.logf("dropping message with no handler: %T", payload)
	}
}

// ---- search ----

// Search looks up the node responsible for key, returning the empty node
// if the search times out. It may be called from any goroutine; the
// actual routing work always runs on the node's actor.
func (n *Node) Search(ctx context.Context, key uint32) (SGNode, error) {
	return n.searchVia(ctx, key, Peer{})
}

// searchVia originates a search for key. If introducer is non-empty the
// request is sent to it (the join bootstrap path); otherwise the node
// enters the recursive routing itself.
func (n *Node) searchVia(ctx context.Context, key uint32, introducer Peer) (SGNode, error) {
	cacheEntry := newSearchRequest(n.cache)
	started := make(chan struct{})
	n.enqueue(func() {
		payload := SearchPayload{
			Identifier: uint32(cacheEntry.Number),
			Originator: n.Self(),
			SearchKey:  key,
			Level:      uint32(n.RT.Height()),
			Hops:       0,
		}
		if introducer.IsEmpty() {
			// Entering the routing on our own table needs no forward
			// tracking: every hop from here on arms its own entry.
			n.handleSearchRequest(Peer{}, payload)
		} else {
			// Track the bootstrap hop so a dead introducer is detected
			// the same way any dead forward target is.
			forward := newSearchForwardRequest(n.cache, payload, Peer{}, SGNode{Peer: introducer}, n.onSearchForwardTimeout)
			payload.ForwardIdentifier = uint32(forward.Number)
			forward.Payload = payload
			n.sendTo(introducer, payload)
		}
		close(started)
	})

	select {
	case <-started:
	case <-ctx.Done():
		return EmptySGNode(), ctx.Err()
	}

	select {
	case result := <-cacheEntry.Done:
		return result, nil
	case <-ctx.Done():
		return EmptySGNode(), ctx.Err()
	}
}

// onSearchRequest handles an inbound Search message. Self-originated
// searches never reach here (searchVia calls handleSearchRequest directly
// in that case); every message that does arrive over the transport has a
// genuine previous hop, recovered from the transport address since
// SearchPayload itself carries no "previous hop" field.
func (n *Node) onSearchRequest(from transport.Addr, payload SearchPayload) {
	n.handleSearchRequest(peerFromAddr(from), payload)
}

// handleSearchRequest is the recursive routing step: if this node holds
// the key, answer directly; otherwise greedily jump as far as possible
// toward the key without overshooting, preferring the highest level
// available, falling back to the immediate left neighbor (or self) once
// no level offers further progress.
func (n *Node) handleSearchRequest(from Peer, payload SearchPayload) {
	key := n.RT.Key
	target := payload.SearchKey

	switch {
	case key == target:
		n.respondSearch(from, payload, n.Self())
	case key < target:
		maxLevel := int(payload.Level)
		if h := n.RT.Height(); h < maxLevel {
			maxLevel = h
		}
		for level := maxLevel; level >= 0; level-- {
			if best, ok := n.RT.GetBest(level, Right, target); ok {
				n.forwardSearch(from, payload, best, level)
				return
			}
		}
		n.respondSearch(from, payload, n.Self())
	default:
		maxLevel := int(payload.Level)
		if h := n.RT.Height(); h < maxLevel {
			maxLevel = h
		}
		for level := maxLevel; level >= 0; level-- {
			if best, ok := n.RT.GetBest(level, Left, target); ok {
				n.forwardSearch(from, payload, best, level)
				return
			}
		}
		if nb := n.RT.Get(0, Left); !nb.IsEmpty() {
			n.forwardSearch(from, payload, nb, 0)
			return
		}
		n.respondSearch(from, payload, n.Self())
	}
}

// forwardSearch hands the search off to the next hop. A malicious node
// lies instead: it claims to be the answer and still acknowledges the
// previous hop, so the search appears to succeed while returning bad data.
func (n *Node) forwardSearch(from Peer, payload SearchPayload, to SGNode, level int) {
	n.SearchMessages++
	if n.IsMalicious {
		n.sendTo(payload.Originator.Peer, SearchResponsePayload{
			Identifier: payload.Identifier,
			Response:   n.Self(),
			Hops:       payload.Hops,
		})
		n.sendSearchIntermediateResponse(from, payload)
		return
	}
	forward := newSearchForwardRequest(n.cache, payload, from, to, n.onSearchForwardTimeout)
	next := SearchPayload{
		Identifier:        payload.Identifier,
		ForwardIdentifier: uint32(forward.Number),
		Originator:        payload.Originator,
		SearchKey:         payload.SearchKey,
		Level:             uint32(level),
		Hops:              payload.Hops + 1,
	}
	n.sendTo(to.Peer, next)
	n.sendSearchIntermediateResponse(from, payload)
}

func (n *Node) respondSearch(from Peer, payload SearchPayload, result SGNode) {
	n.sendTo(payload.Originator.Peer, SearchResponsePayload{
		Identifier: payload.Identifier,
		Response:   result,
		Hops:       payload.Hops,
	})
	n.sendSearchIntermediateResponse(from, payload)
}

func (n *Node) sendSearchIntermediateResponse(from Peer, payload SearchPayload) {
	if from.Address.Port == 0 {
		return
	}
	n.sendTo(from, SearchIntermediateResponsePayload{
		Identifier: payload.ForwardIdentifier,
		Node:       n.Self(),
	})
}

func (n *Node) onSearchResponse(payload SearchResponsePayload) {
	entry, ok := n.cache.Pop(KindSearch, uint16(payload.Identifier))
	if !ok {
		return
	}
	cacheEntry := entry.(*SearchRequestCache)
	n.SearchHops += int(payload.Hops)
	n.SearchLatencies = append(n.SearchLatencies, time.Since(cacheEntry.StartTime))
	cacheEntry.Done <- payload.Response
}

func (n *Node) onSearchIntermediateResponse(payload SearchIntermediateResponsePayload) {
	// A live intermediate response means the forward is still progressing;
	// pop the forward-search cache so its timeout does not fire and
	// mistakenly treat the next hop as dead.
	n.cache.Pop(KindForwardSearch, uint16(payload.Identifier))
}

// onSearchForwardTimeout fires when a forwarded hop never answers: the
// presumed-dead node is dropped from the routing table and the received
// request is replayed from this node's perspective, as if the forward had
// never happened.
func (n *Node) onSearchForwardTimeout(c *SearchForwardRequestCache) {
	n.enqueue(func() {
		n.RT.RemoveNode(c.ToNode.Key)
		n.handleSearchRequest(c.From, c.Payload)
	})
}
