package dkg

import (
	"context"
	"sync"
	"time"

	"descan/internal/skipgraph"
)

// sgSearchKey identifies one in-flight Skip Graph search launched by an
// edge search: which co-resident skip graph it ran on, and which
// replication key it searched for.
type sgSearchKey struct {
	sgInd int
	key   uint32
}

// edgeSearchCoordinator backs one SearchEdges call. It fans out
// |skip graphs| x replication-factor parallel Skip Graph searches,
// issues a triplets request for each distinct node returned, and
// resolves as soon as the first non-empty triplets response arrives.
// The per-search and per-fetch goroutines all report into one
// mutex-guarded coordinator.
type edgeSearchCoordinator struct {
	node        *Node
	contentHash []byte
	entry       *edgeSearchEntry

	mu sync.Mutex

	pendingSG         map[sgSearchKey]struct{}
	pendingTriplets   map[uint32]struct{}
	completedTriplets map[uint32]struct{}
	nodeKeyToSGSearch map[uint32]sgSearchKey

	sgSearchStart    map[sgSearchKey]time.Time
	sgSearchTime     map[sgSearchKey]time.Duration
	tripletsStart    map[uint32]time.Time

	resolved bool
	// Latency of the single winning path: (sg search time, triplets
	// request time). Losing paths' times are discarded.
	LatencySGSearch  time.Duration
	LatencyTriplets  time.Duration
}

func newEdgeSearchCoordinator(n *Node, contentHash []byte) *edgeSearchCoordinator {
	return &edgeSearchCoordinator{
		node:              n,
		contentHash:       contentHash,
		entry:             newEdgeSearchEntry(n.cache),
		pendingSG:         make(map[sgSearchKey]struct{}),
		pendingTriplets:   make(map[uint32]struct{}),
		completedTriplets: make(map[uint32]struct{}),
		nodeKeyToSGSearch: make(map[uint32]sgSearchKey),
		sgSearchStart:     make(map[sgSearchKey]time.Time),
		sgSearchTime:      make(map[sgSearchKey]time.Duration),
		tripletsStart:     make(map[uint32]time.Time),
	}
}

// performSearch launches one Skip Graph search in the background.
func (c *edgeSearchCoordinator) performSearch(sgInd int, key uint32) {
	k := sgSearchKey{sgInd: sgInd, key: key}
	c.mu.Lock()
	c.pendingSG[k] = struct{}{}
	c.sgSearchStart[k] = time.Now()
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), edgeSearchTimeout)
		defer cancel()
		result, err := c.node.SkipGraphs[sgInd].Search(ctx, key)
		c.onSkipGraphResult(k, result, err)
	}()
}

func (c *edgeSearchCoordinator) onSkipGraphResult(k sgSearchKey, result skipgraph.SGNode, err error) {
	c.mu.Lock()
	elapsed := time.Since(c.sgSearchStart[k])
	delete(c.pendingSG, k)
	c.sgSearchTime[k] = elapsed
	resolved := c.resolved
	c.mu.Unlock()

	if resolved || err != nil || result.IsEmpty() {
		c.checkFinished()
		return
	}

	c.mu.Lock()
	if _, seen := c.nodeKeyToSGSearch[result.Key]; !seen {
		c.nodeKeyToSGSearch[result.Key] = k
	}
	_, pending := c.pendingTriplets[result.Key]
	_, completed := c.completedTriplets[result.Key]
	alreadyAsked := pending || completed
	if !alreadyAsked {
		c.pendingTriplets[result.Key] = struct{}{}
		c.tripletsStart[result.Key] = time.Now()
	}
	c.mu.Unlock()

	if !alreadyAsked {
		go c.requestTripletsFrom(result)
	}
	c.checkFinished()
}

func (c *edgeSearchCoordinator) requestTripletsFrom(target skipgraph.SGNode) {
	var triplets []Triplet
	if target.Key == c.node.sgKeyUnsafe() {
		triplets = c.node.KG.GetTripletsOfNode(c.contentHash)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), edgeSearchTimeout)
		defer cancel()
		triplets = c.node.requestTriplets(ctx, target, c.contentHash)
	}
	c.onTripletsResult(target.Key, triplets)
}

func (c *edgeSearchCoordinator) onTripletsResult(nodeKey uint32, triplets []Triplet) {
	c.mu.Lock()
	elapsed := time.Since(c.tripletsStart[nodeKey])
	delete(c.pendingTriplets, nodeKey)
	c.completedTriplets[nodeKey] = struct{}{}

	if len(triplets) > 0 && !c.resolved {
		c.resolved = true
		sgKey := c.nodeKeyToSGSearch[nodeKey]
		c.LatencySGSearch = c.sgSearchTime[sgKey]
		c.LatencyTriplets = elapsed
		c.mu.Unlock()
		c.entry.Done <- triplets
		return
	}
	c.mu.Unlock()
	c.checkFinished()
}

// checkFinished resolves the coordinator's result with an empty list once
// every outstanding Skip Graph search and triplets request has completed
// with no winner.
func (c *edgeSearchCoordinator) checkFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved || len(c.pendingSG) != 0 || len(c.pendingTriplets) != 0 {
		return
	}
	c.resolved = true
	c.entry.Done <- []Triplet{}
}
