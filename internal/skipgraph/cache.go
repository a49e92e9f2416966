package skipgraph

import (
	"time"

	"descan/internal/reqcache"
)

// Cache kinds for each outstanding Skip Graph request type.
const (
	KindNeighbour        = "neighbour"
	KindLink             = "link"
	KindBuddy            = "buddy"
	KindSearch           = "search"
	KindForwardSearch    = "forward-search"
	KindDelete           = "delete"
	KindSetNeighbourNil  = "set-neighbour-nil"
	KindFindNewNeighbour = "find-new-neighbour"
)

// defaultTimeout is shared by the cache kinds with no protocol-specific
// deadline of their own (neighbour, link, buddy, delete,
// set-neighbour-nil, find-new-neighbour).
const defaultTimeout = 10 * time.Second

// searchTimeout bounds a whole top-level search.
const searchTimeout = 20 * time.Second

// forwardSearchTimeout bounds a single forwarded hop; its firing is what
// triggers routing around a silent peer.
const forwardSearchTimeout = 1 * time.Second

// NeighbourRequestCache tracks an outstanding GetNeighbourRequest, resolved
// by the matching NeighbourResponse.
type NeighbourRequestCache struct {
	Number uint16
	Done   chan SGNode
}

func (e *NeighbourRequestCache) Kind() string           { return KindNeighbour }
func (e *NeighbourRequestCache) Timeout() time.Duration { return defaultTimeout }
func (e *NeighbourRequestCache) OnTimeout()             { e.Done <- EmptySGNode() }

// LinkRequestCache tracks an outstanding GetLink exchange, resolved by the
// matching SetLink.
type LinkRequestCache struct {
	Number uint16
	Done   chan SGNode
}

func (e *LinkRequestCache) Kind() string           { return KindLink }
func (e *LinkRequestCache) Timeout() time.Duration { return defaultTimeout }
func (e *LinkRequestCache) OnTimeout()             { e.Done <- EmptySGNode() }

// BuddyCache tracks an outstanding buddy-chain request during join,
// resolved by the matching SetLink reply.
type BuddyCache struct {
	Number uint16
	Done   chan SGNode
}

func (e *BuddyCache) Kind() string           { return KindBuddy }
func (e *BuddyCache) Timeout() time.Duration { return defaultTimeout }
func (e *BuddyCache) OnTimeout()             { e.Done <- EmptySGNode() }

// SearchRequestCache tracks a top-level search(key) call. On success it is
// resolved directly by the node that holds the key; on timeout it resolves
// to the empty node.
type SearchRequestCache struct {
	Number    uint16
	Done      chan SGNode
	StartTime time.Time
}

func (e *SearchRequestCache) Kind() string           { return KindSearch }
func (e *SearchRequestCache) Timeout() time.Duration { return searchTimeout }
func (e *SearchRequestCache) OnTimeout()             { e.Done <- EmptySGNode() }

// SearchForwardRequestCache tracks a single recursive search hop: it
// remembers the payload, the peer that sent it, and the node it was
// forwarded to, so that a timeout can replay the search from this node's
// perspective (see Node.onSearchForwardTimeout).
type SearchForwardRequestCache struct {
	Number  uint16
	Payload SearchPayload
	From    Peer
	ToNode  SGNode

	onTimeout func(c *SearchForwardRequestCache)
}

func (e *SearchForwardRequestCache) Kind() string           { return KindForwardSearch }
func (e *SearchForwardRequestCache) Timeout() time.Duration { return forwardSearchTimeout }
func (e *SearchForwardRequestCache) OnTimeout() {
	if e.onTimeout != nil {
		e.onTimeout(e)
	}
}

// DeleteCache tracks an outstanding Delete sent during leave. It resolves
// to true on ConfirmDelete, or false on timeout (the neighbor is presumed
// dead and simply dropped; the leaver moves on to its next level).
type DeleteCache struct {
	Number uint16
	Done   chan bool
}

func (e *DeleteCache) Kind() string           { return KindDelete }
func (e *DeleteCache) Timeout() time.Duration { return defaultTimeout }
func (e *DeleteCache) OnTimeout()             { e.Done <- false }

// FindNewNeighbourCache tracks a Delete recipient's request to the leaving
// node for the leaving node's neighbor on the far side at that level,
// resolved by FoundNewNeighbour (a node) or NoNeighbour (the empty node).
type FindNewNeighbourCache struct {
	Number uint16
	Done   chan SGNode
}

func (e *FindNewNeighbourCache) Kind() string           { return KindFindNewNeighbour }
func (e *FindNewNeighbourCache) Timeout() time.Duration { return defaultTimeout }
func (e *FindNewNeighbourCache) OnTimeout()             { e.Done <- EmptySGNode() }

// SetNeighbourNilCache tracks a SetNeighbourNil sent during leave to a
// level's only neighbor (no replacement exists to offer it), resolved by
// the matching ConfirmDelete or a false sentinel on timeout.
type SetNeighbourNilCache struct {
	Number uint16
	Done   chan bool
}

func (e *SetNeighbourNilCache) Kind() string           { return KindSetNeighbourNil }
func (e *SetNeighbourNilCache) Timeout() time.Duration { return defaultTimeout }
func (e *SetNeighbourNilCache) OnTimeout()             { e.Done <- false }

// newNeighbourRequest registers and arms a NeighbourRequestCache entry.
func newNeighbourRequest(c *reqcache.Cache) *NeighbourRequestCache {
	entry := c.Add(KindNeighbour, func(number uint16) reqcache.Entry {
		return &NeighbourRequestCache{Number: number, Done: make(chan SGNode, 1)}
	})
	return entry.(*NeighbourRequestCache)
}

func newLinkRequest(c *reqcache.Cache) *LinkRequestCache {
	entry := c.Add(KindLink, func(number uint16) reqcache.Entry {
		return &LinkRequestCache{Number: number, Done: make(chan SGNode, 1)}
	})
	return entry.(*LinkRequestCache)
}

func newBuddyRequest(c *reqcache.Cache) *BuddyCache {
	entry := c.Add(KindBuddy, func(number uint16) reqcache.Entry {
		return &BuddyCache{Number: number, Done: make(chan SGNode, 1)}
	})
	return entry.(*BuddyCache)
}

func newSearchRequest(c *reqcache.Cache) *SearchRequestCache {
	entry := c.Add(KindSearch, func(number uint16) reqcache.Entry {
		return &SearchRequestCache{Number: number, Done: make(chan SGNode, 1), StartTime: time.Now()}
	})
	return entry.(*SearchRequestCache)
}

func newSearchForwardRequest(c *reqcache.Cache, payload SearchPayload, from Peer, toNode SGNode, onTimeout func(*SearchForwardRequestCache)) *SearchForwardRequestCache {
	entry := c.Add(KindForwardSearch, func(number uint16) reqcache.Entry {
		return &SearchForwardRequestCache{
			Number:    number,
			Payload:   payload,
			From:      from,
			ToNode:    toNode,
			onTimeout: onTimeout,
		}
	})
	return entry.(*SearchForwardRequestCache)
}

func newDeleteRequest(c *reqcache.Cache) *DeleteCache {
	entry := c.Add(KindDelete, func(number uint16) reqcache.Entry {
		return &DeleteCache{Number: number, Done: make(chan bool, 1)}
	})
	return entry.(*DeleteCache)
}

func newFindNewNeighbourRequest(c *reqcache.Cache) *FindNewNeighbourCache {
	entry := c.Add(KindFindNewNeighbour, func(number uint16) reqcache.Entry {
		return &FindNewNeighbourCache{Number: number, Done: make(chan SGNode, 1)}
	})
	return entry.(*FindNewNeighbourCache)
}

func newSetNeighbourNilRequest(c *reqcache.Cache) *SetNeighbourNilCache {
	entry := c.Add(KindSetNeighbourNil, func(number uint16) reqcache.Entry {
		return &SetNeighbourNilCache{Number: number, Done: make(chan bool, 1)}
	})
	return entry.(*SetNeighbourNilCache)
}
