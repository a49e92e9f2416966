package dkg

import (
	"time"

	"descan/internal/reqcache"
)

// Cache kinds for the DKG layer's outstanding requests.
const (
	KindStore      = "store"
	KindTriplets   = "triplets"
	KindEdgeSearch = "edge-search"
)

// storeTimeout bounds an outstanding StorageRequest; it is the overlay's
// generic request deadline, shared by kinds with no tighter bound of
// their own.
const storeTimeout = 10 * time.Second

// tripletsTimeout bounds an outstanding TripletsRequest.
const tripletsTimeout = 5 * time.Second

// edgeSearchTimeout bounds a whole SearchEdges call, guaranteeing it
// always completes even if every constituent search and fetch hangs.
const edgeSearchTimeout = 60 * time.Second

// StoreRequestCache tracks an outstanding StorageRequest, resolved by the
// matching StorageResponse or, on timeout, by a false ("refused")
// sentinel.
type StoreRequestCache struct {
	Number uint16
	Done   chan bool
}

func (e *StoreRequestCache) Kind() string           { return KindStore }
func (e *StoreRequestCache) Timeout() time.Duration { return storeTimeout }
func (e *StoreRequestCache) OnTimeout()             { e.Done <- false }

// TripletsRequestCache tracks an outstanding TripletsRequest, resolved by
// the matching blob transfer or, on timeout, by nil ("no result").
type TripletsRequestCache struct {
	Number uint16
	Done   chan []Triplet
}

func (e *TripletsRequestCache) Kind() string           { return KindTriplets }
func (e *TripletsRequestCache) Timeout() time.Duration { return tripletsTimeout }
func (e *TripletsRequestCache) OnTimeout()             { e.Done <- nil }

// edgeSearchEntry backs one edgeSearchCoordinator's final completion slot;
// see edgesearch.go for the surrounding per-search bookkeeping (pending
// searches, pending/completed triplet requests).
type edgeSearchEntry struct {
	Number uint16
	Done   chan []Triplet
}

func (e *edgeSearchEntry) Kind() string           { return KindEdgeSearch }
func (e *edgeSearchEntry) Timeout() time.Duration { return edgeSearchTimeout }
func (e *edgeSearchEntry) OnTimeout()             { e.Done <- []Triplet{} }

func newStoreRequest(c *reqcache.Cache) *StoreRequestCache {
	entry := c.Add(KindStore, func(number uint16) reqcache.Entry {
		return &StoreRequestCache{Number: number, Done: make(chan bool, 1)}
	})
	return entry.(*StoreRequestCache)
}

func newTripletsRequest(c *reqcache.Cache) *TripletsRequestCache {
	entry := c.Add(KindTriplets, func(number uint16) reqcache.Entry {
		return &TripletsRequestCache{Number: number, Done: make(chan []Triplet, 1)}
	})
	return entry.(*TripletsRequestCache)
}

func newEdgeSearchEntry(c *reqcache.Cache) *edgeSearchEntry {
	entry := c.Add(KindEdgeSearch, func(number uint16) reqcache.Entry {
		return &edgeSearchEntry{Number: number, Done: make(chan []Triplet, 1)}
	})
	return entry.(*edgeSearchEntry)
}
