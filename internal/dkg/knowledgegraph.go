package dkg

import (
	"bytes"
	"sync"
)

// edgeKey identifies one knowledge-graph edge by its endpoints.
type edgeKey struct {
	head, tail string
}

type edge struct {
	relation []byte
	rules    map[string]struct{}
}

// KnowledgeGraph is the local in-memory triplet store: a directed graph on
// byte-string nodes, one edge per (head, tail) pair, each edge carrying a
// relation and a set of rule tags. Re-adding a triplet with the same
// (head, relation, tail) merges its rule tags into the existing edge
// rather than duplicating it; re-adding with the same (head, tail) but a
// different relation replaces the edge entirely.
type KnowledgeGraph struct {
	mu    sync.Mutex
	edges map[edgeKey]*edge
	// out/in track, per node label, the edges touching it so
	// GetTripletsOfNode doesn't need a full scan.
	out map[string][]edgeKey
	in  map[string][]edgeKey
}

// NewKnowledgeGraph returns an empty knowledge graph.
func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		edges: make(map[edgeKey]*edge),
		out:   make(map[string][]edgeKey),
		in:    make(map[string][]edgeKey),
	}
}

// AddTriplet inserts t, merging rule tags into an existing identical edge.
func (g *KnowledgeGraph) AddTriplet(t Triplet) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := edgeKey{head: string(t.Head), tail: string(t.Tail)}
	if e, ok := g.edges[k]; ok {
		if bytes.Equal(e.relation, t.Relation) {
			for _, r := range t.Rules {
				e.rules[r] = struct{}{}
			}
			return
		}
		// Same endpoints, different relation: overwrite the edge.
		g.edges[k] = newEdge(t.Relation, t.Rules)
		return
	}

	g.edges[k] = newEdge(t.Relation, t.Rules)
	g.out[k.head] = append(g.out[k.head], k)
	g.in[k.tail] = append(g.in[k.tail], k)
}

func newEdge(relation []byte, rules []string) *edge {
	e := &edge{relation: relation, rules: make(map[string]struct{})}
	for _, r := range rules {
		e.rules[r] = struct{}{}
	}
	return e
}

// GetTripletsOfNode returns every triplet with content as either head or
// tail.
func (g *KnowledgeGraph) GetTripletsOfNode(content []byte) []Triplet {
	g.mu.Lock()
	defer g.mu.Unlock()

	label := string(content)
	out := make([]Triplet, 0, len(g.in[label])+len(g.out[label]))
	for _, k := range g.in[label] {
		e := g.edges[k]
		out = append(out, triplForEdge(k, e))
	}
	for _, k := range g.out[label] {
		e := g.edges[k]
		out = append(out, triplForEdge(k, e))
	}
	return out
}

func triplForEdge(k edgeKey, e *edge) Triplet {
	rules := make([]string, 0, len(e.rules))
	for r := range e.rules {
		rules = append(rules, r)
	}
	return Triplet{Head: []byte(k.head), Relation: e.relation, Tail: []byte(k.tail), Rules: rules}
}

// NumEdges reports the total number of distinct (head, tail) edges stored.
func (g *KnowledgeGraph) NumEdges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edges)
}
