package dkg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddTripletMergesRuleTags(t *testing.T) {
	g := NewKnowledgeGraph()
	g.AddTriplet(Triplet{Head: []byte("h"), Relation: []byte("r"), Tail: []byte("t"), Rules: []string{"RULE_A"}})
	g.AddTriplet(Triplet{Head: []byte("h"), Relation: []byte("r"), Tail: []byte("t"), Rules: []string{"RULE_B"}})

	require.Equal(t, 1, g.NumEdges())
	triplets := g.GetTripletsOfNode([]byte("h"))
	require.Len(t, triplets, 1)
	require.ElementsMatch(t, []string{"RULE_A", "RULE_B"}, triplets[0].Rules)
}

func TestAddTripletOverwritesDifferentRelation(t *testing.T) {
	g := NewKnowledgeGraph()
	g.AddTriplet(Triplet{Head: []byte("h"), Relation: []byte("r1"), Tail: []byte("t")})
	g.AddTriplet(Triplet{Head: []byte("h"), Relation: []byte("r2"), Tail: []byte("t")})

	require.Equal(t, 1, g.NumEdges())
	triplets := g.GetTripletsOfNode([]byte("h"))
	require.Len(t, triplets, 1)
	require.Equal(t, "r2", string(triplets[0].Relation))
}

func TestGetTripletsOfNodeIncludesInAndOut(t *testing.T) {
	g := NewKnowledgeGraph()
	g.AddTriplet(Triplet{Head: []byte("a"), Relation: []byte("r"), Tail: []byte("b")})
	g.AddTriplet(Triplet{Head: []byte("b"), Relation: []byte("r"), Tail: []byte("c")})

	require.Len(t, g.GetTripletsOfNode([]byte("b")), 2)
	require.Len(t, g.GetTripletsOfNode([]byte("a")), 1)
	require.Empty(t, g.GetTripletsOfNode([]byte("nonexistent")))
}

func TestTripletEqualityIgnoresRules(t *testing.T) {
	a := Triplet{Head: []byte("h"), Relation: []byte("r"), Tail: []byte("t"), Rules: []string{"X"}}
	b := Triplet{Head: []byte("h"), Relation: []byte("r"), Tail: []byte("t"), Rules: []string{"Y", "Z"}}
	require.True(t, a.Equal(b))
}
