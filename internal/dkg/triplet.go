package dkg

import "bytes"

// Triplet is one knowledge-graph edge: (head, relation, tail), tagged with
// the rule(s) that produced it. Equality is by (head, relation, tail)
// only.
type Triplet struct {
	Head     []byte
	Relation []byte
	Tail     []byte
	Rules    []string
}

// AddRule tags the triplet with an additional rule name.
func (t *Triplet) AddRule(rule string) {
	t.Rules = append(t.Rules, rule)
}

// Equal compares two triplets by (head, relation, tail), ignoring rules.
func (t Triplet) Equal(other Triplet) bool {
	return bytes.Equal(t.Head, other.Head) &&
		bytes.Equal(t.Relation, other.Relation) &&
		bytes.Equal(t.Tail, other.Tail)
}

func (t Triplet) String() string {
	return "<" + string(t.Head) + ", " + string(t.Relation) + ", " + string(t.Tail) + ">"
}
