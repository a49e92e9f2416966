package rules

import (
	"encoding/hex"

	"descan/internal/dkg"
)

// DummyRuleName is the tag DummyRule attaches to every triplet it
// produces.
const DummyRuleName = "DUMMY"

// DummyRule generates one fixed edge per piece of content: useful for
// exercising the rule engine and DKG replication path without a real
// extraction rule.
type DummyRule struct{}

// Apply always returns the single triplet (hex(content.Identifier), "a", "b").
func (DummyRule) Apply(content dkg.Content) []dkg.Triplet {
	head := []byte(hex.EncodeToString(content.Identifier))
	return []dkg.Triplet{{Head: head, Relation: []byte("a"), Tail: []byte("b")}}
}

// Name returns DummyRuleName.
func (DummyRule) Name() string { return DummyRuleName }
