// Package rules defines the pluggable triplet-extraction capability and a
// small registry, plus one concrete reference rule for testing and demos.
// Real domain rules (release name parsing, Ethereum block/transaction
// decoding) plug in through the Rule interface.
package rules

import "descan/internal/dkg"

// Rule is the capability every extraction rule implements: given a piece
// of content, produce the triplets it yields.
type Rule interface {
	// Apply extracts triplets from content. The returned triplets' Rules
	// field is left empty; the engine tags each with Name() after Apply
	// returns.
	Apply(content dkg.Content) []dkg.Triplet
	// Name identifies the rule, used both as its registry key and as the
	// tag attached to triplets it produces.
	Name() string
}

// Registry holds the set of rules an engine applies to each piece of
// content.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry returns an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Add registers rule under its own name, replacing any existing rule with
// the same name.
func (r *Registry) Add(rule Rule) {
	r.rules[rule.Name()] = rule
}

// Get looks up a rule by name.
func (r *Registry) Get(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// All returns every registered rule, in no particular order.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}
