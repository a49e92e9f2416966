package skipgraph

import "sort"

// Direction identifies which side of a routing-table level a neighbor sits
// on.
type Direction int

const (
	// Left identifies neighbors whose key is smaller than the owner's.
	Left Direction = 0
	// Right identifies neighbors whose key is larger than the owner's.
	Right Direction = 1
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Left {
		return Right
	}
	return Left
}

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// routingTableLevel holds the Left/Right neighbor lists for a single skip
// graph level. Each list is kept sorted ascending by key.
type routingTableLevel struct {
	neighbors [2][]SGNode
}

func (l *routingTableLevel) isEmpty() bool {
	return len(l.neighbors[Left]) == 0 && len(l.neighbors[Right]) == 0
}

// RoutingTable is a single node's view of its Skip Graph neighbors across
// all levels.
type RoutingTable struct {
	Key    uint32
	MV     MembershipVector
	NbSize int // 0 means unbounded.

	levels []routingTableLevel
}

// NewRoutingTable builds an empty routing table for a node with the given
// key and membership vector. nbSize bounds how many neighbors per side per
// level are retained (0 for unbounded).
func NewRoutingTable(key uint32, mv MembershipVector, nbSize int) *RoutingTable {
	return &RoutingTable{
		Key:    key,
		MV:     mv,
		NbSize: nbSize,
		levels: make([]routingTableLevel, Length+1),
	}
}

func (rt *RoutingTable) level(level int) *routingTableLevel {
	return &rt.levels[level]
}

// Get returns the immediate neighbor on the given side at the given level:
// the closest entry, i.e. index 0 for Right and the last index for Left.
// It returns the empty node if there is none.
func (rt *RoutingTable) Get(level int, side Direction) SGNode {
	lst := rt.level(level).neighbors[side]
	if len(lst) == 0 {
		return EmptySGNode()
	}
	if side == Right {
		return lst[0]
	}
	return lst[len(lst)-1]
}

// GetBest scans the neighbor list on the given side at the given level for
// the entry that makes the largest progress toward searchTarget without
// overshooting it: for Right, the largest key <= searchTarget; for Left,
// the smallest key >= searchTarget. It reports ok=false if no neighbor
// satisfies the bound.
func (rt *RoutingTable) GetBest(level int, side Direction, searchTarget uint32) (SGNode, bool) {
	lst := rt.level(level).neighbors[side]
	var best SGNode
	found := false
	if side == Right {
		for _, n := range lst {
			if n.Key <= searchTarget {
				best = n
				found = true
			} else {
				break
			}
		}
		return best, found
	}
	for i := len(lst) - 1; i >= 0; i-- {
		n := lst[i]
		if n.Key >= searchTarget {
			best = n
			found = true
		} else {
			break
		}
	}
	return best, found
}

// Set inserts node into the neighbor list for the given side/level. It is a
// no-op for the empty node, idempotent if the node's key is already
// present, and keeps the list sorted ascending by key. When NbSize is set
// and insertion would exceed it, the farthest entry on that side is
// dropped: the smallest key for Left (index 0) or the largest key for
// Right (the last index), since the closest neighbor sits at the opposite
// end of each list.
func (rt *RoutingTable) Set(level int, side Direction, node SGNode) {
	if node.IsEmpty() || node.Key == rt.Key {
		return
	}
	lvl := rt.level(level)
	for _, existing := range lvl.neighbors[side] {
		if existing.Key == node.Key {
			return
		}
	}
	lvl.neighbors[side] = append(lvl.neighbors[side], node)
	sort.Slice(lvl.neighbors[side], func(i, j int) bool {
		return lvl.neighbors[side][i].Key < lvl.neighbors[side][j].Key
	})
	if rt.NbSize > 0 && len(lvl.neighbors[side]) > rt.NbSize {
		if side == Right {
			lvl.neighbors[side] = lvl.neighbors[side][:rt.NbSize]
		} else {
			excess := len(lvl.neighbors[side]) - rt.NbSize
			lvl.neighbors[side] = lvl.neighbors[side][excess:]
		}
	}
}

// RemoveNode removes every neighbor with the given key from every level and
// side of the table.
func (rt *RoutingTable) RemoveNode(key uint32) {
	for i := range rt.levels {
		for side := Direction(0); side <= Right; side++ {
			lst := rt.levels[i].neighbors[side]
			out := lst[:0]
			for _, n := range lst {
				if n.Key != key {
					out = append(out, n)
				}
			}
			rt.levels[i].neighbors[side] = out
		}
	}
}

// GetAllNodes returns the distinct set of nodes present anywhere in the
// table, across all levels and sides.
func (rt *RoutingTable) GetAllNodes() []SGNode {
	seen := make(map[uint32]SGNode)
	for i := range rt.levels {
		for side := Direction(0); side <= Right; side++ {
			for _, n := range rt.levels[i].neighbors[side] {
				seen[n.Key] = n
			}
		}
	}
	out := make([]SGNode, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Height returns the highest level at which this node has at least one
// neighbor on either side, or 0 if it is isolated.
func (rt *RoutingTable) Height() int {
	for level := len(rt.levels) - 1; level > 0; level-- {
		if !rt.levels[level].isEmpty() {
			return level
		}
	}
	return 0
}

func (rt *RoutingTable) String() string {
	return rt.MV.String()
}
