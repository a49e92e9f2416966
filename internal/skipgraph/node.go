package skipgraph

import "net"

// Peer identifies the network endpoint and long-term identity of a Skip
// Graph participant, independent of its position in any particular routing
// table.
type Peer struct {
	Address   net.UDPAddr
	PublicKey []byte
}

// IsEmpty reports whether the peer carries no identity; identity is
// determined by the public key alone.
func (p Peer) IsEmpty() bool {
	return len(p.PublicKey) == 0
}

// SGNode is a Skip Graph participant as known to a routing table: its
// network peer, its numeric key (its position in the graph's total
// order), and its membership vector. Equality is defined on Key alone.
type SGNode struct {
	Peer Peer
	Key  uint32
	MV   MembershipVector
}

// EmptySGNode returns the sentinel "no such neighbor" node: a zero key, an
// empty peer, and a zero membership vector. Routing-table slots that have
// never been filled hold this value.
func EmptySGNode() SGNode {
	return SGNode{
		Peer: Peer{Address: net.UDPAddr{IP: net.IPv4zero, Port: 0}, PublicKey: nil},
		Key:  0,
		MV:   MembershipVector{},
	}
}

// IsEmpty reports whether n is the sentinel "no neighbor" value.
func (n SGNode) IsEmpty() bool {
	return n.Peer.IsEmpty()
}

// Equal compares two nodes by key only.
func (n SGNode) Equal(other SGNode) bool {
	return n.Key == other.Key
}
