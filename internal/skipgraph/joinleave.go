package skipgraph

import (
	"context"
	"net"
	"time"

	"descan/internal/transport"
)

// peerFromAddr reconstructs a reply-able Peer from a transport address.
// Only the address is meaningful for routing in this simulator (addrOf
// ignores PublicKey), so the returned Peer carries no public key; callers
// that need a fully-identified Peer for their own routing table should
// prefer the SGNode embedded in the message payload instead.
func peerFromAddr(a transport.Addr) Peer {
	addr, err := net.ResolveUDPAddr("udp", string(a))
	if err != nil {
		return Peer{}
	}
	return Peer{Address: *addr}
}

// ---- neighbor exchange ----

// getNeighbour asks a peer for its immediate neighbor on the given side and
// level, returning the empty node on timeout or context cancellation.
func (n *Node) getNeighbour(ctx context.Context, to Peer, side Direction, level int) SGNode {
	entry := newNeighbourRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(to, NeighbourRequestPayload{
			Identifier: uint32(entry.Number),
			Side:       directionToSide(side),
			Level:      uint32(level),
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return EmptySGNode()
	}
	select {
	case result := <-entry.Done:
		return result
	case <-ctx.Done():
		return EmptySGNode()
	}
}

func (n *Node) onNeighbourRequest(from transport.Addr, payload NeighbourRequestPayload) {
	side := sideToDirection(payload.Side)
	neighbour := n.RT.Get(int(payload.Level), side)
	n.sendTo(peerFromAddr(from), NeighbourResponsePayload{
		Identifier: payload.Identifier,
		Found:      !neighbour.IsEmpty(),
		Neighbour:  neighbour,
	})
}

func (n *Node) onNeighbourResponse(payload NeighbourResponsePayload) {
	entry, ok := n.cache.Pop(KindNeighbour, uint16(payload.Identifier))
	if !ok {
		return
	}
	result := EmptySGNode()
	if payload.Found {
		result = payload.Neighbour
	}
	entry.(*NeighbourRequestCache).Done <- result
}

// ---- level-0 link splice (GetLink/SetLink) ----

// requestLink asks `to` to adopt the caller as its neighbor on
// sideForRecipient at level, and returns the neighbor's acknowledgement
// (itself, confirming the link was set).
func (n *Node) requestLink(ctx context.Context, to Peer, sideForRecipient Direction, level int) SGNode {
	entry := newLinkRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(to, GetLinkPayload{
			Identifier: uint32(entry.Number),
			Originator: n.Self(),
			Side:       directionToSide(sideForRecipient),
			Level:      uint32(level),
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return EmptySGNode()
	}
	select {
	case result := <-entry.Done:
		return result
	case <-ctx.Done():
		return EmptySGNode()
	}
}

func (n *Node) onGetLink(payload GetLinkPayload) {
	side := sideToDirection(payload.Side)
	n.RT.Set(int(payload.Level), side, payload.Originator)
	n.sendTo(payload.Originator.Peer, SetLinkPayload{
		Identifier:   payload.Identifier,
		NewNeighbour: n.Self(),
		Level:        payload.Level,
	})
}

// onSetLink answers either a pending link request or a pending buddy
// request: both exchanges share this reply shape.
func (n *Node) onSetLink(payload SetLinkPayload) {
	if entry, ok := n.cache.Pop(KindLink, uint16(payload.Identifier)); ok {
		entry.(*LinkRequestCache).Done <- payload.NewNeighbour
		return
	}
	if entry, ok := n.cache.Pop(KindBuddy, uint16(payload.Identifier)); ok {
		entry.(*BuddyCache).Done <- payload.NewNeighbour
		return
	}
	n.logf("dropping SetLink for unknown identifier %d", payload.Identifier)
}

// ---- buddy chain (levels 1..Length) ----

// buddyRequest walks the level-(level-1) neighbor chain on the given side
// looking for a node that shares this node's membership-vector prefix
// through level, establishing it as the level-`level` buddy. It reports
// whether no buddy was found (used by Join's stopping condition).
func (n *Node) buddyRequest(ctx context.Context, level int, side Direction) bool {
	neighbour := n.RT.Get(level-1, side)
	if neighbour.IsEmpty() {
		return true
	}
	entry := newBuddyRequest(n.cache)
	done := make(chan struct{})
	myVal := n.RT.MV.At(level - 1)
	n.enqueue(func() {
		n.sendTo(neighbour.Peer, BuddyPayload{
			Identifier: uint32(entry.Number),
			Originator: n.Self(),
			Level:      uint32(level),
			Val:        uint32(myVal),
			Side:       uint32(side),
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return true
	}
	var result SGNode
	select {
	case result = <-entry.Done:
	case <-ctx.Done():
		return true
	}
	if result.IsEmpty() {
		return true
	}
	n.Do(func() {
		n.RT.Set(level, side, result)
	})
	return false
}

// onBuddy either closes the chain (this node shares the originator's
// prefix through `level`, so becomes its buddy) or forwards the request
// one hop further out along the chain. Level-`l` buddies agree on symbol
// l-1, on top of the l-1 symbols the level-(l-1) chain already shares.
func (n *Node) onBuddy(payload BuddyPayload) {
	side := Direction(payload.Side)
	if n.RT.MV.At(int(payload.Level)-1) == byte(payload.Val) {
		n.RT.Set(int(payload.Level), side.Opposite(), payload.Originator)
		n.sendTo(payload.Originator.Peer, SetLinkPayload{
			Identifier:   payload.Identifier,
			NewNeighbour: n.Self(),
			Level:        payload.Level,
		})
		return
	}
	next := n.RT.Get(int(payload.Level)-1, side)
	if next.IsEmpty() {
		n.sendTo(payload.Originator.Peer, SetLinkPayload{
			Identifier:   payload.Identifier,
			NewNeighbour: EmptySGNode(),
			Level:        payload.Level,
		})
		return
	}
	n.sendTo(next.Peer, BuddyPayload{
		Identifier: payload.Identifier,
		Originator: payload.Originator,
		Level:      payload.Level,
		Val:        payload.Val,
		Side:       payload.Side,
	})
}

// ---- join ----

// Join inserts this node into the skip graph reachable through introducer.
// It searches for its own key to find its level-0 insertion point, splices
// in at level 0, then climbs the buddy chain level by level until neither
// side yields a new buddy.
func (n *Node) Join(ctx context.Context, introducer Peer) error {
	start := time.Now()
	target, err := n.searchVia(ctx, n.RT.Key, introducer)
	if err != nil {
		return err
	}
	if !target.IsEmpty() && target.Key != n.RT.Key {
		n.spliceAtLevelZero(ctx, target)
	}
	for level := 1; level <= Length; level++ {
		rightEmpty := n.buddyRequest(ctx, level, Right)
		leftEmpty := n.buddyRequest(ctx, level, Left)
		if rightEmpty && leftEmpty {
			break
		}
	}
	n.enqueue(func() {
		n.JoinLatencies = append(n.JoinLatencies, time.Since(start))
	})
	return nil
}

func (n *Node) spliceAtLevelZero(ctx context.Context, target SGNode) {
	var left, right SGNode
	if target.Key < n.RT.Key {
		left = target
		right = n.getNeighbour(ctx, target.Peer, Right, 0)
	} else {
		right = target
		left = n.getNeighbour(ctx, target.Peer, Left, 0)
	}
	if !left.IsEmpty() {
		n.requestLink(ctx, left.Peer, Right, 0)
		n.Do(func() { n.RT.Set(0, Left, left) })
	}
	if !right.IsEmpty() {
		n.requestLink(ctx, right.Peer, Left, 0)
		n.Do(func() { n.RT.Set(0, Right, right) })
	}
}

// ---- leave ----

// Leave removes this node from the skip graph, level by level from its
// current height down to 0. At a level with neighbors on both sides, each
// gets a Delete/FindNewNeighbour/Confirm exchange so it can re-home
// itself past this node. At a level with a single neighbor there is no
// replacement to discover, so that neighbor gets a SetNeighbourNil
// telling it to simply forget this node. A neighbor that never answers
// is presumed dead and dropped rather than escalated further, since the
// timeout-driven search repair (onSearchForwardTimeout) heals any
// resulting gap opportunistically.
func (n *Node) Leave(ctx context.Context) error {
	start := time.Now()
	n.enqueue(func() { n.IsLeaving = true })
	height := n.RT.Height()
	for level := height; level >= 0; level-- {
		left := n.RT.Get(level, Left)
		right := n.RT.Get(level, Right)
		switch {
		case !left.IsEmpty() && !right.IsEmpty():
			n.leaveSide(ctx, left, level)
			n.leaveSide(ctx, right, level)
		case !left.IsEmpty():
			n.setNeighbourNil(ctx, left, level)
		case !right.IsEmpty():
			n.setNeighbourNil(ctx, right, level)
		}
	}
	n.enqueue(func() {
		n.RT = NewRoutingTable(n.RT.Key, n.RT.MV, n.RT.NbSize)
		n.LeaveLatencies = append(n.LeaveLatencies, time.Since(start))
	})
	return nil
}

func (n *Node) leaveSide(ctx context.Context, neighbour SGNode, level int) {
	entry := newDeleteRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(neighbour.Peer, DeletePayload{
			Identifier: uint32(entry.Number),
			Originator: n.Self(),
			Level:      uint32(level),
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	select {
	case <-entry.Done:
	case <-ctx.Done():
	}
}

// onDelete removes the leaving originator from this node's table, then
// asynchronously asks it directly for its replacement before
// acknowledging, so this node ends up re-homed past the departing one.
func (n *Node) onDelete(payload DeletePayload) {
	originator := payload.Originator
	level := int(payload.Level)
	side := Left
	if originator.Key >= n.RT.Key {
		side = Right
	}
	n.RT.RemoveNode(originator.Key)
	go n.completeDelete(originator, side, level, payload.Identifier)
}

func (n *Node) completeDelete(originator SGNode, side Direction, level int, deleteIdentifier uint32) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	replacement := n.findNewNeighbour(ctx, originator.Peer, level)
	if !replacement.IsEmpty() {
		n.enqueue(func() { n.RT.Set(level, side, replacement) })
	}
	n.enqueue(func() {
		n.sendTo(originator.Peer, ConfirmDeletePayload{Identifier: deleteIdentifier, Level: uint32(level)})
	})
}

// setNeighbourNil asks a level's only neighbor to drop this node with no
// replacement, and waits for its ConfirmDelete.
func (n *Node) setNeighbourNil(ctx context.Context, neighbour SGNode, level int) {
	entry := newSetNeighbourNilRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(neighbour.Peer, SetNeighbourNilPayload{
			Identifier: uint32(entry.Number),
			Originator: n.Self(),
			Level:      uint32(level),
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	select {
	case <-entry.Done:
	case <-ctx.Done():
	}
}

// onConfirmDelete resolves either a pending Delete or a pending
// SetNeighbourNil: both exchanges are acknowledged with this message.
func (n *Node) onConfirmDelete(payload ConfirmDeletePayload) {
	if entry, ok := n.cache.Pop(KindDelete, uint16(payload.Identifier)); ok {
		entry.(*DeleteCache).Done <- true
		return
	}
	if entry, ok := n.cache.Pop(KindSetNeighbourNil, uint16(payload.Identifier)); ok {
		entry.(*SetNeighbourNilCache).Done <- true
	}
}

// findNewNeighbour asks the (still-leaving) node `to` for its own
// neighbor on the appropriate side at level, inferred by comparing keys.
func (n *Node) findNewNeighbour(ctx context.Context, to Peer, level int) SGNode {
	entry := newFindNewNeighbourRequest(n.cache)
	done := make(chan struct{})
	n.enqueue(func() {
		n.sendTo(to, FindNewNeighbourPayload{
			Identifier: uint32(entry.Number),
			Originator: n.Self(),
			Level:      uint32(level),
		})
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return EmptySGNode()
	}
	select {
	case result := <-entry.Done:
		return result
	case <-ctx.Done():
		return EmptySGNode()
	}
}

func (n *Node) onFindNewNeighbour(payload FindNewNeighbourPayload) {
	asker := payload.Originator
	level := int(payload.Level)
	// The asker wants whoever sits on our far side relative to it: an
	// asker to our right gets our left neighbor, and vice versa.
	side := Right
	if asker.Key >= n.RT.Key {
		side = Left
	}
	replacement := n.RT.Get(level, side)
	if replacement.IsEmpty() {
		n.sendTo(asker.Peer, NoNeighbourPayload{Identifier: payload.Identifier, Level: uint32(level)})
		return
	}
	n.sendTo(asker.Peer, FoundNewNeighbourPayload{
		Identifier: payload.Identifier,
		Neighbour:  replacement,
		Level:      uint32(level),
	})
}

func (n *Node) onFoundNewNeighbour(payload FoundNewNeighbourPayload) {
	entry, ok := n.cache.Pop(KindFindNewNeighbour, uint16(payload.Identifier))
	if !ok {
		return
	}
	entry.(*FindNewNeighbourCache).Done <- payload.Neighbour
}

func (n *Node) onNoNeighbour(payload NoNeighbourPayload) {
	entry, ok := n.cache.Pop(KindFindNewNeighbour, uint16(payload.Identifier))
	if !ok {
		return
	}
	entry.(*FindNewNeighbourCache).Done <- EmptySGNode()
}

// onSetNeighbourNil drops the departing originator with no replacement
// and acknowledges, so the leaver can move on to its next level.
func (n *Node) onSetNeighbourNil(payload SetNeighbourNilPayload) {
	n.RT.RemoveNode(payload.Originator.Key)
	n.sendTo(payload.Originator.Peer, ConfirmDeletePayload{
		Identifier: payload.Identifier,
		Level:      payload.Level,
	})
}
