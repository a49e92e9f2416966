package skipgraph

import "fmt"

// Skip Graph wire message IDs. msg_id 5 is reserved and intentionally
// left as a gap.
const (
	MsgNodeInfo                   = 1
	MsgSearch                     = 2
	MsgSearchResponse             = 3
	MsgSearchIntermediateResponse = 4
	MsgNeighbourRequest           = 6
	MsgNeighbourResponse          = 7
	MsgGetLink                    = 8
	MsgSetLink                    = 9
	MsgBuddy                      = 10
	MsgDelete                     = 11
	MsgNoNeighbour                = 12
	MsgFindNewNeighbour           = 13
	MsgFoundNewNeighbour          = 14
	MsgConfirmDelete              = 15
	MsgSetNeighbourNil            = 16
)

// Payload is any Skip Graph wire message body.
type Payload interface {
	MsgID() byte
	encode(w *writer)
}

// SearchPayload is a recursive routing request, forwarded hop by hop
// toward SearchKey.
type SearchPayload struct {
	Identifier        uint32
	ForwardIdentifier uint32
	Originator        SGNode
	SearchKey         uint32
	Level             uint32
	Hops              uint32
}

func (SearchPayload) MsgID() byte { return MsgSearch }
func (p SearchPayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.u32(p.ForwardIdentifier)
	writeNodeInfo(w, p.Originator)
	w.u32(p.SearchKey)
	w.u32(p.Level)
	w.u32(p.Hops)
}

func decodeSearchPayload(r *reader) (SearchPayload, error) {
	var p SearchPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.ForwardIdentifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Originator, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.SearchKey, err = r.u32(); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	if p.Hops, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// SearchResponsePayload is the final answer to a search: the node holding
// (or closest to) the key, sent straight back to the originator.
type SearchResponsePayload struct {
	Identifier uint32
	Response   SGNode
	Hops       uint32
}

func (SearchResponsePayload) MsgID() byte { return MsgSearchResponse }
func (p SearchResponsePayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Response)
	w.u32(p.Hops)
}

func decodeSearchResponsePayload(r *reader) (SearchResponsePayload, error) {
	var p SearchResponsePayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Response, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Hops, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// SearchIntermediateResponsePayload is sent back to the previous hop of a
// forwarded search so it can track liveness of the forward without waiting
// for the final response.
type SearchIntermediateResponsePayload struct {
	Identifier uint32
	Node       SGNode
}

func (SearchIntermediateResponsePayload) MsgID() byte { return MsgSearchIntermediateResponse }
func (p SearchIntermediateResponsePayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Node)
}

func decodeSearchIntermediateResponsePayload(r *reader) (SearchIntermediateResponsePayload, error) {
	var p SearchIntermediateResponsePayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Node, err = readNodeInfo(r); err != nil {
		return p, err
	}
	return p, nil
}

// NeighbourRequestPayload asks a peer for its immediate neighbor on a
// given side and level.
type NeighbourRequestPayload struct {
	Identifier uint32
	Side       bool // false = Left, true = Right
	Level      uint32
}

func (NeighbourRequestPayload) MsgID() byte { return MsgNeighbourRequest }
func (p NeighbourRequestPayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.boolean(p.Side)
	w.u32(p.Level)
}

func decodeNeighbourRequestPayload(r *reader) (NeighbourRequestPayload, error) {
	var p NeighbourRequestPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Side, err = r.boolean(); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// NeighbourResponsePayload answers a NeighbourRequestPayload.
type NeighbourResponsePayload struct {
	Identifier uint32
	Found      bool
	Neighbour  SGNode
}

func (NeighbourResponsePayload) MsgID() byte { return MsgNeighbourResponse }
func (p NeighbourResponsePayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.boolean(p.Found)
	writeNodeInfo(w, p.Neighbour)
}

func decodeNeighbourResponsePayload(r *reader) (NeighbourResponsePayload, error) {
	var p NeighbourResponsePayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Found, err = r.boolean(); err != nil {
		return p, err
	}
	if p.Neighbour, err = readNodeInfo(r); err != nil {
		return p, err
	}
	return p, nil
}

// GetLinkPayload asks a peer to set the originator as its neighbor on Side
// at Level; the recipient answers with a SetLinkPayload naming itself. The
// recipient always takes the link itself: the request is not forwarded.
type GetLinkPayload struct {
	Identifier uint32
	Originator SGNode
	Side       bool
	Level      uint32
}

func (GetLinkPayload) MsgID() byte { return MsgGetLink }
func (p GetLinkPayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Originator)
	w.boolean(p.Side)
	w.u32(p.Level)
}

func decodeGetLinkPayload(r *reader) (GetLinkPayload, error) {
	var p GetLinkPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Originator, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Side, err = r.boolean(); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// SetLinkPayload replies to GetLinkPayload/BuddyPayload with the new
// neighbor to link to (the empty node if none).
type SetLinkPayload struct {
	Identifier   uint32
	NewNeighbour SGNode
	Level        uint32
}

func (SetLinkPayload) MsgID() byte { return MsgSetLink }
func (p SetLinkPayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.NewNeighbour)
	w.u32(p.Level)
}

func decodeSetLinkPayload(r *reader) (SetLinkPayload, error) {
	var p SetLinkPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.NewNeighbour, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// BuddyPayload is the level-climbing buddy-chain request sent during join.
type BuddyPayload struct {
	Identifier uint32
	Originator SGNode
	Level      uint32
	Val        uint32
	Side       uint32 // 0 = Left, 1 = Right
}

func (BuddyPayload) MsgID() byte { return MsgBuddy }
func (p BuddyPayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Originator)
	w.u32(p.Level)
	w.u32(p.Val)
	w.u32(p.Side)
}

func decodeBuddyPayload(r *reader) (BuddyPayload, error) {
	var p BuddyPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Originator, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	if p.Val, err = r.u32(); err != nil {
		return p, err
	}
	if p.Side, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// DeletePayload begins removal of a node from a level during leave.
type DeletePayload struct {
	Identifier uint32
	Originator SGNode
	Level      uint32
}

func (DeletePayload) MsgID() byte { return MsgDelete }
func (p DeletePayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Originator)
	w.u32(p.Level)
}

func decodeDeletePayload(r *reader) (DeletePayload, error) {
	var p DeletePayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Originator, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// NoNeighbourPayload answers a FindNewNeighbourPayload: the leaving node
// has no neighbor on the requested side at this level, so the asker gets
// no replacement.
type NoNeighbourPayload struct {
	Identifier uint32
	Level      uint32
}

func (NoNeighbourPayload) MsgID() byte { return MsgNoNeighbour }
func (p NoNeighbourPayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.u32(p.Level)
}

func decodeNoNeighbourPayload(r *reader) (NoNeighbourPayload, error) {
	var p NoNeighbourPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// FindNewNeighbourPayload is sent by a Delete recipient to the leaving
// node, asking for the leaving node's neighbor on the far side at Level.
type FindNewNeighbourPayload struct {
	Identifier uint32
	Originator SGNode
	Level      uint32
}

func (FindNewNeighbourPayload) MsgID() byte { return MsgFindNewNeighbour }
func (p FindNewNeighbourPayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Originator)
	w.u32(p.Level)
}

func decodeFindNewNeighbourPayload(r *reader) (FindNewNeighbourPayload, error) {
	var p FindNewNeighbourPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Originator, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// FoundNewNeighbourPayload answers FindNewNeighbourPayload with the
// replacement neighbor.
type FoundNewNeighbourPayload struct {
	Identifier uint32
	Neighbour  SGNode
	Level      uint32
}

func (FoundNewNeighbourPayload) MsgID() byte { return MsgFoundNewNeighbour }
func (p FoundNewNeighbourPayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Neighbour)
	w.u32(p.Level)
}

func decodeFoundNewNeighbourPayload(r *reader) (FoundNewNeighbourPayload, error) {
	var p FoundNewNeighbourPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Neighbour, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// ConfirmDeletePayload confirms a Delete succeeded at the given level.
type ConfirmDeletePayload struct {
	Identifier uint32
	Level      uint32
}

func (ConfirmDeletePayload) MsgID() byte { return MsgConfirmDelete }
func (p ConfirmDeletePayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.u32(p.Level)
}

func decodeConfirmDeletePayload(r *reader) (ConfirmDeletePayload, error) {
	var p ConfirmDeletePayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// SetNeighbourNilPayload is sent during leave to a level's only neighbor:
// simply forget this node, no replacement exists to offer.
type SetNeighbourNilPayload struct {
	Identifier uint32
	Originator SGNode
	Level      uint32
}

func (SetNeighbourNilPayload) MsgID() byte { return MsgSetNeighbourNil }
func (p SetNeighbourNilPayload) encode(w *writer) {
	w.u32(p.Identifier)
	writeNodeInfo(w, p.Originator)
	w.u32(p.Level)
}

func decodeSetNeighbourNilPayload(r *reader) (SetNeighbourNilPayload, error) {
	var p SetNeighbourNilPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Originator, err = readNodeInfo(r); err != nil {
		return p, err
	}
	if p.Level, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// Encode serializes a payload into a complete wire message: one msg_id
// byte followed by the payload's fields in order.
func Encode(p Payload) []byte {
	w := &writer{buf: []byte{p.MsgID()}}
	p.encode(w)
	return w.bytes()
}

// Decode parses a complete wire message into its typed payload.
func Decode(data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("skipgraph: codec: empty message")
	}
	msgID := data[0]
	r := newReader(data[1:])
	switch msgID {
	case MsgSearch:
		return decodeSearchPayload(r)
	case MsgSearchResponse:
		return decodeSearchResponsePayload(r)
	case MsgSearchIntermediateResponse:
		return decodeSearchIntermediateResponsePayload(r)
	case MsgNeighbourRequest:
		return decodeNeighbourRequestPayload(r)
	case MsgNeighbourResponse:
		return decodeNeighbourResponsePayload(r)
	case MsgGetLink:
		return decodeGetLinkPayload(r)
	case MsgSetLink:
		return decodeSetLinkPayload(r)
	case MsgBuddy:
		return decodeBuddyPayload(r)
	case MsgDelete:
		return decodeDeletePayload(r)
	case MsgNoNeighbour:
		return decodeNoNeighbourPayload(r)
	case MsgFindNewNeighbour:
		return decodeFindNewNeighbourPayload(r)
	case MsgFoundNewNeighbour:
		return decodeFoundNewNeighbourPayload(r)
	case MsgConfirmDelete:
		return decodeConfirmDeletePayload(r)
	case MsgSetNeighbourNil:
		return decodeSetNeighbourNilPayload(r)
	default:
		return nil, fmt.Errorf("skipgraph: codec: unknown msg_id %d", msgID)
	}
}

// sideToDirection maps the wire bool encoding (false=Left, true=Right) to
// Direction.
func sideToDirection(side bool) Direction {
	if side {
		return Right
	}
	return Left
}

func directionToSide(d Direction) bool {
	return d == Right
}
