package dkg

import "fmt"

// Message IDs for the DKG wire protocol. The Skip Graph layer occupies
// msg_ids 1-16 in its own namespace; see internal/skipgraph/wire.go.
const (
	MsgStorageRequest  = 21
	MsgStorageResponse = 22
	MsgTripletsRequest = 23
)

// Payload is any DKG small-message wire body (sent over the plain
// datagram transport; triplet batches travel separately over the blob
// transport, see codec_triplets.go).
type Payload interface {
	MsgID() byte
	encode(w *writer)
}

// StorageRequestPayload asks content_identifier's target node to store
// triplets under key.
type StorageRequestPayload struct {
	Identifier        uint32
	ContentIdentifier []byte
	Key               uint32
}

func (StorageRequestPayload) MsgID() byte { return MsgStorageRequest }
func (p StorageRequestPayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.varlenH(p.ContentIdentifier)
	w.u32(p.Key)
}

func decodeStorageRequestPayload(r *reader) (StorageRequestPayload, error) {
	var p StorageRequestPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.ContentIdentifier, err = r.varlenH(); err != nil {
		return p, err
	}
	if p.Key, err = r.u32(); err != nil {
		return p, err
	}
	return p, nil
}

// StorageResponsePayload answers a StorageRequestPayload: whether the
// recipient accepted responsibility for the key.
type StorageResponsePayload struct {
	Identifier uint32
	Accepted   bool
}

func (StorageResponsePayload) MsgID() byte { return MsgStorageResponse }
func (p StorageResponsePayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.boolean(p.Accepted)
}

func decodeStorageResponsePayload(r *reader) (StorageResponsePayload, error) {
	var p StorageResponsePayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Accepted, err = r.boolean(); err != nil {
		return p, err
	}
	return p, nil
}

// TripletsRequestPayload asks for the triplets stored locally around
// content.
type TripletsRequestPayload struct {
	Identifier uint32
	Content    []byte
}

func (TripletsRequestPayload) MsgID() byte { return MsgTripletsRequest }
func (p TripletsRequestPayload) encode(w *writer) {
	w.u32(p.Identifier)
	w.varlenH(p.Content)
}

func decodeTripletsRequestPayload(r *reader) (TripletsRequestPayload, error) {
	var p TripletsRequestPayload
	var err error
	if p.Identifier, err = r.u32(); err != nil {
		return p, err
	}
	if p.Content, err = r.varlenH(); err != nil {
		return p, err
	}
	return p, nil
}

// Encode serializes a DKG payload: one msg_id byte followed by its fields.
func Encode(p Payload) []byte {
	w := &writer{buf: []byte{p.MsgID()}}
	p.encode(w)
	return w.bytes()
}

// Decode parses a complete DKG wire message into its typed payload.
func Decode(data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("dkg: codec: empty message")
	}
	msgID := data[0]
	r := newReader(data[1:])
	switch msgID {
	case MsgStorageRequest:
		return decodeStorageRequestPayload(r)
	case MsgStorageResponse:
		return decodeStorageResponsePayload(r)
	case MsgTripletsRequest:
		return decodeTripletsRequestPayload(r)
	default:
		return nil, fmt.Errorf("dkg: codec: unknown msg_id %d", msgID)
	}
}
