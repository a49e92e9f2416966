package dkg

import (
	"encoding/binary"
	"fmt"
)

// writer/reader mirror internal/skipgraph's codec helpers field for field
// (big-endian u32, 1-byte bool, 2-byte-length-prefixed byte strings): the
// DKG layer is logically a separate wire protocol from the Skip Graph one,
// each with its own msg_id space, so it carries its own small codec rather
// than reaching into skipgraph's unexported types.
type writer struct {
	buf []byte
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) boolean(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) varlenH(b []byte) {
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(b)))
	w.buf = append(w.buf, lb[:]...)
	w.buf = append(w.buf, b...)
}

func (w *writer) bytes() []byte { return w.buf }

type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("dkg: codec: short read for uint32 (have %d bytes)", r.remaining())
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	if r.remaining() < 1 {
		return false, fmt.Errorf("dkg: codec: short read for bool")
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *reader) varlenH() ([]byte, error) {
	if r.remaining() < 2 {
		return nil, fmt.Errorf("dkg: codec: short read for varlenH length")
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	if r.remaining() < n {
		return nil, fmt.Errorf("dkg: codec: short read for varlenH body (want %d, have %d)", n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}
