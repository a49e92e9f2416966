package skipgraph

import (
	"encoding/binary"
	"fmt"
	"net"
)

// writer builds a wire message body field by field: big-endian fixed-width
// integers, a single byte for booleans, a 2-byte big-endian length prefix
// followed by raw bytes for variable-length byte strings (varlenH), and 4
// bytes of IPv4 address followed by a 2-byte big-endian port.
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

func (w *writer) ipAddress(addr net.UDPAddr) {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	w.buf = append(w.buf, ip4...)
	var pb [2]byte
	binary.BigEndian.PutUint16(pb[:], uint16(addr.Port))
	w.buf = append(w.buf, pb[:]...)
}

func (w *writer) bytes() []byte {
	return w.buf
}

// reader consumes a wire message body field by field, the inverse of
// writer.
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("skipgraph: codec: short read for uint32 (have %d bytes)", r.remaining())
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	if r.remaining() < 1 {
		return false, fmt.Errorf("skipgraph: codec: short read for bool")
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *reader) varlenH() ([]byte, error) {
	if r.remaining() < 2 {
		return nil, fmt.Errorf("skipgraph: codec: short read for varlenH length")
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	if r.remaining() < n {
		return nil, fmt.Errorf("skipgraph: codec: short read for varlenH body (want %d, have %d)", n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) ipAddress() (net.UDPAddr, error) {
	if r.remaining() < 6 {
		return net.UDPAddr{}, fmt.Errorf("skipgraph: codec: short read for ip_address")
	}
	ip := make(net.IP, 4)
	copy(ip, r.buf[r.pos:r.pos+4])
	r.pos += 4
	port := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return net.UDPAddr{IP: ip, Port: int(port)}, nil
}

func writeNodeInfo(w *writer, n SGNode) {
	w.ipAddress(n.Peer.Address)
	w.varlenH(n.Peer.PublicKey)
	w.u32(n.Key)
	w.varlenH(n.MV.ToBytes())
}

func readNodeInfo(r *reader) (SGNode, error) {
	addr, err := r.ipAddress()
	if err != nil {
		return SGNode{}, err
	}
	pk, err := r.varlenH()
	if err != nil {
		return SGNode{}, err
	}
	key, err := r.u32()
	if err != nil {
		return SGNode{}, err
	}
	mvBytes, err := r.varlenH()
	if err != nil {
		return SGNode{}, err
	}
	return SGNode{
		Peer: Peer{Address: addr, PublicKey: pk},
		Key:  key,
		MV:   MembershipVectorFromBytes(mvBytes),
	}, nil
}
