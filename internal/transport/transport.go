// Package transport defines the collaborator-facing network interfaces the
// overlay depends on, and a single concrete implementation: an in-memory
// simulator used by tests and the single-process demo command. Real peer
// discovery, NAT traversal, and the introduction handshake are external
// collaborators; only the interface boundary and a simulator that
// exercises it live here.
package transport

// Addr identifies a node's mailbox on the network. In this simulator it is
// simply an opaque string key; a real transport would use a dial-able
// network address instead.
type Addr string

// Handler processes one inbound datagram-style message. It is always
// invoked on the receiving node's own dispatch goroutine, never
// concurrently with that node's other handler invocations or timers —
// this is what lets node.go avoid locking its own state (see the actor
// loop in internal/skipgraph and internal/dkg's Node types).
type Handler func(from Addr, data []byte)

// BlobHandler processes one inbound large-binary transfer alongside its
// JSON info header.
type BlobHandler func(from Addr, info []byte, blob []byte)

// Transport sends small, fixed-layout wire messages between registered
// local endpoints. This is the datagram channel skip graph messages travel
// over.
type Transport interface {
	// Register installs the handler invoked for messages addressed to
	// addr. Only one handler may be registered per address at a time.
	Register(addr Addr, handler Handler) error
	// Unregister removes addr's handler; subsequent sends to it fail.
	Unregister(addr Addr)
	// Send delivers data to to's handler, asynchronously with respect to
	// the caller. It returns an error only for delivery setup failures
	// (e.g. an unknown destination), not for application-level rejection.
	Send(from, to Addr, data []byte) error
}

// BlobTransport sends larger binary payloads out of band from the regular
// datagram channel, used by DKG storage and triplet-batch transfers.
type BlobTransport interface {
	// RegisterBlobHandler installs the handler invoked for blobs
	// addressed to addr.
	RegisterBlobHandler(addr Addr, handler BlobHandler) error
	// UnregisterBlobHandler removes addr's blob handler.
	UnregisterBlobHandler(addr Addr)
	// SendBlob delivers info and blob to to's blob handler.
	SendBlob(from, to Addr, info []byte, blob []byte) error
}
