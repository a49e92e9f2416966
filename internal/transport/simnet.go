package transport

import (
	"fmt"
	"sync"
)

// mailbox is the single-consumer queue behind one registered address: every
// inbound delivery, whatever kind, becomes a closure pushed onto inbox and
// drained by exactly one goroutine, so a node's handlers never run
// concurrently with each other.
type mailbox struct {
	inbox chan func()
	done  chan struct{}

	mu          sync.Mutex
	handler     Handler
	blobHandler BlobHandler
}

func newMailbox() *mailbox {
	m := &mailbox{
		inbox: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) run() {
	for {
		select {
		case fn := <-m.inbox:
			fn()
		case <-m.done:
			return
		}
	}
}

func (m *mailbox) close() {
	close(m.done)
}

// SimNetwork is an in-memory Transport and BlobTransport for tests, demos,
// and the single-process command-line tools. There is no latency, loss, or
// reordering model beyond what a caller injects explicitly (e.g. by not
// registering an address, to simulate an offline peer).
type SimNetwork struct {
	mu    sync.RWMutex
	nodes map[Addr]*mailbox
}

// NewSimNetwork returns an empty simulated network.
func NewSimNetwork() *SimNetwork {
	return &SimNetwork{nodes: make(map[Addr]*mailbox)}
}

func (n *SimNetwork) box(addr Addr, create bool) *mailbox {
	n.mu.RLock()
	m, ok := n.nodes[addr]
	n.mu.RUnlock()
	if ok || !create {
		return m
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if m, ok := n.nodes[addr]; ok {
		return m
	}
	m = newMailbox()
	n.nodes[addr] = m
	return m
}

// Register installs the datagram handler for addr, creating its mailbox if
// this is the first registration for that address.
func (n *SimNetwork) Register(addr Addr, handler Handler) error {
	m := n.box(addr, true)
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	return nil
}

// RegisterBlobHandler installs the blob handler for addr.
func (n *SimNetwork) RegisterBlobHandler(addr Addr, handler BlobHandler) error {
	m := n.box(addr, true)
	m.mu.Lock()
	m.blobHandler = handler
	m.mu.Unlock()
	return nil
}

// Unregister removes addr entirely: its datagram handler, its blob
// handler, and its mailbox goroutine. Subsequent sends to addr fail,
// simulating the node going offline or leaving.
func (n *SimNetwork) Unregister(addr Addr) {
	n.mu.Lock()
	m, ok := n.nodes[addr]
	if ok {
		delete(n.nodes, addr)
	}
	n.mu.Unlock()
	if ok {
		m.close()
	}
}

// UnregisterBlobHandler removes only addr's blob handler, leaving its
// datagram handler (if any) registered.
func (n *SimNetwork) UnregisterBlobHandler(addr Addr) {
	m := n.box(addr, false)
	if m == nil {
		return
	}
	m.mu.Lock()
	m.blobHandler = nil
	m.mu.Unlock()
}

// Send enqueues data for delivery to to's datagram handler.
func (n *SimNetwork) Send(from, to Addr, data []byte) error {
	m := n.box(to, false)
	if m == nil {
		return fmt.Errorf("transport: no such address %q", to)
	}
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return fmt.Errorf("transport: %q has no datagram handler registered", to)
	}
	m.inbox <- func() { h(from, data) }
	return nil
}

// SendBlob enqueues info and blob for delivery to to's blob handler.
func (n *SimNetwork) SendBlob(from, to Addr, info []byte, blob []byte) error {
	m := n.box(to, false)
	if m == nil {
		return fmt.Errorf("transport: no such address %q", to)
	}
	m.mu.Lock()
	h := m.blobHandler
	m.mu.Unlock()
	if h == nil {
		return fmt.Errorf("transport: %q has no blob handler registered", to)
	}
	m.inbox <- func() { h(from, info, blob) }
	return nil
}

var (
	_ Transport     = (*SimNetwork)(nil)
	_ BlobTransport = (*SimNetwork)(nil)
)
