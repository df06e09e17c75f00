// Package transport provides an in-memory implementation of
// replica.Transport, standing in for the DHT/overlay broadcast substrate
// (out of scope for this module) during local wiring, demos and tests. It
// fans broadcasts out to every other registered peer over buffered Go
// channels, the same "goroutine drains a channel and fans out" shape the
// teacher repo used for its own internal trade/fill streaming, repurposed
// here to carry payloads between replicas instead of between an engine and
// its subscribers.
package transport

import (
	"context"
	"sync"

	"github.com/orderbookmesh/core/replica"
)

// Registry is a shared, in-process rendezvous point for a set of Hub
// instances. Production code has exactly one; tests create one Registry
// per simulated network.
type Registry struct {
	mu   sync.Mutex
	hubs map[string]*Hub
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hubs: make(map[string]*Hub)}
}

func (reg *Registry) join(h *Hub) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.hubs[h.peerID] = h
}

func (reg *Registry) leave(peerID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.hubs, peerID)
}

func (reg *Registry) others(peerID string) []*Hub {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Hub, 0, len(reg.hubs))
	for id, h := range reg.hubs {
		if id != peerID {
			out = append(out, h)
		}
	}
	return out
}

// Hub is one peer's transport endpoint within a Registry. It implements
// replica.Transport.
type Hub struct {
	peerID   string
	registry *Registry
	handler  func(replica.Payload) (any, error)
	inbox    chan inboxEntry
	done     chan struct{}
}

type inboxEntry struct {
	payload replica.Payload
	reply   chan replica.PeerResult
}

// NewHub joins peerID to registry and starts its delivery loop. Call
// Close to leave the registry and stop the loop.
func NewHub(peerID string, registry *Registry) *Hub {
	h := &Hub{
		peerID:   peerID,
		registry: registry,
		inbox:    make(chan inboxEntry, 256),
		done:     make(chan struct{}),
	}
	registry.join(h)
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case entry := <-h.inbox:
			h.deliver(entry)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) deliver(entry inboxEntry) {
	result := replica.PeerResult{PeerID: h.peerID}
	if h.handler == nil {
		result.OK = true
		entry.reply <- result
		return
	}
	if _, err := h.handler(entry.payload); err != nil {
		result.Err = err
	} else {
		result.OK = true
	}
	entry.reply <- result
}

// RegisterHandler implements replica.Transport.
func (h *Hub) RegisterHandler(handler func(replica.Payload) (any, error)) {
	h.handler = handler
}

// Broadcast implements replica.Transport. It fans payload out to every
// other hub in the registry and returns a channel carrying their
// per-peer results. If the registry has no other members, a single
// NoPeers result is returned rather than treating the empty network as
// an error.
func (h *Hub) Broadcast(ctx context.Context, payload replica.Payload) (<-chan []replica.PeerResult, error) {
	peers := h.registry.others(h.peerID)
	out := make(chan []replica.PeerResult, 1)

	if len(peers) == 0 {
		out <- []replica.PeerResult{{PeerID: h.peerID, NoPeers: true}}
		close(out)
		return out, nil
	}

	go func() {
		defer close(out)
		replies := make(chan replica.PeerResult, len(peers))
		for _, peer := range peers {
			peer := peer
			reply := make(chan replica.PeerResult, 1)
			select {
			case peer.inbox <- inboxEntry{payload: payload, reply: reply}:
			case <-ctx.Done():
				replies <- replica.PeerResult{PeerID: peer.peerID, Err: ctx.Err()}
				continue
			}
			go func() {
				select {
				case res := <-reply:
					replies <- res
				case <-ctx.Done():
					replies <- replica.PeerResult{PeerID: peer.peerID, Err: ctx.Err()}
				}
			}()
		}

		results := make([]replica.PeerResult, 0, len(peers))
		for range peers {
			results = append(results, <-replies)
		}
		out <- results
	}()

	return out, nil
}

// Close leaves the registry and stops the delivery loop.
func (h *Hub) Close() {
	h.registry.leave(h.peerID)
	close(h.done)
}
