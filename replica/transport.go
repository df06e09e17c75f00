// Package replica wraps a book.OrderBook with the classification of
// orders as locally-originated vs remote, dispatching outbound broadcasts
// after local application and applying inbound orders idempotently with
// respect to origin.
package replica

import (
	"context"

	"github.com/orderbookmesh/core/book"
)

// PayloadType discriminates the payloads a Transport carries.
type PayloadType string

const (
	// NewOrder carries an order accepted by a peer for broadcast to the
	// rest of the network.
	NewOrder PayloadType = "NEW_ORDER"
	// SnapshotRequest asks a peer to return its current book snapshot.
	SnapshotRequest PayloadType = "SNAPSHOT_REQUEST"
)

// Payload is the wire-level unit exchanged between replicas. Order carries
// the order of a NewOrder payload; a SnapshotRequest payload carries no
// order.
type Payload struct {
	Type  PayloadType
	Order *book.Order
}

// PeerResult is one peer's outcome for a single broadcast. NoPeers is a
// distinguished non-error condition: implementers must tolerate an empty
// network rather than treating it as a failure.
type PeerResult struct {
	PeerID  string
	OK      bool
	NoPeers bool
	Err     error
}

// Transport is the abstract broadcast/receive channel the replica adapter
// is built against. It is implemented by the DHT/overlay substrate in
// production and by the in-memory stub (package transport) for local
// wiring and tests; the core never implements it itself.
type Transport interface {
	// Broadcast sends payload to every known peer and returns a channel
	// that will receive the per-peer results once delivery completes (or
	// times out, at the transport's discretion). Broadcast itself must
	// not block past payload handoff.
	Broadcast(ctx context.Context, payload Payload) (<-chan []PeerResult, error)

	// RegisterHandler installs the function invoked for every inbound
	// payload this transport instance receives, mirroring the Transport
	// Port's on_request contract.
	RegisterHandler(handler func(Payload) (any, error))
}
