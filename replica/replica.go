package replica

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderbookmesh/core/book"
)

// Stats is a read-only summary of a replica's activity, cheap to compute
// from a handful of counters rather than by reaching into book internals.
type Stats struct {
	LocalOrders      int64
	RemoteOrders     int64
	BroadcastsSent   int64
	BroadcastsFailed int64
}

// Replica wraps an *book.OrderBook with peer classification: it assigns
// provenance to locally-submitted orders, hands them to the transport for
// broadcast after local application, and applies inbound orders from
// peers while suppressing loopback of its own broadcasts.
type Replica struct {
	PeerID string

	book      *book.OrderBook
	transport Transport
	log       *zap.Logger

	localOrders      int64
	remoteOrders     int64
	broadcastsSent   int64
	broadcastsFailed int64
}

// New creates a replica for book ob, identified by peerID, broadcasting
// and receiving over transport. If log is nil, a no-op logger is used.
func New(peerID string, ob *book.OrderBook, transport Transport, log *zap.Logger) *Replica {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Replica{
		PeerID:    peerID,
		book:      ob,
		transport: transport,
		log:       log.With(zap.String("peer_id", peerID), zap.String("pair", ob.Pair)),
	}
	transport.RegisterHandler(r.onRequest)
	return r
}

// Book returns the replica's underlying order book.
func (r *Replica) Book() *book.OrderBook {
	return r.book
}

// Stats returns a snapshot of the replica's activity counters.
func (r *Replica) Stats() Stats {
	return Stats{
		LocalOrders:      atomic.LoadInt64(&r.localOrders),
		RemoteOrders:     atomic.LoadInt64(&r.remoteOrders),
		BroadcastsSent:   atomic.LoadInt64(&r.broadcastsSent),
		BroadcastsFailed: atomic.LoadInt64(&r.broadcastsFailed),
	}
}

// Submit assigns peer_id and, if absent, a fresh id to a locally-
// originated order, applies it to the book, and broadcasts the original
// (pre-matching) payload to the rest of the network. Broadcast failure is
// logged and swallowed: the order is not rolled back, since consistency
// across replicas is best-effort by design.
func (r *Replica) Submit(ctx context.Context, order *book.Order) (*book.AddResult, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.PeerID = r.PeerID

	// Capture the pre-matching payload before AddOrder mutates Quantity
	// and Status in place.
	broadcastCopy := order.Clone()

	result, err := r.book.AddOrder(order)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&r.localOrders, 1)

	r.broadcast(ctx, Payload{Type: NewOrder, Order: broadcastCopy})

	return result, nil
}

func (r *Replica) broadcast(ctx context.Context, payload Payload) {
	resultCh, err := r.transport.Broadcast(ctx, payload)
	if err != nil {
		atomic.AddInt64(&r.broadcastsFailed, 1)
		r.log.Warn("broadcast failed", zap.Error(err))
		return
	}
	atomic.AddInt64(&r.broadcastsSent, 1)

	go func() {
		results, ok := <-resultCh
		if !ok {
			return
		}
		for _, res := range results {
			if res.NoPeers {
				r.log.Debug("broadcast delivered to no peers")
				continue
			}
			if !res.OK {
				atomic.AddInt64(&r.broadcastsFailed, 1)
				r.log.Warn("partial broadcast delivery", zap.String("peer", res.PeerID), zap.Error(res.Err))
			}
		}
	}()
}

// onRequest implements the Transport Port's inbound on_request contract:
// NEW_ORDER payloads are applied (after loopback suppression);
// SNAPSHOT_REQUEST payloads return the current snapshot; unknown types
// return nil with no error.
func (r *Replica) onRequest(p Payload) (any, error) {
	switch p.Type {
	case NewOrder:
		result, err := r.handleRemoteOrder(p.Order)
		if result == nil {
			// Return an untyped nil so a dropped or rejected order reads as
			// nil to the caller, not as a nil *book.AddResult inside any.
			return nil, err
		}
		return result, err
	case SnapshotRequest:
		snap := r.book.GetSnapshot()
		return &snap, nil
	default:
		return nil, nil
	}
}

func (r *Replica) handleRemoteOrder(order *book.Order) (*book.AddResult, error) {
	if order == nil {
		return nil, nil
	}
	if order.PeerID == r.PeerID {
		// Loopback: this is our own broadcast echoing back. Drop it.
		return nil, nil
	}

	// The book takes ownership of what it is given and mutates it, while
	// the transport may hand the same payload to several replicas, so the
	// book gets its own copy.
	result, err := r.book.ApplyRemoteOrder(order.Clone())
	if err != nil {
		// A remote peer sent something that fails local validation; this
		// is not our caller's fault, so it is logged rather than
		// propagated across the transport boundary (spec: all errors are
		// local).
		r.log.Warn("rejected remote order", zap.String("order_id", order.ID), zap.Error(err))
		return nil, nil
	}
	atomic.AddInt64(&r.remoteOrders, 1)
	return result, nil
}

// Snapshot requests the current book snapshot, for local callers (e.g.
// the REST adapter) that want the same view onRequest would hand a peer.
func (r *Replica) Snapshot() book.Snapshot {
	return r.book.GetSnapshot()
}

// Cancel cancels a locally-resting order by id. Cancellation is not
// broadcast: the spec treats cancellation of in-flight remote orders as
// out of scope, so cancellation only ever affects this replica's own
// book.
func (r *Replica) Cancel(id string) *book.Order {
	return r.book.CancelOrder(id)
}
