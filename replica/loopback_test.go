package replica

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/orderbookmesh/core/book"
)

// fakeTransport is a minimal Transport used to white-box test onRequest
// without needing a real Hub.
type fakeTransport struct {
	handler func(Payload) (any, error)
}

func (f *fakeTransport) Broadcast(ctx context.Context, payload Payload) (<-chan []PeerResult, error) {
	ch := make(chan []PeerResult, 1)
	ch <- []PeerResult{{NoPeers: true}}
	close(ch)
	return ch, nil
}

func (f *fakeTransport) RegisterHandler(handler func(Payload) (any, error)) {
	f.handler = handler
}

func TestOnRequestDropsLoopback(t *testing.T) {
	r := New("peer-a", book.NewOrderBook(book.Config{Pair: "BTC-USDT"}), &fakeTransport{}, nil)

	result, err := r.onRequest(Payload{
		Type: NewOrder,
		Order: &book.Order{
			ID:       "self-echo",
			Side:     book.Buy,
			Type:     book.Limit,
			Price:    decimal.NewFromFloat(1),
			Quantity: decimal.NewFromFloat(1),
			PeerID:   "peer-a",
		},
	})

	if err != nil || result != nil {
		t.Fatalf("expected loopback to be silently dropped, got result=%v err=%v", result, err)
	}
	if r.Book().BestBid() != nil {
		t.Fatal("loopback order must not be applied to the book")
	}
}

func TestOnRequestAppliesRemoteOrder(t *testing.T) {
	r := New("peer-a", book.NewOrderBook(book.Config{Pair: "BTC-USDT"}), &fakeTransport{}, nil)

	result, err := r.onRequest(Payload{
		Type: NewOrder,
		Order: &book.Order{
			ID:       "remote-1",
			Side:     book.Buy,
			Type:     book.Limit,
			Price:    decimal.NewFromFloat(1),
			Quantity: decimal.NewFromFloat(1),
			PeerID:   "peer-b",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result for a remote order")
	}
	if r.Book().BestBid() == nil {
		t.Fatal("expected remote order to be applied")
	}
}

func TestOnRequestUnknownPayloadType(t *testing.T) {
	r := New("peer-a", book.NewOrderBook(book.Config{Pair: "BTC-USDT"}), &fakeTransport{}, nil)

	result, err := r.onRequest(Payload{Type: "WAT"})
	if err != nil || result != nil {
		t.Fatalf("expected nil, nil for unknown payload type, got %v, %v", result, err)
	}
}

func TestOnRequestSnapshot(t *testing.T) {
	r := New("peer-a", book.NewOrderBook(book.Config{Pair: "BTC-USDT"}), &fakeTransport{}, nil)

	result, err := r.onRequest(Payload{Type: SnapshotRequest})
	if err != nil {
		t.Fatal(err)
	}
	snap, ok := result.(*book.Snapshot)
	if !ok {
		t.Fatalf("expected *book.Snapshot, got %T", result)
	}
	if snap.Pair != "BTC-USDT" {
		t.Fatalf("expected pair BTC-USDT, got %s", snap.Pair)
	}
}
