package replica_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbookmesh/core/book"
	"github.com/orderbookmesh/core/replica"
	"github.com/orderbookmesh/core/transport"
)

func newReplica(t *testing.T, peerID string, reg *transport.Registry) *replica.Replica {
	t.Helper()
	ob := book.NewOrderBook(book.Config{Pair: "BTC-USDT"})
	hub := transport.NewHub(peerID, reg)
	t.Cleanup(hub.Close)
	return replica.New(peerID, ob, hub, nil)
}

func TestSubmitAssignsPeerIDAndID(t *testing.T) {
	reg := transport.NewRegistry()
	r := newReplica(t, "peer-a", reg)

	order := &book.Order{
		Side:     book.Buy,
		Type:     book.Limit,
		Price:    decimal.NewFromFloat(100),
		Quantity: decimal.NewFromFloat(1),
	}

	_, err := r.Submit(context.Background(), order)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "peer-a", order.PeerID)
}

func TestRemoteOrderAppliesAcrossReplicas(t *testing.T) {
	reg := transport.NewRegistry()
	a := newReplica(t, "peer-a", reg)
	b := newReplica(t, "peer-b", reg)

	_, err := a.Submit(context.Background(), &book.Order{
		ID:       "sell-1",
		Side:     book.Sell,
		Type:     book.Limit,
		Price:    decimal.NewFromFloat(100),
		Quantity: decimal.NewFromFloat(1),
	})
	require.NoError(t, err)

	waitForCondition(t, func() bool {
		return b.Book().BestAsk() != nil
	})

	ask := b.Book().BestAsk()
	require.NotNil(t, ask)
	assert.Equal(t, "sell-1", ask.ID)
	assert.Equal(t, "peer-a", ask.PeerID)
}

func TestSnapshotRequestViaTransport(t *testing.T) {
	reg := transport.NewRegistry()
	a := newReplica(t, "peer-a", reg)

	_, err := a.Submit(context.Background(), &book.Order{
		ID:       "b1",
		Side:     book.Buy,
		Type:     book.Limit,
		Price:    decimal.NewFromFloat(100),
		Quantity: decimal.NewFromFloat(1),
	})
	require.NoError(t, err)

	snap := a.Snapshot()
	assert.Equal(t, "BTC-USDT", snap.Pair)
	assert.Len(t, snap.Bids, 1)
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
