// Package book implements the matching engine and its replica: the priority
// heaps used for bids and asks, the order book, and the matching state
// machine that drives trade generation and the event hooks that downstream
// components (the replica adapter, the SSE adapter) observe.
package book

import "github.com/shopspring/decimal"

// Side represents the direction of a trading order (buy or sell).
type Side string

const (
	// Buy represents a buy order (bid) - an order to purchase an asset.
	Buy Side = "buy"
	// Sell represents a sell order (ask) - an order to sell an asset.
	Sell Side = "sell"
)

// OrderType distinguishes resting limit orders from marketable orders that
// never rest.
type OrderType string

const (
	// Limit orders rest in a heap when unfilled.
	Limit OrderType = "limit"
	// Market orders sweep the opposing book and discard any remainder.
	Market OrderType = "market"
)

// Status is an order's lifecycle state.
type Status string

const (
	// Open orders carry their full original quantity and have not traded.
	// As the final status of AddOrder it means the order now rests in a
	// heap.
	Open Status = "OPEN"
	// PartiallyFilled orders have traded some but not all of their quantity.
	PartiallyFilled Status = "PARTIALLY_FILLED"
	// Filled orders have no quantity left to trade.
	Filled Status = "FILLED"
	// Cancelled orders were removed before being fully filled.
	Cancelled Status = "CANCELLED"
)

// Order is the canonical unit submitted to the book. Price is the zero
// value (and ignored) for Market orders. Quantity is mutated in place by
// the matching engine as fills accrue; callers must treat a submitted
// Order as owned by the book from that point on.
type Order struct {
	ID        string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	PeerID    string
	Timestamp int64
	Status    Status
}

// HasPrice reports whether the order carries a price, which is true for
// every Limit order and false for every Market order.
func (o *Order) HasPrice() bool {
	return o.Type == Limit
}

// Clone returns a deep copy of the order, safe to hand to callers outside
// the book without aliasing heap-owned state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// Trade is an immutable record produced by a single fill. Price is always
// the resting order's price, never the aggressor's.
type Trade struct {
	ID          string
	Pair        string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	BuyOrderID  string
	SellOrderID string
	BuyPeerID   string
	SellPeerID  string
	Timestamp   int64
}

// Snapshot is a serializable, self-contained representation of a book's
// resting state, sufficient to rebuild an equivalent book on another node.
// Heap array order is not significant; LoadSnapshot rebuilds by insertion.
type Snapshot struct {
	Pair      string
	Timestamp int64
	Bids      []*Order
	Asks      []*Order
	BestBid   *Order
	BestAsk   *Order
	Spread    *decimal.Decimal
}

// AddResult is returned by AddOrder and ApplyRemoteOrder. Remainder is
// non-nil whenever positive quantity is left over after matching: for a
// Limit order that is the order now resting in the heap; for a Market
// order (which never rests) it is the discarded leftover, reported so the
// caller can see how much went unfilled.
type AddResult struct {
	Trades    []Trade
	Remainder *Order
	Status    Status
}

// Hooks is the fixed, enumerated set of observer callbacks invoked
// synchronously on the caller's goroutine, in the order specified by the
// matching state machine: trades are appended to the trade log before any
// hook fires; OrderRemoved fires for orders consumed during matching (or
// explicitly cancelled); the Trade hook fires once per trade in
// generation order; and OrderAdded fires last, only if a limit remainder
// rests. The book releases its internal lock before invoking any hook, so
// a hook is always free to call back into the book's own query methods
// (GetTrades, BestBid, ...) without deadlocking. Any of the three fields
// may be nil.
type Hooks struct {
	OnTrade        func(Trade)
	OnOrderAdded   func(*Order)
	OnOrderRemoved func(*Order)
}
