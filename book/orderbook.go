package book

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultPricePrecision    = 2
	defaultQuantityPrecision = 8
)

// Config configures a new OrderBook. Zero values for the precision fields
// fall back to the documented defaults (2 and 8 respectively).
type Config struct {
	Pair              string
	PricePrecision    int32
	QuantityPrecision int32
	Hooks             Hooks
}

// OrderBook owns one bid heap, one ask heap, an append-only trade log and
// a set of event hooks for a single trading pair. All public methods run
// to completion synchronously; the mutex only arbitrates which caller's
// call runs next when multiple goroutines (HTTP handlers, the transport
// stub) reach the book concurrently.
type OrderBook struct {
	Pair              string
	pricePrecision    int32
	quantityPrecision int32

	mu           sync.Mutex
	bids         *bidHeap
	asks         *askHeap
	trades       []Trade
	hooks        Hooks
	tradeCounter int64
}

// NewOrderBook creates an empty order book for pair, ready to accept
// orders immediately.
func NewOrderBook(cfg Config) *OrderBook {
	pricePrecision := cfg.PricePrecision
	if pricePrecision == 0 {
		pricePrecision = defaultPricePrecision
	}
	quantityPrecision := cfg.QuantityPrecision
	if quantityPrecision == 0 {
		quantityPrecision = defaultQuantityPrecision
	}

	b := &bidHeap{}
	a := &askHeap{}
	heap.Init(b)
	heap.Init(a)

	return &OrderBook{
		Pair:              cfg.Pair,
		pricePrecision:    pricePrecision,
		quantityPrecision: quantityPrecision,
		bids:              b,
		asks:              a,
		hooks:             cfg.Hooks,
	}
}

// SetHooks replaces the book's event hooks. It exists so adapters
// constructed after the book (the REST/SSE server, in particular) can
// wire observers without the book needing to know about them up front.
func (ob *OrderBook) SetHooks(hooks Hooks) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.hooks = hooks
}

// pendingHooks is the set of hook invocations produced by a call that
// mutated the book, captured while ob.mu is held so they can be fired
// from AddOrder/ApplyRemoteOrder only after the lock is released
// (CancelOrder does the same with its own captured copy of ob.hooks). Firing hooks while still holding ob.mu would self-deadlock
// the very first time a hook calls back into a query method (GetTrades,
// BestBid, ...), since sync.Mutex is not reentrant; releasing the lock
// first, with the hook set and a private copy of ob.hooks already
// captured, removes that risk entirely while still giving hooks a
// fully-updated book to read.
type pendingHooks struct {
	hooks   Hooks
	removed []*Order
	trades  []Trade
	added   *Order
}

// fire runs every captured hook invocation in the order the matching
// state machine and addOrderLocked produced them: OrderRemoved for each
// order consumed during matching, then Trade per trade in generation order, then OrderAdded last if a
// limit remainder now rests.
func (p pendingHooks) fire() {
	if p.hooks.OnOrderRemoved != nil {
		for _, o := range p.removed {
			p.hooks.OnOrderRemoved(o)
		}
	}
	if p.hooks.OnTrade != nil {
		for _, t := range p.trades {
			p.hooks.OnTrade(t)
		}
	}
	if p.added != nil && p.hooks.OnOrderAdded != nil {
		p.hooks.OnOrderAdded(p.added)
	}
}

// AddOrder validates, normalizes and matches order against the book,
// inserting any limit remainder and firing hooks per the ordering
// contract documented on Hooks. The book is left unmutated if validation
// fails. Hooks run after ob.mu has been released, so a hook is free to
// call back into any of the book's own query methods.
func (ob *OrderBook) AddOrder(order *Order) (*AddResult, error) {
	ob.mu.Lock()
	result, pending, err := ob.addOrderLocked(order)
	ob.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pending.fire()
	return result, nil
}

// ApplyRemoteOrder is equivalent in effect to AddOrder; it exists as a
// distinct entry point so the replica adapter can mark provenance at its
// own layer without the book needing to know about peers at all.
func (ob *OrderBook) ApplyRemoteOrder(order *Order) (*AddResult, error) {
	ob.mu.Lock()
	result, pending, err := ob.addOrderLocked(order)
	ob.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pending.fire()
	return result, nil
}

// addOrderLocked requires ob.mu to already be held. It never fires hooks
// itself; it only ever returns what the caller should fire once unlocked.
func (ob *OrderBook) addOrderLocked(order *Order) (*AddResult, pendingHooks, error) {
	if err := ob.validate(order); err != nil {
		return nil, pendingHooks{}, err
	}
	ob.normalize(order)

	trades, removed := ob.match(order)

	// Appended to the trade log before any hook fires: the write happens
	// here, under the same lock GetTrades takes, and hooks only run once
	// that lock is released, so a hook always observes this write.
	ob.trades = append(ob.trades, trades...)

	remainder, added := ob.settle(order, trades)

	result := &AddResult{Trades: trades, Remainder: remainder, Status: order.Status}
	pending := pendingHooks{hooks: ob.hooks, removed: removed, trades: trades, added: added}
	return result, pending, nil
}

// settle assigns the order's final status and, for a limit remainder,
// inserts it into the resting heap. It returns the remainder to report on
// AddResult and, separately, the order to fire OnOrderAdded with (nil
// unless a limit remainder now rests: a discarded market remainder is
// reported to the caller but never triggers OnOrderAdded, since nothing
// was added to a heap).
func (ob *OrderBook) settle(order *Order, trades []Trade) (remainder *Order, addedForHook *Order) {
	if !order.Quantity.GreaterThan(decimal.Zero) {
		order.Status = Filled
		return nil, nil
	}

	if order.Type == Limit {
		if len(trades) > 0 {
			order.Status = PartiallyFilled
		} else {
			order.Status = Open
		}
		if order.Side == Buy {
			heap.Push(ob.bids, order)
		} else {
			heap.Push(ob.asks, order)
		}
		clone := order.Clone()
		return clone, clone
	}

	// Market orders never rest, so any leftover quantity here is
	// discarded rather than queued. Status reflects that directly
	// (PartiallyFilled or Cancelled, never Open, since Open implies a
	// resting order per the lifecycle in types.go) and Remainder still
	// reports the discarded amount so the caller can see how much of the
	// order went unfilled.
	if len(trades) > 0 {
		order.Status = PartiallyFilled
	} else {
		order.Status = Cancelled
	}
	return order.Clone(), nil
}

// match runs the matching state machine for order against the opposing
// side of the book, mutating order.Quantity in place and returning the
// trades produced in generation order, plus the resting orders fully
// consumed along the way (in consumption order) for the caller to fire
// OrderRemoved with once unlocked.
func (ob *OrderBook) match(order *Order) ([]Trade, []*Order) {
	var trades []Trade
	var removed []*Order

	if order.Side == Buy {
		for order.Quantity.GreaterThan(decimal.Zero) && !ob.asks.IsEmpty() {
			top := ob.asks.Peek()
			if !crosses(order, top.Price) {
				break
			}
			trades = append(trades, ob.fillAt(order, top))
			if top.Quantity.IsZero() {
				heap.Pop(ob.asks)
				top.Status = Filled
				removed = append(removed, top.Clone())
			} else {
				ob.asks.SetQuantity(top.ID, top.Quantity)
				top.Status = PartiallyFilled
			}
		}
	} else {
		for order.Quantity.GreaterThan(decimal.Zero) && !ob.bids.IsEmpty() {
			top := ob.bids.Peek()
			if !crosses(order, top.Price) {
				break
			}
			trades = append(trades, ob.fillAt(order, top))
			if top.Quantity.IsZero() {
				heap.Pop(ob.bids)
				top.Status = Filled
				removed = append(removed, top.Clone())
			} else {
				ob.bids.SetQuantity(top.ID, top.Quantity)
				top.Status = PartiallyFilled
			}
		}
	}

	return trades, removed
}

// crosses reports whether aggressor may trade against a resting order at
// restingPrice: always true for Market orders, and a price comparison
// (direction depending on aggressor side) for Limit orders.
func crosses(aggressor *Order, restingPrice decimal.Decimal) bool {
	if aggressor.Type == Market {
		return true
	}
	if aggressor.Side == Buy {
		return aggressor.Price.GreaterThanOrEqual(restingPrice)
	}
	return aggressor.Price.LessThanOrEqual(restingPrice)
}

// fillAt executes a single fill between aggressor and the resting order
// top, decrementing both quantities and recording a trade at the resting
// order's price.
func (ob *OrderBook) fillAt(aggressor, top *Order) Trade {
	tradedQty := round(minDecimal(aggressor.Quantity, top.Quantity), ob.quantityPrecision)
	tradePrice := top.Price

	aggressor.Quantity = round(aggressor.Quantity.Sub(tradedQty), ob.quantityPrecision)
	top.Quantity = round(top.Quantity.Sub(tradedQty), ob.quantityPrecision)

	ob.tradeCounter++
	trade := Trade{
		ID:        fmt.Sprintf("%s_%s_%d", aggressor.ID, top.ID, ob.tradeCounter),
		Pair:      ob.Pair,
		Price:     tradePrice,
		Quantity:  tradedQty,
		Timestamp: time.Now().UnixNano(),
	}
	if aggressor.Side == Buy {
		trade.BuyOrderID, trade.BuyPeerID = aggressor.ID, aggressor.PeerID
		trade.SellOrderID, trade.SellPeerID = top.ID, top.PeerID
	} else {
		trade.BuyOrderID, trade.BuyPeerID = top.ID, top.PeerID
		trade.SellOrderID, trade.SellPeerID = aggressor.ID, aggressor.PeerID
	}
	return trade
}

// CancelOrder searches bids first, then asks, removes a matching order and
// marks it Cancelled. Cancellation of an unknown id is not an error; nil
// is returned. As with AddOrder, OnOrderRemoved fires only after ob.mu is
// released.
func (ob *OrderBook) CancelOrder(id string) *Order {
	ob.mu.Lock()
	removed := ob.bids.RemoveByID(id)
	if removed == nil {
		removed = ob.asks.RemoveByID(id)
	}
	if removed == nil {
		ob.mu.Unlock()
		return nil
	}
	removed.Status = Cancelled
	result := removed.Clone()
	hooks := ob.hooks
	ob.mu.Unlock()

	if hooks.OnOrderRemoved != nil {
		hooks.OnOrderRemoved(result.Clone())
	}
	return result
}

// BestBid returns a copy of the highest-priority bid, or nil if there are
// no bids.
func (ob *OrderBook) BestBid() *Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.bids.Peek().Clone()
}

// BestAsk returns a copy of the highest-priority ask, or nil if there are
// no asks.
func (ob *OrderBook) BestAsk() *Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.asks.Peek().Clone()
}

// Spread returns ask - bid rounded to the book's price precision, or nil
// if either side is empty.
func (ob *OrderBook) Spread() *decimal.Decimal {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.spreadLocked()
}

func (ob *OrderBook) spreadLocked() *decimal.Decimal {
	bid, ask := ob.bids.Peek(), ob.asks.Peek()
	if bid == nil || ask == nil {
		return nil
	}
	s := round(ask.Price.Sub(bid.Price), ob.pricePrecision)
	return &s
}

// GetBids returns a deep copy of the resting bid orders. Order is not
// heap-priority order; callers that need priority order should sort on
// (price desc, timestamp asc) themselves or use BestBid.
func (ob *OrderBook) GetBids() []*Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return cloneAll(ob.bids.ToArray())
}

// GetAsks returns a deep copy of the resting ask orders.
func (ob *OrderBook) GetAsks() []*Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return cloneAll(ob.asks.ToArray())
}

// GetTrades returns a copy of the append-only trade log.
func (ob *OrderBook) GetTrades() []Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	out := make([]Trade, len(ob.trades))
	copy(out, ob.trades)
	return out
}

// GetSnapshot returns a deep-copied, self-contained snapshot of the
// book's resting state sufficient to rebuild an equivalent book elsewhere.
func (ob *OrderBook) GetSnapshot() Snapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return Snapshot{
		Pair:      ob.Pair,
		Timestamp: time.Now().UnixNano(),
		Bids:      cloneAll(ob.bids.ToArray()),
		Asks:      cloneAll(ob.asks.ToArray()),
		BestBid:   ob.bids.Peek().Clone(),
		BestAsk:   ob.asks.Peek().Clone(),
		Spread:    ob.spreadLocked(),
	}
}

// LoadSnapshot rebuilds both heaps from snapshot by inserting every order
// it contains one at a time; the snapshot's array order is not
// significant, and heap order is re-established purely by insertion. The
// trade history is not replayed. Returns a *PairMismatchError and leaves
// the book unmutated if snapshot.Pair does not match the book's own pair.
func (ob *OrderBook) LoadSnapshot(snapshot Snapshot) error {
	if snapshot.Pair != ob.Pair {
		return &PairMismatchError{Want: ob.Pair, Got: snapshot.Pair}
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	bids := &bidHeap{}
	asks := &askHeap{}
	heap.Init(bids)
	heap.Init(asks)

	for _, o := range snapshot.Bids {
		heap.Push(bids, o.Clone())
	}
	for _, o := range snapshot.Asks {
		heap.Push(asks, o.Clone())
	}

	ob.bids = bids
	ob.asks = asks
	return nil
}

func cloneAll(orders []*Order) []*Order {
	out := make([]*Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
