package book

import (
	"container/heap"

	"github.com/shopspring/decimal"
)

// orderHeap is a slice of Order pointers that implements heap.Interface.
// It is the common backing store for both the bid heap and the ask heap;
// only the Less method differs between the two specializations.
type orderHeap []*Order

func (h orderHeap) Len() int      { return len(h) }
func (h orderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *orderHeap) Push(x interface{}) {
	*h = append(*h, x.(*Order))
}

func (h *orderHeap) Pop() interface{} {
	n := len(*h)
	x := (*h)[n-1]
	(*h)[n-1] = nil
	*h = (*h)[:n-1]
	return x
}

// Peek returns the highest-priority order without removing it, or nil if
// the heap is empty.
func (h orderHeap) Peek() *Order {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// Size returns the number of resting orders.
func (h orderHeap) Size() int { return len(h) }

// IsEmpty reports whether the heap holds no orders.
func (h orderHeap) IsEmpty() bool { return len(h) == 0 }

// ToArray returns a shallow copy of the heap's backing array, suitable for
// snapshotting. The returned slice shares no backing array with the heap,
// but its elements still alias the live *Order values.
func (h orderHeap) ToArray() []*Order {
	out := make([]*Order, len(h))
	copy(out, h)
	return out
}

// findIndex locates an order by id via linear scan, returning -1 if absent.
func (h orderHeap) findIndex(id string) int {
	for i, o := range h {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// bidHeap is a max-heap over price (ties broken by earliest timestamp),
// realizing price-time priority for buy orders.
type bidHeap struct{ orderHeap }

func (h bidHeap) Less(i, j int) bool {
	a, b := h.orderHeap[i], h.orderHeap[j]
	if !a.Price.Equal(b.Price) {
		return a.Price.GreaterThan(b.Price)
	}
	return a.Timestamp < b.Timestamp
}

// RemoveByID removes and returns the order with the given id, or nil if
// absent. It locates the order by linear scan, then lets container/heap
// swap it with the tail element and restore heap order by sifting both up
// and down from the vacated slot.
func (h *bidHeap) RemoveByID(id string) *Order {
	idx := h.orderHeap.findIndex(id)
	if idx < 0 {
		return nil
	}
	return heap.Remove(h, idx).(*Order)
}

// SetQuantity mutates the named order's quantity in place without
// re-sifting: bid ordering is a function of price and timestamp only, so
// a quantity change can never violate heap order.
func (h *bidHeap) SetQuantity(id string, qty decimal.Decimal) bool {
	idx := h.orderHeap.findIndex(id)
	if idx < 0 {
		return false
	}
	h.orderHeap[idx].Quantity = qty
	return true
}

// askHeap is a min-heap over price (ties broken by earliest timestamp),
// realizing price-time priority for sell orders.
type askHeap struct{ orderHeap }

func (h askHeap) Less(i, j int) bool {
	a, b := h.orderHeap[i], h.orderHeap[j]
	if !a.Price.Equal(b.Price) {
		return a.Price.LessThan(b.Price)
	}
	return a.Timestamp < b.Timestamp
}

// RemoveByID removes and returns the order with the given id, or nil if
// absent.
func (h *askHeap) RemoveByID(id string) *Order {
	idx := h.orderHeap.findIndex(id)
	if idx < 0 {
		return nil
	}
	return heap.Remove(h, idx).(*Order)
}

// SetQuantity mutates the named order's quantity in place without
// re-sifting.
func (h *askHeap) SetQuantity(id string, qty decimal.Decimal) bool {
	idx := h.orderHeap.findIndex(id)
	if idx < 0 {
		return false
	}
	h.orderHeap[idx].Quantity = qty
	return true
}
