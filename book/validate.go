package book

import (
	"time"

	"github.com/shopspring/decimal"
)

// validate checks the caller-supplied fields of order before any
// normalization or matching occurs. A validation failure never mutates
// the book.
func (ob *OrderBook) validate(order *Order) error {
	if order.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if order.Side != Buy && order.Side != Sell {
		return &ValidationError{Field: "side", Reason: "must be buy or sell"}
	}
	if order.Type != "" && order.Type != Limit && order.Type != Market {
		return &ValidationError{Field: "type", Reason: "must be limit or market"}
	}
	if order.Type != Market && !order.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be positive for a limit order"}
	}
	if !order.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	return nil
}

// normalize rounds price and quantity to the book's configured precision,
// defaults the order's type to Limit and its timestamp to the node clock,
// sets status to Open, and clears price for Market orders.
func (ob *OrderBook) normalize(order *Order) {
	if order.Type == "" {
		order.Type = Limit
	}
	if order.Type == Market {
		order.Price = decimal.Zero
	} else {
		order.Price = round(order.Price, ob.pricePrecision)
	}
	order.Quantity = round(order.Quantity, ob.quantityPrecision)
	if order.Timestamp == 0 {
		order.Timestamp = time.Now().UnixNano()
	}
	order.Status = Open
}
