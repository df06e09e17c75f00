package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderbookmesh/core/book"
)

// orderRequest is the POST /order request body.
type orderRequest struct {
	Side     book.Side      `json:"side"`
	Type     book.OrderType `json:"type"`
	Price    *string        `json:"price"`
	Quantity string         `json:"quantity"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.replica.Snapshot()
	trades := s.replica.Book().GetTrades()
	if len(trades) > 20 {
		trades = trades[len(trades)-20:]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"peerId":  s.replica.PeerID,
		"pair":    snap.Pair,
		"bids":    snap.Bids,
		"asks":    snap.Asks,
		"bestBid": snap.BestBid,
		"bestAsk": snap.BestAsk,
		"spread":  snap.Spread,
		"trades":  trades,
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	quantity, err := parseDecimal(req.Quantity)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity: " + err.Error()})
		return
	}
	order := &book.Order{
		Side:     req.Side,
		Type:     req.Type,
		Quantity: quantity,
	}
	if req.Price != nil {
		price, err := parseDecimal(*req.Price)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price: " + err.Error()})
			return
		}
		order.Price = price
	}

	result, err := s.replica.Submit(r.Context(), order)
	if err != nil {
		s.metrics.OrdersRejected.Inc()
		var verr *book.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.OrdersSubmitted.WithLabelValues(string(order.Side), string(order.Type)).Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cancelled := s.replica.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"cancelled": cancelled != nil,
	})
}

// event is the payload pushed over /events: exactly one of Trade, Order
// or Snapshot is populated, Snapshot only on the initial frame.
type event struct {
	Kind     string         `json:"kind"`
	Trade    *book.Trade    `json:"trade,omitempty"`
	Order    *book.Order    `json:"order,omitempty"`
	Snapshot *book.Snapshot `json:"snapshot,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	snap := s.replica.Snapshot()
	if err := writeSSEFrame(w, event{Kind: "snapshot", Snapshot: &snap}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case evt, open := <-ch:
			if !open {
				return
			}
			// A hook-failure here (a write error) must never reach the
			// book: this path is lenient, per spec.md §7.
			if err := writeSSEFrame(w, evt); err != nil {
				s.log.Warn("sse write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) subscribe() chan event {
	ch := make(chan event, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan event) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
	close(ch)
}

// publish fans evt out to every connected SSE subscriber. A subscriber
// whose channel is full misses evt (the subscriber stays connected) rather
// than blocking the book's calling goroutine, matching the teacher's "skip if channel is full" discipline
// for its own streaming channels.
func (s *Server) publish(evt event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, evt event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("data: "))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
