// Package api is the thin REST/SSE adapter over a replica.Replica,
// specified only for compatibility with the out-of-scope UI surface: it
// does no matching or broadcast logic of its own, only translation
// between HTTP and the core's public contract.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/orderbookmesh/core/book"
	"github.com/orderbookmesh/core/replica"
)

// Server holds the dependencies of the HTTP surface and owns the set of
// live SSE subscribers.
type Server struct {
	addr    string
	replica *replica.Replica
	log     *zap.Logger
	metrics *Metrics

	mu          sync.Mutex
	subscribers map[chan event]struct{}

	httpServer *http.Server
}

// NewServer wires a Server for replica r, listening on addr.
func NewServer(addr string, r *replica.Replica, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:        addr,
		replica:     r,
		log:         log,
		metrics:     NewMetrics(),
		subscribers: make(map[chan event]struct{}),
	}
}

// Router builds the mux.Router exposing the routes in spec.md §6 plus the
// /metrics endpoint.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/order", s.handlePlaceOrder).Methods(http.MethodPost)
	r.HandleFunc("/order/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler())
	r.Use(corsMiddleware)

	// Hooks are wired here, not in the book itself, so the book stays
	// free of any HTTP-shaped concern: each hook both feeds Prometheus
	// counters and fans out to connected SSE subscribers.
	s.wireHooks()

	return r
}

func (s *Server) wireHooks() {
	s.replica.Book().SetHooks(book.Hooks{
		OnTrade: func(t book.Trade) {
			s.metrics.TradesTotal.Inc()
			s.publish(event{Kind: "trade", Trade: &t})
		},
		OnOrderAdded: func(o *book.Order) {
			s.metrics.OrdersResting.Inc()
			s.publish(event{Kind: "order_added", Order: o})
		},
		OnOrderRemoved: func(o *book.Order) {
			s.metrics.OrdersResting.Dec()
			s.publish(event{Kind: "order_removed", Order: o})
		},
	})
}

// Start runs the HTTP server until the context is cancelled, then shuts
// it down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
