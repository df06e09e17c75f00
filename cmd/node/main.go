// Command node runs a single order book peer: it loads configuration,
// constructs the book, wires it to the in-memory transport stub via a
// replica adapter, and serves the REST/SSE adapter until it receives a
// termination signal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/orderbookmesh/core/api"
	"github.com/orderbookmesh/core/book"
	"github.com/orderbookmesh/core/config"
	"github.com/orderbookmesh/core/replica"
	"github.com/orderbookmesh/core/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		newBootstrapLogger().Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		newBootstrapLogger().Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	log.Info("starting node",
		zap.String("pair", cfg.Pair),
		zap.String("peer_id", cfg.PeerID),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	ob := book.NewOrderBook(book.Config{
		Pair:              cfg.Pair,
		PricePrecision:    cfg.PricePrecision,
		QuantityPrecision: cfg.QuantityPrecision,
	})

	// The registry is process-local: this single-process node is its own
	// one-member network until a real DHT/overlay transport replaces this
	// stub (out of scope for this module; see the transport package doc).
	registry := transport.NewRegistry()
	hub := transport.NewHub(cfg.PeerID, registry)
	defer hub.Close()

	rep := replica.New(cfg.PeerID, ob, hub, log)

	server := api.NewServer(cfg.HTTPAddr, rep, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Error("http server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("node stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newBootstrapLogger() *zap.Logger {
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	return log
}
