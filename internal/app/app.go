// Package app wires every component into the running arbitrage service and
// owns its lifecycle.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/circuitbreaker"
	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/internal/discovery"
	"github.com/quantfold/polyarb/internal/engine"
	"github.com/quantfold/polyarb/internal/orders"
	"github.com/quantfold/polyarb/internal/quotes"
	"github.com/quantfold/polyarb/internal/storage"
	"github.com/quantfold/polyarb/internal/txmgr"
	"github.com/quantfold/polyarb/pkg/config"
	"github.com/quantfold/polyarb/pkg/healthprobe"
	"github.com/quantfold/polyarb/pkg/httpserver"
	"github.com/quantfold/polyarb/pkg/wallet"
	"github.com/quantfold/polyarb/pkg/websocket"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	discoverySvc *discovery.Service
	wsManager    *websocket.Manager
	feed         *quotes.Feed
	det          *detector.Detector
	orderMgr     *orders.Manager
	txManager    *txmgr.Manager         // nil in paper mode
	breaker      *circuitbreaker.Breaker // nil in paper mode
	tracker      *wallet.Tracker         // nil in paper mode
	merger       engine.Merger
	eng          *engine.Engine
	store        storage.Storage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	SingleMarket string // debugging: slug of single market to track
}

// Status reports the engine state snapshot for the HTTP status endpoint.
func (a *App) Status() httpserver.Status {
	pending := 0
	if a.txManager != nil {
		pending = a.txManager.PendingCount()
	}
	tradingEnabled := true
	if a.breaker != nil {
		tradingEnabled = a.breaker.GetStatus().Enabled
	}
	return httpserver.Status{
		ExecutionMode:   a.cfg.ExecutionMode,
		StreamConnected: a.wsManager.Connected(),
		WatchedMarkets:  len(a.discoverySvc.SubscribedMarkets()),
		ActiveOrders:    len(a.orderMgr.ActiveOrders()),
		PendingTxs:      pending,
		MergingHalted:   a.merger.Halted(),
		TradingEnabled:  tradingEnabled,
	}
}
