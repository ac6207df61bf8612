package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.String("min-profit-pct", a.cfg.MinProfitPct.String()),
		zap.String("log-level", a.cfg.LogLevel))

	if err := a.startComponents(); err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.CLOBWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give the HTTP server a moment to bind before anything can fail health
	// checks against it.
	time.Sleep(100 * time.Millisecond)

	if err := a.wsManager.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	a.feed.Start(a.ctx)

	a.wg.Add(1)
	go a.runDiscovery()

	a.wg.Add(1)
	go a.handleNewMarkets()

	if a.breaker != nil {
		a.breaker.Start(a.ctx)
	}
	if a.tracker != nil {
		a.wg.Add(1)
		go a.runWalletTracker()
	}

	a.eng.Start(a.ctx)

	return nil
}

func (a *App) runWalletTracker() {
	defer a.wg.Done()
	err := a.tracker.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("wallet-tracker-error", zap.Error(err))
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscovery() {
	defer a.wg.Done()
	err := a.discoverySvc.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
