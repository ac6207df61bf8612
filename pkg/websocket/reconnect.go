package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig controls exponential backoff between connection attempts.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = up to 20% added to each delay
}

// ReconnectManager retries a connect function with jittered exponential
// backoff until it succeeds or the context is canceled.
type ReconnectManager struct {
	cfg    ReconnectConfig
	logger *zap.Logger

	mu      sync.Mutex
	backoff time.Duration
}

// NewReconnectManager creates a reconnection manager. Zero-valued config
// fields get sane defaults.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = time.Minute
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}

	return &ReconnectManager{
		cfg:     cfg,
		logger:  logger,
		backoff: cfg.InitialDelay,
	}
}

// Reconnect retries connect until it succeeds. Backoff resets on success.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connect func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := rm.nextDelay()
		rm.logger.Info("reconnect-waiting", zap.Duration("backoff", delay))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := connect(ctx); err != nil {
			rm.logger.Warn("reconnect-attempt-failed", zap.Error(err))
			ReconnectFailuresTotal.Inc()
			rm.grow()
			continue
		}

		rm.Reset()
		return nil
	}
}

// Reset restores the initial delay.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.backoff = rm.cfg.InitialDelay
}

func (rm *ReconnectManager) nextDelay() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	jitter := 1.0 + rand.Float64()*rm.cfg.JitterPercent
	return time.Duration(float64(rm.backoff) * jitter)
}

func (rm *ReconnectManager) grow() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	next := time.Duration(float64(rm.backoff) * rm.cfg.BackoffMultiplier)
	if next > rm.cfg.MaxDelay {
		next = rm.cfg.MaxDelay
	}
	rm.backoff = next
}
