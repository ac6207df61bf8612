// Package websocket maintains the market data stream connection: subscribe
// management, keepalive pings, and reconnection with backoff. Parsed book
// events are delivered on a buffered channel; slow consumers drop messages
// rather than stall the read loop.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/types"
)

// Config holds stream configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// Manager manages a single connection to the venue's market channel.
type Manager struct {
	url       string
	cfg       Config
	logger    *zap.Logger
	reconnect *ReconnectManager

	messages chan *types.BookMessage
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu         sync.RWMutex
	conn       *websocket.Conn
	subscribed map[string]bool

	connected      atomic.Bool
	connectedSince atomic.Int64
}

// New creates a stream manager. Call Start to connect.
func New(cfg Config) *Manager {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.MessageBufferSize == 0 {
		cfg.MessageBufferSize = 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		url:    cfg.URL,
		cfg:    cfg,
		logger: cfg.Logger,
		reconnect: NewReconnectManager(ReconnectConfig{
			InitialDelay:      cfg.ReconnectInitialDelay,
			MaxDelay:          cfg.ReconnectMaxDelay,
			BackoffMultiplier: cfg.ReconnectBackoffMult,
			JitterPercent:     0.2,
		}, cfg.Logger),
		messages:   make(chan *types.BookMessage, cfg.MessageBufferSize),
		ctx:        ctx,
		cancel:     cancel,
		subscribed: make(map[string]bool),
	}
}

// Start connects and launches the read, ping and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("stream-starting", zap.String("url", m.url))

	if err := m.connect(m.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.connected.Store(true)
	m.connectedSince.Store(time.Now().Unix())
	ActiveConnections.Set(1)
	m.logger.Info("stream-connected")

	return nil
}

// Subscribe adds token IDs to the market channel subscription. Already
// subscribed tokens are skipped.
func (m *Manager) Subscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	newTokens := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if !m.subscribed[id] {
			newTokens = append(newTokens, id)
			m.subscribed[id] = true
		}
	}
	if len(newTokens) == 0 {
		m.mu.Unlock()
		return nil
	}

	// The venue wants "type: market" on the first subscribe of a session and
	// "operation: subscribe" for later additions.
	msg := map[string]interface{}{"assets_ids": newTokens, "operation": "subscribe"}
	if len(m.subscribed) == len(newTokens) {
		msg = map[string]interface{}{"assets_ids": newTokens, "type": "market"}
	}
	total := len(m.subscribed)
	conn := m.conn
	m.mu.Unlock()

	if err := conn.WriteJSON(msg); err != nil {
		m.mu.Lock()
		for _, id := range newTokens {
			delete(m.subscribed, id)
		}
		total = len(m.subscribed)
		m.mu.Unlock()
		SubscriptionCount.Set(float64(total))
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(total))
	m.logger.Info("subscribed",
		zap.Int("new-count", len(newTokens)),
		zap.Int("total-count", total))
	return nil
}

// Unsubscribe removes token IDs from the subscription.
func (m *Manager) Unsubscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	removed := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if m.subscribed[id] {
			removed = append(removed, id)
			delete(m.subscribed, id)
		}
	}
	if len(removed) == 0 {
		m.mu.Unlock()
		return nil
	}
	total := len(m.subscribed)
	conn := m.conn
	m.mu.Unlock()

	msg := map[string]interface{}{"assets_ids": removed, "operation": "unsubscribe"}
	if err := conn.WriteJSON(msg); err != nil {
		m.mu.Lock()
		for _, id := range removed {
			m.subscribed[id] = true
		}
		total = len(m.subscribed)
		m.mu.Unlock()
		SubscriptionCount.Set(float64(total))
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(total))
	return nil
}

func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error", zap.Error(err))
			if since := m.connectedSince.Load(); since > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(since, 0)).Seconds())
			}
			m.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		// The venue sends batches as JSON arrays; anything else is a
		// heartbeat or control message.
		var batch []types.BookMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			if len(raw) < 10 || string(raw) == "[]" {
				continue
			}
			m.logger.Debug("unparseable-stream-message",
				zap.Error(err),
				zap.Int("bytes", len(raw)))
			continue
		}

		for i := range batch {
			msg := &batch[i]
			MessagesReceivedTotal.WithLabelValues(msg.EventType).Inc()

			select {
			case m.messages <- msg:
			default:
				m.logger.Warn("message-channel-full", zap.String("event-type", msg.EventType))
				MessagesDroppedTotal.Inc()
			}
		}
	}
}

func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}
			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("connection-lost-reconnecting")
		if err := m.reconnect.Reconnect(m.ctx, m.connect); err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("reconnect-failed", zap.Error(err))
			continue
		}

		if err := m.resubscribeAll(); err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.wg.Add(1)
		go m.readLoop()
	}
}

func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	tokenIDs := make([]string, 0, len(m.subscribed))
	for id := range m.subscribed {
		tokenIDs = append(tokenIDs, id)
	}
	conn := m.conn
	m.mu.RUnlock()

	if len(tokenIDs) == 0 {
		return nil
	}

	msg := map[string]interface{}{"assets_ids": tokenIDs, "type": "market"}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed", zap.Int("count", len(tokenIDs)))
	return nil
}

// Messages returns the book event channel. It is closed by Close.
func (m *Manager) Messages() <-chan *types.BookMessage {
	return m.messages
}

// Connected reports whether the stream is currently up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Close stops all loops and closes the connection and message channel.
func (m *Manager) Close() error {
	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()
	close(m.messages)
	ActiveConnections.Set(0)

	m.logger.Info("stream-closed")
	return nil
}
