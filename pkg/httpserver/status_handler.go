package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// StatusSource reports a snapshot of engine state for the status endpoint.
type StatusSource interface {
	Status() Status
}

// Status is the JSON body served at /api/status.
type Status struct {
	ExecutionMode   string `json:"execution_mode"`
	StreamConnected bool   `json:"stream_connected"`
	WatchedMarkets  int    `json:"watched_markets"`
	ActiveOrders    int    `json:"active_orders"`
	PendingTxs      int    `json:"pending_txs"`
	MergingHalted   bool   `json:"merging_halted"`
	TradingEnabled  bool   `json:"trading_enabled"`
}

// StatusHandler serves the engine state snapshot.
type StatusHandler struct {
	source StatusSource
	logger *zap.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(source StatusSource, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{source: source, logger: logger}
}

// HandleStatus writes the current status as JSON.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.source.Status()); err != nil {
		h.logger.Warn("status-encode-failed", zap.Error(err))
	}
}
