// Package healthprobe provides the liveness and readiness handlers served on
// the operational HTTP port. Liveness reports that the process is up;
// readiness flips only once the engine has its data feeds and gates wired.
package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker tracks process readiness for the HTTP probes.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
}

// New creates a checker. It starts not ready.
func New() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the application ready (or not) to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse is the probe response body.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Message string `json:"message,omitempty"`
}

// Health returns the liveness handler. It answers 200 whenever the process
// is running, regardless of readiness.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respond(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns the readiness handler: 200 when ready, 503 while starting
// or draining.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			h.respond(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "application is starting",
			})
			return
		}
		h.respond(w, http.StatusOK, HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func (h *HealthChecker) respond(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
