package httpserver

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// health backs the liveness and readiness probes.
type health struct {
	startTime time.Time
	ready     atomic.Bool
}

func newHealth() *health {
	return &health{startTime: time.Now()}
}

func (h *health) setReady(ready bool) {
	h.ready.Store(ready)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// liveness always returns 200 while the process is running.
func (h *health) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "healthy",
		Uptime: time.Since(h.startTime).String(),
	})
}

// readiness returns 200 once the gateway session is established, 503 before.
func (h *health) readiness(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready"})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ready",
		Uptime: time.Since(h.startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
