package handlers

import (
	"net/http"
	"runtime"

	"backdrop/internal/indexer"
	"backdrop/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Database bool   `json:"database"`

	Watcher indexer.Status `json:"watcher"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalMedia int `json:"totalMedia"`
}

// HealthCheck reports the watcher state, database reachability and totals.
// It answers 503 until the initial scan has finished.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.watcher.Status()

	response := HealthResponse{
		Status:       statusStarting,
		Ready:        status.Ready,
		Version:      startup.Version,
		Database:     h.store.Healthy(),
		Watcher:      status,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		TotalMedia:   h.store.GetStats().TotalMedia,
	}

	switch {
	case !status.Ready:
	case !response.Database || status.LastScanError != "":
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, response)
}

// LivenessCheck always returns 200 while the process is serving.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the watcher is live.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.watcher.IsReady() {
		writeJSONStatus(w, http.StatusOK, "ready")
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
}
