package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// ToolChecker reports whether the external extractor binary can be run.
type ToolChecker interface {
	Available() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	scratch   Scratch
	tool      ToolChecker
	version   string
	startTime time.Time
}

func NewHealthHandler(scratch Scratch, tool ToolChecker, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		scratch:   scratch,
		tool:      tool,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Scratch check: uploads are useless without a writable arena root
	if h.scratch == nil {
		checks["scratch"] = "not_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else if err := probeWritable(h.scratch.Root()); err != nil {
		checks["scratch"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["scratch"] = "ok"
	}

	// yt-dlp check: only links depend on it, so a missing binary degrades
	if h.tool != nil {
		if h.tool.Available() {
			checks["yt_dlp"] = "ok"
		} else {
			checks["yt_dlp"] = "missing"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["yt_dlp"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}

// probeWritable creates dir if needed and writes then removes a probe file.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
