package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/speakscore/internal/assess"
)

// Pinger checks a backing store.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// ToolChecker reports whether an external binary can be run.
type ToolChecker interface {
	Available() bool
}

// PoolStatsSource exposes evaluation pool statistics.
type PoolStatsSource interface {
	Stats() assess.PoolStats
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Pool          *assess.PoolStats `json:"pool,omitempty"`
}

type HealthHandler struct {
	db        Pinger
	mqtt      ConnectionChecker // nil when not configured
	ffmpeg    ToolChecker
	pool      PoolStatsSource // optional
	version   string
	startTime time.Time
}

func NewHealthHandler(db Pinger, mqtt ConnectionChecker, ffmpeg ToolChecker, pool PoolStatsSource, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		ffmpeg:    ffmpeg,
		pool:      pool,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.HealthCheck(ctx); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	// ffmpeg is needed for every ingest
	if h.ffmpeg != nil && h.ffmpeg.Available() {
		checks["ffmpeg"] = "ok"
	} else {
		checks["ffmpeg"] = "missing"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}

	WriteJSON(w, httpStatus, resp)
}
