package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		mqtt       ConnectionChecker
		ffmpeg     ToolChecker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "healthy",
			db:         mockPinger{},
			mqtt:       mockBroker(true),
			ffmpeg:     mockTool(true),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"database": "ok", "mqtt": "ok", "ffmpeg": "ok"},
		},
		{
			name:       "mqtt_not_configured",
			db:         mockPinger{},
			ffmpeg:     mockTool(true),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"mqtt": "not_configured"},
		},
		{
			name:       "mqtt_disconnected_degrades",
			db:         mockPinger{},
			mqtt:       mockBroker(false),
			ffmpeg:     mockTool(true),
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]string{"mqtt": "disconnected"},
		},
		{
			name:       "database_down",
			db:         mockPinger{err: errors.New("refused")},
			ffmpeg:     mockTool(true),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"database": "error"},
		},
		{
			name:       "ffmpeg_missing",
			db:         mockPinger{},
			ffmpeg:     mockTool(false),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"ffmpeg": "missing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.mqtt, tt.ffmpeg, &mockPool{}, "v1.0.0", time.Now().Add(-time.Minute))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("JSON decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
			if resp.Version != "v1.0.0" || resp.UptimeSeconds < 59 {
				t.Errorf("version/uptime = %q/%d", resp.Version, resp.UptimeSeconds)
			}
			if resp.Pool == nil || resp.Pool.Workers != 2 {
				t.Errorf("pool = %+v, want workers 2", resp.Pool)
			}
		})
	}
}
