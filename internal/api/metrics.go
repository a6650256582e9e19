package api

import (
	"maps"
	"net/http"
	"runtime"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/audit"
)

// AuditStats is implemented by *audit.Dispatcher.
type AuditStats interface {
	Stats() audit.Stats
}

// metricsResponse is the body of GET /metrics.
type metricsResponse struct {
	Timestamp     time.Time    `json:"timestamp"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Goroutines    int          `json:"goroutines"`
	HeapAllocMB   float64      `json:"heap_alloc_mb"`
	NumGC         uint32       `json:"num_gc"`
	Database      *poolMetrics `json:"database,omitempty"`
	AuditQueue    *audit.Stats `json:"audit_queue,omitempty"`
	Components    []string     `json:"components"`
}

// poolMetrics summarises the SQLite connection pool. With a single
// connection, a growing wait count means requests queue on the writer.
type poolMetrics struct {
	InUse          int   `json:"in_use"`
	WaitCount      int64 `json:"wait_count"`
	WaitDurationMS int64 `json:"wait_duration_ms"`
}

// handleMetrics reports process, store and audit queue statistics. Admin only.
// Authentication outcome counters go to InfluxDB, not here.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	res := metricsResponse{
		Timestamp:     time.Now().UTC(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(mem.HeapAlloc) / (1 << 20),
		NumGC:         mem.NumGC,
		Components:    s.componentNames(),
	}
	if s.db != nil {
		st := s.db.Stats()
		res.Database = &poolMetrics{
			InUse:          st.InUse,
			WaitCount:      st.WaitCount,
			WaitDurationMS: st.WaitDuration.Milliseconds(),
		}
	}
	if s.auditStats != nil {
		st := s.auditStats.Stats()
		res.AuditQueue = &st
	}

	writeJSON(w, http.StatusOK, res)
}

// componentNames lists the health-checked components in a stable order.
func (s *Server) componentNames() []string {
	return slices.Sorted(maps.Keys(s.checks))
}
