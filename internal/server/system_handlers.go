package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/database"
)

// SystemStats is the host and process snapshot served by /api/system/stats
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// SystemHandlers handles host monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	auditDB     *database.DB
	startupTime time.Time
	diskPath    string
}

// NewSystemHandlers creates system handlers. auditDB may be nil.
func NewSystemHandlers(log zerolog.Logger, auditDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		auditDB:     auditDB,
		startupTime: time.Now(),
		diskPath:    "/",
	}
}

// HandleSystemStats returns CPU, memory and disk usage
// GET /api/system/stats
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.collectStats())
}

// HandleDatabaseHealth runs an integrity check on the audit database
// GET /api/system/database
func (h *SystemHandlers) HandleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	if h.auditDB == nil {
		h.writeJSON(w, map[string]string{"status": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := h.auditDB.HealthCheck(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Audit database health check failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		h.writeJSON(w, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	h.writeJSON(w, map[string]string{"status": "ok", "name": h.auditDB.Name()})
}

// collectStats samples CPU over 100ms so the request stays fast
func (h *SystemHandlers) collectStats() SystemStats {
	stats := SystemStats{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.MemoryPercent = memStat.UsedPercent
	}

	if usage, err := disk.Usage(h.diskPath); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	} else {
		stats.DiskPercent = usage.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	return stats
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
