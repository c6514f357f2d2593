package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/aristath/creditrisk/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// runCounter reports the number of ledger entries.
type runCounter interface {
	Count(ctx context.Context) (int64, error)
}

// jobLister reports the registered background jobs.
type jobLister interface {
	Jobs() []string
}

// SystemHandlers serves process and storage status
type SystemHandlers struct {
	log       zerolog.Logger
	db        *database.DB
	runs      runCounter
	jobs      jobLister
	startTime time.Time
}

// NewSystemHandlers creates system handlers. db, runs and jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, db *database.DB, runs runCounter, jobs jobLister) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		db:        db,
		runs:      runs,
		jobs:      jobs,
		startTime: time.Now(),
	}
}

// SystemStatusResponse is the payload of GET /api/system/status
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	Goroutines    int             `json:"goroutines"`
	GoVersion     string          `json:"go_version"`
	Database      *database.Stats `json:"database,omitempty"`
	RunCount      int64           `json:"run_count"`
	Jobs          []string        `json:"jobs"`
}

// HandleSystemStatus returns system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	status := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Jobs:          []string{},
	}

	if h.db != nil {
		stats, err := h.db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
			status.Status = "degraded"
		} else {
			status.Database = stats
		}
	}

	if h.runs != nil {
		count, err := h.runs.Count(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count runs")
			status.Status = "degraded"
		}
		status.RunCount = count
	}

	if h.jobs != nil {
		status.Jobs = h.jobs.Jobs()
		sort.Strings(status.Jobs)
	}

	response := map[string]interface{}{
		"data": status,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, response)
}

// getSystemStats calculates CPU and RAM usage percentages over a short
// sampling window so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
