package telemetry

import (
	"sync"
	"time"
)

// HealthReport is served on /healthz.
type HealthReport struct {
	Status          string    `json:"status"`
	Generation      uint64    `json:"generation"`
	Tools           int       `json:"tools"`
	LastRefresh     time.Time `json:"lastRefresh,omitempty"`
	LastRefreshErr  string    `json:"lastRefreshError,omitempty"`
	ConsecutiveFail int       `json:"consecutiveFailures"`
}

// HealthTracker records refresh outcomes. The service stays "ok" while the
// previous catalog is serving; it degrades only when no catalog was ever applied.
type HealthTracker struct {
	mu     sync.RWMutex
	report HealthReport
}

func NewHealthTracker() *HealthTracker {
	return &HealthTracker{report: HealthReport{Status: "starting"}}
}

func (h *HealthTracker) RecordApplied(generation uint64, tools int, at time.Time) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.report.Status = "ok"
	h.report.Generation = generation
	h.report.Tools = tools
	h.report.LastRefresh = at
	h.report.LastRefreshErr = ""
	h.report.ConsecutiveFail = 0
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure(err error) {
	if h == nil || err == nil {
		return
	}
	h.mu.Lock()
	h.report.LastRefreshErr = err.Error()
	h.report.ConsecutiveFail++
	if h.report.Generation == 0 {
		h.report.Status = "degraded"
	}
	h.mu.Unlock()
}

func (h *HealthTracker) Report() HealthReport {
	if h == nil {
		return HealthReport{Status: "ok"}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report
}
