package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthHandler_StartingIsUnavailable(t *testing.T) {
	tracker := NewHealthTracker()

	rec := httptest.NewRecorder()
	HealthHandler(tracker).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler_StaysOKAfterFailedRefresh(t *testing.T) {
	tracker := NewHealthTracker()
	tracker.RecordApplied(1, 2, time.Now())
	tracker.RecordFailure(errors.New("provider down"))

	rec := httptest.NewRecorder()
	HealthHandler(tracker).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "ok", report.Status)
	require.Equal(t, uint64(1), report.Generation)
	require.Equal(t, 2, report.Tools)
	require.Equal(t, 1, report.ConsecutiveFail)
	require.Equal(t, "provider down", report.LastRefreshErr)
}

func TestHealthTracker_DegradedWithoutCatalog(t *testing.T) {
	tracker := NewHealthTracker()
	tracker.RecordFailure(errors.New("boom"))
	require.Equal(t, "degraded", tracker.Report().Status)
}
