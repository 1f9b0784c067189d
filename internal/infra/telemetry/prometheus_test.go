package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolhub/internal/domain"
)

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveRefresh(domain.RefreshResultApplied, 20*time.Millisecond)
	m.SetRegisteredTools(3)
	m.ObserveProviderError("calc")
	m.ObserveSchemaError("calc")
	m.ObserveInvocation("calculator", domain.InvocationSuccess, 5*time.Millisecond)
	m.ObserveCacheLookup("calculator", true)

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "toolhub_refresh_total")
	assert.Contains(t, names, "toolhub_refresh_duration_seconds")
	assert.Contains(t, names, "toolhub_registered_tools")
	assert.Contains(t, names, "toolhub_provider_errors_total")
	assert.Contains(t, names, "toolhub_schema_errors_total")
	assert.Contains(t, names, "toolhub_invocations_total")
	assert.Contains(t, names, "toolhub_invocation_duration_seconds")
	assert.Contains(t, names, "toolhub_cache_lookups_total")
}

func TestPrometheusMetrics_CacheLookupLabels(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.ObserveCacheLookup("calculator", true)
	m.ObserveCacheLookup("calculator", false)
	m.ObserveCacheLookup("calculator", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("calculator", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("calculator", "miss")))
}

func TestPrometheusMetrics_ImplementsInterface(t *testing.T) {
	var _ domain.Metrics = (*PrometheusMetrics)(nil)
	var _ domain.Metrics = (*NoopMetrics)(nil)
}
