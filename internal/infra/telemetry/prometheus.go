package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"toolhub/internal/domain"
)

type PrometheusMetrics struct {
	refreshTotal      *prometheus.CounterVec
	refreshDuration   *prometheus.HistogramVec
	registeredTools   prometheus.Gauge
	providerErrors    *prometheus.CounterVec
	schemaErrors      *prometheus.CounterVec
	invocationTotal   *prometheus.CounterVec
	invocationLatency *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		refreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_refresh_total",
				Help: "Total number of registry refresh attempts",
			},
			[]string{"result"},
		),
		refreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolhub_refresh_duration_seconds",
				Help:    "Duration of registry refresh attempts in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
		registeredTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolhub_registered_tools",
				Help: "Number of tools in the current registry snapshot",
			},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_provider_errors_total",
				Help: "Total number of provider discovery failures",
			},
			[]string{"provider"},
		),
		schemaErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_schema_errors_total",
				Help: "Total number of dropped tool descriptors",
			},
			[]string{"provider"},
		),
		invocationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_invocations_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "outcome"},
		),
		invocationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolhub_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool", "outcome"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolhub_cache_lookups_total",
				Help: "Total number of result cache lookups",
			},
			[]string{"tool", "result"},
		),
	}
}

func (p *PrometheusMetrics) ObserveRefresh(result domain.RefreshResult, duration time.Duration) {
	p.refreshTotal.WithLabelValues(string(result)).Inc()
	p.refreshDuration.WithLabelValues(string(result)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetRegisteredTools(count int) {
	p.registeredTools.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveProviderError(provider string) {
	p.providerErrors.WithLabelValues(provider).Inc()
}

func (p *PrometheusMetrics) ObserveSchemaError(provider string) {
	p.schemaErrors.WithLabelValues(provider).Inc()
}

func (p *PrometheusMetrics) ObserveInvocation(tool string, outcome domain.InvocationOutcome, duration time.Duration) {
	p.invocationTotal.WithLabelValues(tool, string(outcome)).Inc()
	p.invocationLatency.WithLabelValues(tool, string(outcome)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveCacheLookup(tool string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(tool, result).Inc()
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
