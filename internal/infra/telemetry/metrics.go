package telemetry

import (
	"time"

	"toolhub/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveRefresh(_ domain.RefreshResult, _ time.Duration) {}

func (n *NoopMetrics) SetRegisteredTools(_ int) {}

func (n *NoopMetrics) ObserveProviderError(_ string) {}

func (n *NoopMetrics) ObserveSchemaError(_ string) {}

func (n *NoopMetrics) ObserveInvocation(_ string, _ domain.InvocationOutcome, _ time.Duration) {}

func (n *NoopMetrics) ObserveCacheLookup(_ string, _ bool) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
