package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/cronrefresh"
	"toolhub/internal/infra/executor"
	"toolhub/internal/infra/history"
	"toolhub/internal/infra/localtools"
	"toolhub/internal/infra/mcpbridge"
	"toolhub/internal/infra/registry"
	"toolhub/internal/infra/resultcache"
	"toolhub/internal/infra/telemetry"
)

func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	reg.MustRegister(prometheus.NewGoCollector())
	return reg
}

func NewMetrics(reg *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(reg)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

func NewToolRegistry(logger *zap.Logger) *registry.Registry {
	return registry.New(registry.Options{Logger: logger})
}

func NewResultCache() *resultcache.Cache {
	return resultcache.New()
}

func NewLocalTools() *localtools.Registry {
	return localtools.NewDefaultRegistry()
}

// NewHistoryStore opens the refresh history file. It returns nil when no
// history path is configured.
func NewHistoryStore(cfg domain.Config, logger *zap.Logger) (*history.Store, error) {
	settings := cfg.Settings.History
	if settings.Path == "" {
		return nil, nil
	}
	store, err := history.Open(settings.Path, settings.Keep)
	if err != nil {
		return nil, err
	}
	logger.Info("refresh history opened", zap.String("path", store.Path()), zap.Int("keep", settings.Keep))
	return store, nil
}

func NewExecutor(
	cfg domain.Config,
	tools *registry.Registry,
	cache *resultcache.Cache,
	metrics domain.Metrics,
	logger *zap.Logger,
) *executor.Executor {
	return executor.New(executor.Options{
		Logger:          logger,
		Tools:           tools,
		Cache:           cache,
		Metrics:         metrics,
		ResponseTimeout: cfg.Settings.ResponseTimeout(),
	})
}

func NewRefreshScheduler(cfg domain.Config, service *ToolService, logger *zap.Logger) *cronrefresh.Scheduler {
	return cronrefresh.New(service, cronrefresh.Options{
		Logger:  logger,
		Timeout: cfg.Settings.RefreshTimeout(),
	})
}

func NewMCPBridge(exec *executor.Executor, logger *zap.Logger) *mcpbridge.Bridge {
	return mcpbridge.New(exec, mcpbridge.Options{
		Logger:  logger,
		Name:    "toolhub",
		Version: Version,
	})
}
