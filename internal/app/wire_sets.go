//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
)

var ServiceSet = wire.NewSet(
	CoreInfraSet,
	NewToolRegistry,
	NewResultCache,
	NewLocalTools,
	NewHistoryStore,
	NewExecutor,
	wire.Struct(new(ServiceOptions), "Logger", "Config", "Registry", "Executor", "Local", "Metrics", "Health", "History"),
	NewToolService,
)

var AppSet = wire.NewSet(
	ServiceSet,
	NewRefreshScheduler,
	NewMCPBridge,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
