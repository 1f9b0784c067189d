// Package executor dispatches validated calls to registered tools.
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/resultcache"
	"toolhub/internal/infra/telemetry"
)

// ToolSource resolves tool names against the current registry snapshot.
type ToolSource interface {
	Get(name string) (*domain.RegisteredTool, error)
}

type Options struct {
	Logger  *zap.Logger
	Tools   ToolSource
	Cache   *resultcache.Cache
	Metrics domain.Metrics
	// ResponseTimeout bounds each call. Zero leaves the caller's deadline alone,
	// except for shared cached calls, which then rely on the transport timeout.
	ResponseTimeout time.Duration
}

type Executor struct {
	logger  *zap.Logger
	tools   ToolSource
	cache   *resultcache.Cache
	metrics domain.Metrics
	timeout time.Duration
}

func New(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	cache := opts.Cache
	if cache == nil {
		cache = resultcache.New()
	}
	return &Executor{
		logger:  logger.Named("executor"),
		tools:   opts.Tools,
		cache:   cache,
		metrics: metrics,
		timeout: opts.ResponseTimeout,
	}
}

// Invoke validates args against the named tool's contract and runs it. Unknown
// tools and invalid arguments fail before any provider is contacted.
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]any) (domain.InvocationResult, error) {
	started := time.Now()
	ctx, meta := telemetry.EnsureRequestMeta(ctx)
	logger := telemetry.LoggerWithRequest(ctx, e.logger).With(telemetry.ToolField(name))
	result := domain.InvocationResult{Tool: name, RequestID: meta.RequestID}

	tool, err := e.tools.Get(name)
	if err != nil {
		e.observe(name, domain.InvocationNotFound, started)
		logger.Debug("tool not found")
		return result, err
	}

	validated, err := tool.Contract.Validate(args)
	if err != nil {
		e.observe(name, domain.InvocationInvalid, started)
		logger.Debug("invalid arguments", zap.Error(err))
		return result, err
	}

	call := func(base context.Context) func() (any, error) {
		return func() (any, error) {
			callCtx := base
			if e.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(base, e.timeout)
				defer cancel()
			}
			return tool.Invoke(callCtx, validated)
		}
	}

	var value any
	if tool.Cache.Enabled {
		key, keyErr := resultcache.KeyFor(tool.Name, cacheKeyParams(tool), validated)
		if keyErr != nil {
			logger.Warn("cache key unavailable; calling without cache", zap.Error(keyErr))
			value, err = call(ctx)()
		} else {
			// Concurrent misses share one call, so it must outlive any single
			// caller; each caller still stops waiting when its own ctx ends.
			var hit bool
			value, hit, err = e.cache.Load(ctx, key, call(context.WithoutCancel(ctx)))
			e.metrics.ObserveCacheLookup(name, hit)
			if hit {
				result.Value = value
				result.Cached = true
				result.Duration = time.Since(started)
				e.observe(name, domain.InvocationCacheHit, started)
				logger.Debug("served from cache", telemetry.EventField(telemetry.EventCacheHit))
				return result, nil
			}
		}
	} else {
		value, err = call(ctx)()
	}

	result.Duration = time.Since(started)
	if err != nil {
		e.observe(name, domain.InvocationFailed, started)
		logger.Warn("tool invocation failed",
			telemetry.EventField(telemetry.EventInvokeFailure),
			telemetry.ProviderField(tool.Provider),
			zap.Error(err),
		)
		var invErr *domain.InvocationError
		if !errors.As(err, &invErr) {
			err = &domain.InvocationError{Tool: tool.Name, Provider: tool.Provider, Err: err}
		}
		return result, err
	}

	result.Value = value
	e.observe(name, domain.InvocationSuccess, started)
	logger.Debug("tool invoked",
		telemetry.ProviderField(tool.Provider),
		telemetry.DurationField(result.Duration),
	)
	return result, nil
}

// cacheKeyParams returns the declared key parameters, or every parameter when
// the tool enables caching without naming any.
func cacheKeyParams(tool *domain.RegisteredTool) []string {
	if len(tool.Cache.KeyBy) > 0 {
		return tool.Cache.KeyBy
	}
	fields := tool.Contract.Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}
	return names
}

func (e *Executor) observe(tool string, outcome domain.InvocationOutcome, started time.Time) {
	e.metrics.ObserveInvocation(tool, outcome, time.Since(started))
}
