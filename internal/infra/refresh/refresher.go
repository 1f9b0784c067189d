// Package refresh runs the fetch, synthesize and swap pipeline that rebuilds
// the tool registry.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/discovery"
	"toolhub/internal/infra/localtools"
	"toolhub/internal/infra/registry"
	"toolhub/internal/infra/telemetry"
)

// ErrStrictRefresh aborts a strict refresh that saw provider or schema errors.
var ErrStrictRefresh = errors.New("strict refresh rejected partial discovery")

// HistoryRecorder persists applied refreshes.
type HistoryRecorder interface {
	Record(ctx context.Context, report domain.RefreshReport) error
}

type Options struct {
	Logger      *zap.Logger
	Providers   []domain.ProviderConfig
	Settings    domain.Settings
	Connections discovery.Connections
	Registry    *registry.Registry
	Local       *localtools.Registry
	Metrics     domain.Metrics
	Health      *telemetry.HealthTracker
	History     HistoryRecorder
	Gate        *Gate
	Clock       func() time.Time
}

type Refresher struct {
	logger    *zap.Logger
	providers []domain.ProviderConfig
	settings  domain.Settings
	conns     discovery.Connections
	fetcher   *discovery.Fetcher
	builder   *Builder
	registry  *registry.Registry
	metrics   domain.Metrics
	health    *telemetry.HealthTracker
	history   HistoryRecorder
	gate      *Gate
	clock     func() time.Time

	state atomic.Value
}

func NewRefresher(opts Options) *Refresher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewGate()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	local := opts.Local
	if local == nil {
		local = localtools.NewDefaultRegistry()
	}
	r := &Refresher{
		logger:    logger.Named("refresh"),
		providers: opts.Providers,
		settings:  opts.Settings,
		conns:     opts.Connections,
		fetcher: discovery.NewFetcher(discovery.Options{
			Logger:      logger,
			Concurrency: opts.Settings.RefreshConcurrency,
			Metrics:     metrics,
		}),
		builder:  NewBuilder(opts.Connections, local),
		registry: opts.Registry,
		metrics:  metrics,
		health:   opts.Health,
		history:  opts.History,
		gate:     gate,
		clock:    clock,
	}
	r.state.Store(domain.RefreshIdle)
	return r
}

// State reports the current pipeline step.
func (r *Refresher) State() domain.RefreshState {
	return r.state.Load().(domain.RefreshState)
}

// Refresh waits for any running refresh to finish and then rebuilds the registry.
func (r *Refresher) Refresh(ctx context.Context) (domain.RefreshReport, error) {
	if err := r.gate.Acquire(ctx); err != nil {
		return domain.RefreshReport{}, err
	}
	defer r.gate.Release()
	return r.run(ctx)
}

// TryRefresh rebuilds the registry unless another refresh is running, in
// which case it returns domain.ErrRefreshInProgress immediately.
func (r *Refresher) TryRefresh(ctx context.Context) (domain.RefreshReport, error) {
	if !r.gate.TryAcquire() {
		r.metrics.ObserveRefresh(domain.RefreshResultRejected, 0)
		return domain.RefreshReport{}, domain.ErrRefreshInProgress
	}
	defer r.gate.Release()
	return r.run(ctx)
}

func (r *Refresher) run(ctx context.Context) (domain.RefreshReport, error) {
	started := r.clock()
	report := domain.RefreshReport{StartedAt: started}

	ctx, cancel := context.WithTimeout(ctx, r.settings.RefreshTimeout())
	defer cancel()
	defer r.setState(domain.RefreshIdle)

	r.logger.Info("refresh started",
		telemetry.EventField(telemetry.EventRefreshStart),
		zap.Int("providers", len(domain.EnabledProviders(r.providers))),
	)

	r.setState(domain.RefreshFetching)
	fetched := r.fetcher.FetchAll(ctx, r.providers, r.conns)
	report.ProviderErrors = fetched.ProviderErrors
	report.SchemaErrors = fetched.SchemaErrors
	if err := ctx.Err(); err != nil {
		return r.abort(report, err)
	}

	r.setState(domain.RefreshSynthesizing)
	tools := make(map[string]*domain.RegisteredTool, len(fetched.Descriptors))
	for _, desc := range fetched.Descriptors {
		tool, err := r.builder.Build(desc)
		if err != nil {
			report.SchemaErrors = append(report.SchemaErrors, r.schemaFailure(desc, err))
			continue
		}
		if prev, exists := tools[tool.Name]; exists {
			report.Collisions = append(report.Collisions, tool.Name)
			r.logger.Warn("tool name collision; later provider wins",
				telemetry.EventField(telemetry.EventToolCollision),
				telemetry.ToolField(tool.Name),
				zap.String("previous", prev.Provider),
				telemetry.ProviderField(tool.Provider),
			)
		}
		tools[tool.Name] = tool
		r.logger.Debug("tool compiled",
			telemetry.ToolField(tool.Name),
			telemetry.ProviderField(tool.Provider),
			zap.Int("parameters", len(desc.Parameters)),
			zap.Bool("local", tool.Local),
			zap.Bool("cache", tool.Cache.Enabled),
		)
	}
	if err := ctx.Err(); err != nil {
		return r.abort(report, err)
	}
	if r.settings.StrictRefresh && (len(report.ProviderErrors) > 0 || len(report.SchemaErrors) > 0) {
		return r.abort(report, fmt.Errorf("%w: %s", ErrStrictRefresh, describeErrors(report.ProviderErrors, report.SchemaErrors)))
	}
	if len(tools) == 0 {
		return r.abort(report, domain.ErrEmptyCatalog)
	}

	r.setState(domain.RefreshSwapping)
	snapshot := r.registry.Replace(tools)

	report.Applied = true
	report.Generation = snapshot.Generation
	report.ETag = snapshot.ETag
	report.Tools = append([]string(nil), snapshot.Names...)
	report.Duration = r.clock().Sub(started)

	r.metrics.ObserveRefresh(domain.RefreshResultApplied, report.Duration)
	r.metrics.SetRegisteredTools(snapshot.Len())
	r.health.RecordApplied(snapshot.Generation, snapshot.Len(), snapshot.UpdatedAt)
	if r.history != nil {
		if err := r.history.Record(context.WithoutCancel(ctx), report); err != nil {
			r.logger.Warn("record refresh history failed", zap.Error(err))
		}
	}
	r.logger.Info("refresh applied",
		telemetry.EventField(telemetry.EventRefreshApplied),
		telemetry.GenerationField(snapshot.Generation),
		zap.Int("tools", snapshot.Len()),
		zap.Int("providerErrors", len(report.ProviderErrors)),
		zap.Int("schemaErrors", len(report.SchemaErrors)),
		telemetry.DurationField(report.Duration),
	)
	return report, nil
}

func (r *Refresher) abort(report domain.RefreshReport, err error) (domain.RefreshReport, error) {
	current := r.registry.Snapshot()
	report.Generation = current.Generation
	report.ETag = current.ETag
	report.Tools = append([]string(nil), current.Names...)
	report.Duration = r.clock().Sub(report.StartedAt)

	r.metrics.ObserveRefresh(domain.RefreshResultAborted, report.Duration)
	r.health.RecordFailure(err)
	r.logger.Warn("refresh aborted; registry unchanged",
		telemetry.EventField(telemetry.EventRefreshAborted),
		telemetry.GenerationField(current.Generation),
		zap.Int("providerErrors", len(report.ProviderErrors)),
		zap.Int("schemaErrors", len(report.SchemaErrors)),
		zap.Error(err),
	)
	return report, domain.Wrap(domain.CodeAborted, "refresh", err)
}

func (r *Refresher) schemaFailure(desc domain.ToolDescriptor, err error) *domain.SchemaError {
	r.metrics.ObserveSchemaError(desc.Provider)
	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		schemaErr = &domain.SchemaError{Provider: desc.Provider, Tool: desc.Name, Index: -1, Err: err}
	}
	r.logger.Warn("dropping tool that failed to compile",
		telemetry.EventField(telemetry.EventSchemaDropped),
		telemetry.ToolField(desc.Name),
		telemetry.ProviderField(desc.Provider),
		zap.Error(err),
	)
	return schemaErr
}

func (r *Refresher) setState(state domain.RefreshState) {
	r.state.Store(state)
}

func describeErrors(providerErrs []*domain.ProviderError, schemaErrs []*domain.SchemaError) string {
	parts := make([]string, 0, len(providerErrs)+len(schemaErrs))
	for _, err := range providerErrs {
		parts = append(parts, err.Error())
	}
	for _, err := range schemaErrs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
