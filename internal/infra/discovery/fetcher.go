// Package discovery queries provider discovery endpoints and parses the
// advertised tool descriptors.
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"toolhub/internal/domain"
	"toolhub/internal/infra/telemetry"
	"toolhub/internal/infra/transport"
)

// Connections resolves the open connection of a provider.
type Connections interface {
	Get(provider string) (*transport.Connection, bool)
}

// Result collects the outcome of one discovery pass.
type Result struct {
	// Descriptors are ordered by provider declaration, then response order.
	Descriptors    []domain.ToolDescriptor
	ProviderErrors []*domain.ProviderError
	SchemaErrors   []*domain.SchemaError
}

type Options struct {
	Logger      *zap.Logger
	Concurrency int
	Metrics     domain.Metrics
}

type Fetcher struct {
	logger      *zap.Logger
	concurrency int
	metrics     domain.Metrics
}

func NewFetcher(opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultRefreshConcurrency
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Fetcher{
		logger:      logger.Named("discovery"),
		concurrency: concurrency,
		metrics:     metrics,
	}
}

type providerOutcome struct {
	descriptors  []domain.ToolDescriptor
	providerErrs []*domain.ProviderError
	schemaErrs   []*domain.SchemaError
}

// FetchAll queries every enabled provider concurrently. A failing provider
// never prevents the others from being queried.
func (f *Fetcher) FetchAll(ctx context.Context, providers []domain.ProviderConfig, conns Connections) Result {
	enabled := domain.EnabledProviders(providers)
	outcomes := make([]providerOutcome, len(enabled))

	var group errgroup.Group
	group.SetLimit(f.concurrency)
	for i, provider := range enabled {
		group.Go(func() error {
			outcomes[i] = f.fetchProvider(ctx, provider, conns)
			return nil
		})
	}
	_ = group.Wait()

	var result Result
	for _, outcome := range outcomes {
		result.Descriptors = append(result.Descriptors, outcome.descriptors...)
		result.ProviderErrors = append(result.ProviderErrors, outcome.providerErrs...)
		result.SchemaErrors = append(result.SchemaErrors, outcome.schemaErrs...)
	}
	return result
}

func (f *Fetcher) fetchProvider(ctx context.Context, provider domain.ProviderConfig, conns Connections) providerOutcome {
	var out providerOutcome
	logger := f.logger.With(telemetry.ProviderField(provider.Name))

	conn, ok := conns.Get(provider.Name)
	if !ok {
		out.providerErrs = append(out.providerErrs, f.providerFailure(logger, provider.Name, "", domain.ErrNoConnection))
		return out
	}

	endpoints := provider.DiscoveryEndpoints()
	if len(endpoints) == 0 {
		logger.Debug("provider declares no discovery endpoint")
		return out
	}

	for _, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			out.providerErrs = append(out.providerErrs, f.providerFailure(logger, provider.Name, endpoint.Path, err))
			return out
		}
		started := time.Now()
		resp, err := conn.Get(ctx, endpoint.Path)
		if err != nil {
			out.providerErrs = append(out.providerErrs, f.providerFailure(logger, provider.Name, endpoint.Path, err))
			continue
		}
		records, err := decodeEnvelope(resp.Body)
		if err != nil {
			out.providerErrs = append(out.providerErrs, f.providerFailure(logger, provider.Name, endpoint.Path, err))
			continue
		}
		for index, raw := range records {
			desc, name, err := decodeRecord(provider.Name, raw)
			if err != nil {
				out.schemaErrs = append(out.schemaErrs, f.schemaFailure(logger, provider.Name, name, index, err))
				continue
			}
			out.descriptors = append(out.descriptors, desc)
		}
		logger.Debug("discovery endpoint fetched",
			zap.String("endpoint", endpoint.Path),
			zap.Int("records", len(records)),
			telemetry.DurationField(time.Since(started)),
		)
	}
	return out
}

func (f *Fetcher) providerFailure(logger *zap.Logger, provider, endpoint string, err error) *domain.ProviderError {
	f.metrics.ObserveProviderError(provider)
	logger.Warn("provider discovery failed",
		telemetry.EventField(telemetry.EventProviderFailure),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
	return &domain.ProviderError{Provider: provider, Endpoint: endpoint, Err: err}
}

func (f *Fetcher) schemaFailure(logger *zap.Logger, provider, tool string, index int, err error) *domain.SchemaError {
	f.metrics.ObserveSchemaError(provider)
	logger.Warn("dropping malformed tool record",
		telemetry.EventField(telemetry.EventSchemaDropped),
		telemetry.ToolField(tool),
		zap.Int("index", index),
		zap.Error(err),
	)
	return &domain.SchemaError{Provider: provider, Tool: tool, Index: index, Err: err}
}
