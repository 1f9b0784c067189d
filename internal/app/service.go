package app

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/executor"
	"toolhub/internal/infra/history"
	"toolhub/internal/infra/localtools"
	"toolhub/internal/infra/refresh"
	"toolhub/internal/infra/registry"
	"toolhub/internal/infra/telemetry"
	"toolhub/internal/infra/transport"
)

// ServiceOptions captures the dependencies of a ToolService.
type ServiceOptions struct {
	Logger       *zap.Logger
	Config       domain.Config
	Registry     *registry.Registry
	Executor     *executor.Executor
	Local        *localtools.Registry
	Metrics      domain.Metrics
	Health       *telemetry.HealthTracker
	History      *history.Store
	RoundTripper http.RoundTripper
}

// ToolService is the facade used by callers: it owns the provider
// connections, the refresh pipeline and the executor.
type ToolService struct {
	logger   *zap.Logger
	cfg      domain.Config
	registry *registry.Registry
	executor *executor.Executor
	local    *localtools.Registry
	metrics  domain.Metrics
	health   *telemetry.HealthTracker
	history  *history.Store
	rt       http.RoundTripper

	mu        sync.Mutex
	conns     *transport.ConnectionSet
	refresher *refresh.Refresher
	closed    bool
}

func NewToolService(opts ServiceOptions) *ToolService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New(registry.Options{Logger: logger})
	}
	exec := opts.Executor
	if exec == nil {
		exec = executor.New(executor.Options{
			Logger:          logger,
			Tools:           reg,
			Metrics:         opts.Metrics,
			ResponseTimeout: opts.Config.Settings.ResponseTimeout(),
		})
	}
	return &ToolService{
		logger:   logger.Named("service"),
		cfg:      opts.Config,
		registry: reg,
		executor: exec,
		local:    opts.Local,
		metrics:  opts.Metrics,
		health:   opts.Health,
		history:  opts.History,
		rt:       opts.RoundTripper,
	}
}

// Initialize opens the provider connections and performs the first refresh.
// A first refresh that aborts leaves the service usable with an empty
// catalog; later refreshes may fill it.
func (s *ToolService) Initialize(ctx context.Context) error {
	refresher, err := s.open()
	if err != nil {
		return err
	}
	report, err := refresher.Refresh(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Wrap(domain.CodeCanceled, "initialize", ctxErr)
		}
		if errors.Is(err, domain.ErrEmptyCatalog) {
			s.logger.Warn("initial refresh found no tools")
		} else {
			s.logger.Warn("initial refresh aborted", zap.Error(err))
		}
		return nil
	}
	s.logger.Info("tool service initialized",
		telemetry.GenerationField(report.Generation),
		zap.Int("tools", len(report.Tools)),
		zap.Int("providerErrors", len(report.ProviderErrors)),
		zap.Int("schemaErrors", len(report.SchemaErrors)),
	)
	return nil
}

func (s *ToolService) open() (*refresh.Refresher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrServiceClosed
	}
	if s.refresher != nil {
		return s.refresher, nil
	}

	conns, err := transport.Open(s.cfg.Providers, s.cfg.Settings, transport.Options{
		Logger:       s.logger,
		RoundTripper: s.rt,
	})
	if err != nil {
		return nil, domain.Wrap(domain.CodeInvalidArgument, "initialize", err)
	}

	var recorder refresh.HistoryRecorder
	if s.history != nil {
		recorder = s.history
	}
	s.conns = conns
	s.refresher = refresh.NewRefresher(refresh.Options{
		Logger:      s.logger,
		Providers:   domain.EnabledProviders(s.cfg.Providers),
		Settings:    s.cfg.Settings,
		Connections: conns,
		Registry:    s.registry,
		Local:       s.local,
		Metrics:     s.metrics,
		Health:      s.health,
		History:     recorder,
	})
	return s.refresher, nil
}

func (s *ToolService) current() (*refresh.Refresher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrServiceClosed
	}
	if s.refresher == nil {
		return nil, domain.E(domain.CodeFailedPrecond, "refresh", "tool service not initialized", nil)
	}
	return s.refresher, nil
}

// Refresh rebuilds the catalog, waiting for a running refresh first.
func (s *ToolService) Refresh(ctx context.Context) (domain.RefreshReport, error) {
	refresher, err := s.current()
	if err != nil {
		return domain.RefreshReport{}, err
	}
	return refresher.Refresh(ctx)
}

// TryRefresh rebuilds the catalog unless a refresh is already running.
func (s *ToolService) TryRefresh(ctx context.Context) (domain.RefreshReport, error) {
	refresher, err := s.current()
	if err != nil {
		return domain.RefreshReport{}, err
	}
	return refresher.TryRefresh(ctx)
}

// GetTool returns the introspection view of one tool.
func (s *ToolService) GetTool(name string) (domain.ToolInfo, error) {
	tool, err := s.registry.Get(name)
	if err != nil {
		return domain.ToolInfo{}, err
	}
	return tool.Info(), nil
}

// ListTools returns the registered tool names in sorted order.
func (s *ToolService) ListTools() []string {
	return s.registry.ListNames()
}

// DescribeTools returns every registered tool of the current snapshot.
func (s *ToolService) DescribeTools() []domain.ToolInfo {
	snapshot := s.registry.Snapshot()
	out := make([]domain.ToolInfo, 0, snapshot.Len())
	for _, name := range snapshot.Names {
		out = append(out, snapshot.Tools[name].Info())
	}
	return out
}

// Invoke validates args and runs the named tool.
func (s *ToolService) Invoke(ctx context.Context, name string, args map[string]any) (domain.InvocationResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.InvocationResult{Tool: name}, domain.ErrServiceClosed
	}
	return s.executor.Invoke(ctx, name, args)
}

// History returns the most recent applied refreshes, newest first.
func (s *ToolService) History(limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(limit)
}

// Registry exposes the live registry to subscribers such as the MCP bridge.
func (s *ToolService) Registry() *registry.Registry {
	return s.registry
}

// Executor returns the invocation executor.
func (s *ToolService) Executor() *executor.Executor {
	return s.executor
}

// Config returns the configuration the service was built from.
func (s *ToolService) Config() domain.Config {
	return s.cfg
}

// Close releases the provider connections and the history store. It is safe
// to call more than once.
func (s *ToolService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := s.conns
	s.mu.Unlock()

	var errs []error
	if err := conns.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("tool service closed")
	return errors.Join(errs...)
}
