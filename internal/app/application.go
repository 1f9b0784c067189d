package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"toolhub/internal/domain"
	"toolhub/internal/infra/cronrefresh"
	"toolhub/internal/infra/mcpbridge"
	"toolhub/internal/infra/telemetry"
)

// ServeConfig captures the serve command settings.
type ServeConfig struct {
	ConfigPath string
	// MCPStdio exposes the registered tools as an MCP server on stdin/stdout.
	MCPStdio bool
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context     context.Context
	ServeConfig ServeConfig
	Config      domain.Config
	Logger      *zap.Logger
	Registry    *prometheus.Registry
	Health      *telemetry.HealthTracker
	Service     *ToolService
	Scheduler   *cronrefresh.Scheduler
	Bridge      *mcpbridge.Bridge
}

// Application wires the long-running daemon around a ToolService.
type Application struct {
	ctx         context.Context
	serveConfig ServeConfig
	cfg         domain.Config
	logger      *zap.Logger
	registry    *prometheus.Registry
	health      *telemetry.HealthTracker
	service     *ToolService
	scheduler   *cronrefresh.Scheduler
	bridge      *mcpbridge.Bridge
}

// NewApplication constructs the daemon runtime.
func NewApplication(opts ApplicationOptions) *Application {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		ctx:         ctx,
		serveConfig: opts.ServeConfig,
		cfg:         opts.Config,
		logger:      logger,
		registry:    opts.Registry,
		health:      opts.Health,
		service:     opts.Service,
		scheduler:   opts.Scheduler,
		bridge:      opts.Bridge,
	}
}

// Service returns the tool service driven by the application.
func (a *Application) Service() *ToolService {
	return a.service
}

// Run initializes the service and blocks until the context ends or a
// component fails.
func (a *Application) Run() error {
	defer func() {
		if err := a.service.Close(); err != nil {
			a.logger.Warn("tool service close failed", zap.Error(err))
		}
	}()

	a.logger.Info("configuration loaded",
		zap.String("config", a.serveConfig.ConfigPath),
		zap.Int("providers", len(domain.EnabledProviders(a.cfg.Providers))),
	)

	if err := a.service.Initialize(a.ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(runCtx)

	if obs := a.cfg.Settings.Observability; obs.Enabled {
		group.Go(func() error {
			return telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
				Addr:     obs.ListenAddress,
				Health:   a.health,
				Registry: a.registry,
			}, a.logger)
		})
	}

	if schedule := a.cfg.Settings.RefreshSchedule; schedule != "" && a.scheduler != nil {
		if err := a.scheduler.Schedule(schedule); err != nil {
			return err
		}
		a.scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Settings.RefreshTimeout())
			defer cancel()
			if err := a.scheduler.Stop(stopCtx); err != nil {
				a.logger.Warn("refresh scheduler stop timed out", zap.Error(err))
			}
		}()
	}

	if a.serveConfig.MCPStdio && a.bridge != nil {
		group.Go(func() error {
			// The daemon stops when the MCP client disconnects.
			defer cancel()
			return a.bridge.Serve(ctx, a.service.Registry())
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
