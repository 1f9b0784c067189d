package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"toolhub/internal/app"
	"toolhub/internal/domain"
)

type cliOptions struct {
	configPath string
	logLevel   string
	dev        bool
	jsonOutput bool
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		configPath: "toolhub.yaml",
		logLevel:   "warn",
		logger:     zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           "toolhubd",
		Short:         "Discover remote tools and invoke them through validated contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			applyRootFlagBindings(cmd, &opts)
			logger, err := app.BuildLogger(opts.logLevel, opts.dev)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to tool service config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "human readable development logs")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newServeCmd(&opts),
		newValidateCmd(&opts),
		newToolsCmd(&opts),
		newInvokeCmd(&opts),
		newRefreshCmd(&opts),
		newHistoryCmd(&opts),
		newConfigCmd(&opts),
		newVersionCmd(),
	)

	return root
}

func applyRootFlagBindings(cmd *cobra.Command, opts *cliOptions) {
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config":
			opts.configPath, _ = flags.GetString("config")
		case "log-level":
			opts.logLevel, _ = flags.GetString("log-level")
		case "dev":
			opts.dev, _ = flags.GetBool("dev")
		case "json":
			opts.jsonOutput, _ = flags.GetBool("json")
		}
	})
}

// withService loads the config, initializes a tool service and runs fn.
func withService(ctx context.Context, opts *cliOptions, fn func(*app.ToolService) error) error {
	cfg, err := app.LoadConfig(ctx, opts.configPath, opts.logger)
	if err != nil {
		return exitFor(err)
	}
	service, err := app.InitializeToolService(cfg, app.LoggingConfig{Logger: opts.logger})
	if err != nil {
		return exitFor(err)
	}
	defer func() { _ = service.Close() }()

	if err := service.Initialize(ctx); err != nil {
		return exitFor(err)
	}
	return exitFor(fn(service))
}

func loadConfig(ctx context.Context, opts *cliOptions) (domain.Config, error) {
	cfg, err := app.LoadConfig(ctx, opts.configPath, opts.logger)
	if err != nil {
		return domain.Config{}, exitFor(err)
	}
	return cfg, nil
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
