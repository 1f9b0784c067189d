package main

import (
	"github.com/spf13/cobra"

	"toolhub/internal/app"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var mcpStdio bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool hub daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			cfg, err := loadConfig(ctx, opts)
			if err != nil {
				return err
			}
			application, err := app.InitializeApplication(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
				MCPStdio:   mcpStdio,
			}, cfg, app.LoggingConfig{Logger: opts.logger})
			if err != nil {
				return exitFor(err)
			}
			return exitFor(application.Run())
		},
	}
	cmd.Flags().BoolVar(&mcpStdio, "mcp-stdio", false, "expose registered tools as an MCP server over stdio")
	return cmd
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration without contacting providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.ValidateConfig(cmd.Context(), opts.configPath, opts.logger)
			if err != nil {
				return exitFor(err)
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"valid": true, "providers": len(cfg.Providers)})
			}
			cmd.Printf("configuration ok: %d provider(s)\n", len(cfg.Providers))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("toolhubd %s (%s)\n", app.Version, app.Build)
		},
	}
}
