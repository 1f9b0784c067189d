package main

import (
	"github.com/spf13/cobra"

	"toolhub/internal/app"
)

func newRefreshCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run a discovery refresh and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return withService(ctx, opts, func(service *app.ToolService) error {
				report, err := service.TryRefresh(ctx)
				view := newReportView(report)
				if opts.jsonOutput {
					if writeErr := writeJSON(cmd.OutOrStdout(), view); writeErr != nil {
						return writeErr
					}
				} else {
					printReport(cmd.OutOrStdout(), view)
				}
				return err
			})
		},
	}
}

func newHistoryCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded refreshes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if cfg.Settings.History.Path == "" {
				return exitError{code: exitInvalid, message: "settings.history.path is not configured"}
			}
			service, err := app.InitializeToolService(cfg, app.LoggingConfig{Logger: opts.logger})
			if err != nil {
				return exitFor(err)
			}
			defer func() { _ = service.Close() }()

			entries, err := service.History(limit)
			if err != nil {
				return exitFor(err)
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum entries to show (0 for all)")
	return cmd
}
