package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toolhub/internal/app"
)

func newToolsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the discovered tool catalog",
	}
	cmd.AddCommand(newToolsListCmd(opts), newToolsDescribeCmd(opts))
	return cmd
}

func newToolsListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tool names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return withService(ctx, opts, func(service *app.ToolService) error {
				names := service.ListTools()
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), names)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tools=%d\n", len(names))
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			})
		},
	}
}

func newToolsDescribeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [tool...]",
		Short: "Describe tools and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return withService(ctx, opts, func(service *app.ToolService) error {
				infos := service.DescribeTools()
				if len(args) > 0 {
					infos = infos[:0]
					for _, name := range args {
						info, err := service.GetTool(name)
						if err != nil {
							return fmt.Errorf("%s: %w", name, err)
						}
						infos = append(infos, info)
					}
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), infos)
				}
				for _, info := range infos {
					printToolInfo(cmd.OutOrStdout(), info)
				}
				return nil
			})
		},
	}
}
