package main

import (
	"github.com/spf13/cobra"

	"toolhub/internal/infra/catalog"
)

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd(opts))
	return cmd
}

func newConfigShowCmd(opts *cliOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults and env expansion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := catalog.ParseFormat(format)
			if err != nil {
				return exitError{code: exitInvalid, message: err.Error()}
			}
			cfg, err := loadConfig(cmd.Context(), opts)
			if err != nil {
				return err
			}
			data, err := catalog.Render(cfg, parsed)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(catalog.FormatYAML), "output format (yaml, toml, json)")
	return cmd
}
