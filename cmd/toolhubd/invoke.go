package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"toolhub/internal/app"
)

func newInvokeCmd(opts *cliOptions) *cobra.Command {
	var (
		rawArgs string
		pairs   []string
	)
	cmd := &cobra.Command{
		Use:   "invoke <tool>",
		Short: "Invoke a tool with validated arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseToolArgs(rawArgs, pairs)
			if err != nil {
				return exitError{code: exitInvalid, message: err.Error()}
			}
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return withService(ctx, opts, func(service *app.ToolService) error {
				result, err := service.Invoke(ctx, args[0], toolArgs)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				raw, err := json.Marshal(result.Value)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	cmd.Flags().StringArrayVarP(&pairs, "arg", "a", nil, "tool argument as key=value (repeatable); JSON values are decoded")
	return cmd
}

// parseToolArgs merges a JSON object with key=value pairs. Pair values that
// parse as JSON keep their JSON type, anything else is a string.
func parseToolArgs(raw string, pairs []string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("--args must be a JSON object: %w", err)
		}
		if out == nil {
			out = map[string]any{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--arg %q must be key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			out[key] = decoded
			continue
		}
		out[key] = value
	}
	return out, nil
}
