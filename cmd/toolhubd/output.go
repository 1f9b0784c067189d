package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"toolhub/internal/domain"
	"toolhub/internal/infra/history"
)

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printToolInfo(w io.Writer, info domain.ToolInfo) {
	fmt.Fprintf(w, "%s (provider=%s endpoint=%s)\n", info.Name, info.Provider, info.Endpoint)
	if info.Description != "" {
		fmt.Fprintf(w, "  %s\n", info.Description)
	}
	for _, param := range info.Parameters {
		fmt.Fprintf(w, "  - %s: %s", param.Name, param.Type)
		if param.Description != "" {
			fmt.Fprintf(w, "  %s", param.Description)
		}
		fmt.Fprintln(w)
	}
	if info.Cache.Enabled {
		keys := "all parameters"
		if len(info.Cache.KeyBy) > 0 {
			keys = strings.Join(info.Cache.KeyBy, ", ")
		}
		fmt.Fprintf(w, "  cache: keyed by %s\n", keys)
	}
}

type reportView struct {
	Generation     uint64   `json:"generation"`
	ETag           string   `json:"etag"`
	Applied        bool     `json:"applied"`
	Tools          []string `json:"tools"`
	ProviderErrors []string `json:"providerErrors,omitempty"`
	SchemaErrors   []string `json:"schemaErrors,omitempty"`
	Collisions     []string `json:"collisions,omitempty"`
	DurationMs     int64    `json:"durationMs"`
}

func newReportView(report domain.RefreshReport) reportView {
	view := reportView{
		Generation: report.Generation,
		ETag:       report.ETag,
		Applied:    report.Applied,
		Tools:      report.Tools,
		Collisions: report.Collisions,
		DurationMs: report.Duration.Milliseconds(),
	}
	for _, err := range report.ProviderErrors {
		view.ProviderErrors = append(view.ProviderErrors, err.Error())
	}
	for _, err := range report.SchemaErrors {
		view.SchemaErrors = append(view.SchemaErrors, err.Error())
	}
	return view
}

func printReport(w io.Writer, view reportView) {
	fmt.Fprintf(w, "generation=%d etag=%s applied=%t tools=%d duration=%dms\n",
		view.Generation, view.ETag, view.Applied, len(view.Tools), view.DurationMs)
	for _, msg := range view.ProviderErrors {
		fmt.Fprintf(w, "provider error: %s\n", msg)
	}
	for _, msg := range view.SchemaErrors {
		fmt.Fprintf(w, "schema error: %s\n", msg)
	}
	for _, name := range view.Collisions {
		fmt.Fprintf(w, "collision: %s\n", name)
	}
}

func printHistory(w io.Writer, entries []history.Entry) {
	for _, entry := range entries {
		fmt.Fprintf(w, "#%d generation=%d tools=%d providerErrors=%d schemaErrors=%d at=%s\n",
			entry.Sequence,
			entry.Generation,
			len(entry.Tools),
			len(entry.ProviderErrors),
			len(entry.SchemaErrors),
			entry.RecordedAt.Format(time.RFC3339),
		)
	}
}
